package cache

import (
	"strings"
	"testing"
)

func TestKey_EqualIgnoresMapOrder(t *testing.T) {
	k1 := Key{"computers", "list", map[string]any{"b": 2, "a": 1, "c": 3}}
	k2 := Key{"computers", "list", map[string]any{"c": 3, "a": 1, "b": 2}}

	if !k1.Equal(k2) {
		t.Errorf("keys should be equal:\n  k1=%s\n  k2=%s", k1, k2)
	}
	if k1.ID() != k2.ID() {
		t.Errorf("IDs should be equal:\n  id1=%q\n  id2=%q", k1.ID(), k2.ID())
	}
}

func TestKey_NestedMapsCanonical(t *testing.T) {
	k1 := Key{"projects", "list", map[string]any{"filter": map[string]any{"y": true, "x": []any{1, 2}}}}
	k2 := Key{"projects", "list", map[string]any{"filter": map[string]any{"x": []any{1, 2}, "y": true}}}

	if !k1.Equal(k2) {
		t.Errorf("nested map keys should be equal:\n  k1=%s\n  k2=%s", k1, k2)
	}
}

func TestKey_SliceOrderPreserved(t *testing.T) {
	k1 := Key{"projects", "list", map[string]any{"ids": []any{1, 2, 3}}}
	k2 := Key{"projects", "list", map[string]any{"ids": []any{3, 2, 1}}}

	if k1.Equal(k2) {
		t.Errorf("keys should differ for different slice order:\n  k1=%s\n  k2=%s", k1, k2)
	}
}

func TestKey_SegmentTypesDistinct(t *testing.T) {
	// "1" and 1 are different segments.
	if (Key{"users", "detail", "1"}).Equal(Key{"users", "detail", 1}) {
		t.Error("string and number segments should not be equal")
	}
}

func TestKey_InvalidUTF8Distinct(t *testing.T) {
	a, b := Key{"users", "\xff"}, Key{"users", "\xfe"}
	if a.Equal(b) || a.ID() == b.ID() {
		t.Errorf("keys with different invalid bytes collide: %s", a.ID())
	}
	if a.Equal(Key{"users", "\ufffd"}) {
		t.Error("invalid byte equals the replacement character")
	}
	if !a.Equal(Key{"users", "\xff"}) {
		t.Error("identical invalid keys should be equal")
	}

	s := NewStore(DefaultPolicy())
	s.Write(a, 1)
	s.Write(b, 2)
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestKey_HasPrefix(t *testing.T) {
	parent := Key{"computers", "detail", "c1"}

	tests := []struct {
		name string
		key  Key
		want bool
	}{
		{"self", Key{"computers", "detail", "c1"}, true},
		{"child", Key{"computers", "detail", "c1", "attachments"}, true},
		{"sibling", Key{"computers", "detail", "c2", "attachments"}, false},
		{"shorter", Key{"computers", "detail"}, false},
		{"other type", Key{"projects", "detail", "c1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.HasPrefix(parent); got != tt.want {
				t.Errorf("%s.HasPrefix(%s) = %v, want %v", tt.key, parent, got, tt.want)
			}
		})
	}

	if !(Key{"anything"}).HasPrefix(Key{}) {
		t.Error("every key should have the empty key as prefix")
	}
}

func TestKey_Contains(t *testing.T) {
	k := Key{"computers", "detail", "c1", "attachments"}
	if !k.Contains("attachments") {
		t.Error("Contains(attachments) = false, want true")
	}
	if k.Contains("projects") {
		t.Error("Contains(projects) = true, want false")
	}
}

func TestKey_AppendDoesNotAlias(t *testing.T) {
	base := make(Key, 0, 8)
	base = append(base, "computers", "detail", "c1")

	a := base.Append("attachments")
	b := base.Append("preferences")

	if a[3] != "attachments" {
		t.Errorf("a[3] = %v, want attachments", a[3])
	}
	if b[3] != "preferences" {
		t.Errorf("b[3] = %v, want preferences", b[3])
	}
	if len(base) != 3 {
		t.Errorf("len(base) = %d, want 3", len(base))
	}
}

func TestKey_EntityTypeAndString(t *testing.T) {
	k := Key{"computers", "detail", "c1"}
	if got := k.EntityType(); got != "computers" {
		t.Errorf("EntityType() = %q, want computers", got)
	}
	if got := (Key{}).EntityType(); got != "" {
		t.Errorf("EntityType() of empty key = %q, want empty", got)
	}
	if s := k.String(); !strings.Contains(s, "computers") || !strings.Contains(s, `"c1"`) {
		t.Errorf("String() = %q, want it to mention computers and \"c1\"", s)
	}
}
