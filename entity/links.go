package entity

import "fmt"

// AttachmentLinks are the foreign keys of a ProjectAttachment.
type AttachmentLinks struct {
	ComputerID string
	ProjectID  string
}

// Complete reports whether both foreign keys are known.
func (l AttachmentLinks) Complete() bool {
	return l.ComputerID != "" && l.ProjectID != ""
}

// LinksOf extracts attachment foreign keys from v.
//
// v may be a ProjectAttachment (value or pointer) or a decoded JSON object
// with computer_id and project_id fields. ok is false when neither key can be
// found.
func LinksOf(v any) (links AttachmentLinks, ok bool) {
	switch a := v.(type) {
	case ProjectAttachment:
		links = AttachmentLinks{ComputerID: a.ComputerID, ProjectID: a.ProjectID}
	case *ProjectAttachment:
		if a == nil {
			return AttachmentLinks{}, false
		}
		links = AttachmentLinks{ComputerID: a.ComputerID, ProjectID: a.ProjectID}
	case map[string]any:
		links = AttachmentLinks{ComputerID: stringField(a, "computer_id"), ProjectID: stringField(a, "project_id")}
	default:
		return AttachmentLinks{}, false
	}
	return links, links.ComputerID != "" || links.ProjectID != ""
}

// IDOf returns the identifier of v. It accepts Identifiable values and
// decoded JSON objects with an id field.
func IDOf(v any) (string, bool) {
	switch e := v.(type) {
	case Identifiable:
		id := e.EntityID()
		return id, id != ""
	case map[string]any:
		id := stringField(e, "id")
		return id, id != ""
	default:
		return "", false
	}
}

func stringField(m map[string]any, name string) string {
	switch v := m[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		// Numeric ids decode as float64.
		return fmt.Sprint(v)
	}
}
