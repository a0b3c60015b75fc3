package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
		kind   Kind
	}{
		{http.StatusUnauthorized, ErrAuthRejected, KindAuthRejected},
		{http.StatusForbidden, ErrAuthRejected, KindAuthRejected},
		{http.StatusNotFound, ErrNotFound, KindNotFound},
		{http.StatusBadRequest, ErrValidation, KindValidation},
		{http.StatusConflict, ErrValidation, KindValidation},
		{http.StatusUnprocessableEntity, ErrValidation, KindValidation},
		{http.StatusServiceUnavailable, ErrNetworkFailure, KindNetwork},
		{http.StatusBadGateway, ErrNetworkFailure, KindNetwork},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("FromStatus(%d) = %v, want errors.Is %v", tt.status, err, tt.want)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("KindOf() = %v, want %v", KindOf(err), tt.kind)
			}
		})
	}

	if err := FromStatus(http.StatusOK, ""); err != nil {
		t.Errorf("FromStatus(200) = %v, want nil", err)
	}
	if err := FromStatus(http.StatusInternalServerError, ""); KindOf(err) != KindUnknown {
		t.Errorf("FromStatus(500) kind = %v, want unknown", KindOf(err))
	}
}

func TestError_MessageAndWrapping(t *testing.T) {
	err := FromStatus(http.StatusUnprocessableEntity, "hostname is required")
	if got := err.Error(); got != "fetch: validation (422): hostname is required" {
		t.Errorf("Error() = %q", got)
	}

	cause := errors.New("dial tcp: connection refused")
	wrapped := fmt.Errorf("load computer: %w", NetworkError(cause))
	if !errors.Is(wrapped, ErrNetworkFailure) {
		t.Error("wrapped network error should match ErrNetworkFailure")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped network error should unwrap to its cause")
	}
	if !IsRetryable(wrapped) {
		t.Error("network error should be retryable")
	}
	if IsRetryable(FromStatus(http.StatusForbidden, "")) {
		t.Error("auth error should not be retryable")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("network error should not match ErrNotFound")
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindUnknown:      "unknown",
		KindNetwork:      "network",
		KindAuthRejected: "auth_rejected",
		KindValidation:   "validation",
		KindNotFound:     "not_found",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
