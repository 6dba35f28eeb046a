package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrForgerySuspected, http.StatusForbidden},
		{New(Forbidden, "owner access required"), http.StatusForbidden},
		{New(ValidationFailed, "bad id"), http.StatusBadRequest},
		{ErrRateLimited, http.StatusTooManyRequests},
		{Wrap(UpstreamFailure, "", errors.New("dial tcp: refused")), http.StatusInternalServerError},
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageHidesCauses(t *testing.T) {
	err := Wrap(UpstreamFailure, "remote said 422: email taken", errors.New("secret payload"))
	if got := Message(err); got != "provisioning failed" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(errors.New("sql: no rows at /var/lib/x.db")); got != "internal server error" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(New(Forbidden, "owner access required")); got != "owner access required" {
		t.Errorf("Message = %q", got)
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("guard: %w", New(Forbidden, "no access to this server"))
	if !errors.Is(err, ErrForbidden) {
		t.Error("expected errors.Is to match Forbidden")
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Error("unexpected match on Unauthenticated")
	}
}
