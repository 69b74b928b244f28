package model

import (
	"errors"
	"strings"
	"testing"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code int
		want SubscriptionStatus
	}{
		{200, StatusOK},
		{404, StatusDisabled},
		{500, StatusDisabled},
		{0, StatusDisabled},
		{201, StatusDisabled},
	}

	for _, tt := range tests {
		if got := StatusFromCode(tt.code); got != tt.want {
			t.Errorf("StatusFromCode(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestSessionState_Phase(t *testing.T) {
	tests := []struct {
		name  string
		state SessionState
		want  Phase
	}{
		{"トークンなし", SessionState{}, PhaseAnonymous},
		{"トークンなし・ユーザー名あり", SessionState{Username: "alice"}, PhaseAnonymous},
		{"トークンのみ", SessionState{UserID: "U1"}, PhaseIdentified},
		{"OK", SessionState{UserID: "U1", Status: StatusOK}, PhaseSubscribed},
		{"Disabled", SessionState{UserID: "U1", Status: StatusDisabled}, PhaseSubscriptionDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Phase(); got != tt.want {
				t.Errorf("Phase() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionState_AuthenticatedDependsOnUsername(t *testing.T) {
	s := SessionState{UserID: "U1"}
	if s.Authenticated() {
		t.Error("ユーザー名が空の場合は未認証として扱うこと")
	}
	s.Username = "alice"
	if !s.Authenticated() {
		t.Error("ユーザー名がある場合は認証済みとして扱うこと")
	}
}

func TestClientError_Error(t *testing.T) {
	err := NewNotLoggedInError("register")
	if !strings.Contains(err.Error(), ErrCodeNotLoggedIn) {
		t.Errorf("Error() = %q, should contain code %q", err.Error(), ErrCodeNotLoggedIn)
	}
	if err.Category != CategoryGuard {
		t.Errorf("Category = %q, want %q", err.Category, CategoryGuard)
	}

	var ce *ClientError
	wrapped := error(NewBackendUnavailableError("fetch status", errors.New("connection refused")))
	if !errors.As(wrapped, &ce) || ce.Category != CategoryTransient {
		t.Errorf("errors.As should yield a transient ClientError, got %v", wrapped)
	}
}

func TestClientError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not logged in", NewNotLoggedInError("revoke"), ErrNoToken},
		{"state mismatch", NewStateMismatchError(), ErrStateMismatch},
		{"backend unavailable", NewBackendUnavailableError("fetch status", cause), cause},
		{"unexpected response", NewUnexpectedResponseError("fetch username", ErrUnexpectedResponse), ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.want)
			}
		})
	}

	if errors.Unwrap(NewMissingUserIDError()) != nil {
		t.Error("missing userid error should have no cause")
	}
}
