package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var usernameGen = rapid.StringMatching(`[a-zA-Z0-9_.\-]{3,30}`)

func TestPairKey_Symmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := usernameGen.Draw(t, "a")
		b := usernameGen.Draw(t, "b")
		if PairKey(a, b) != PairKey(b, a) {
			t.Fatalf("PairKey(%q,%q) != PairKey(%q,%q)", a, b, b, a)
		}
	})
}

func TestPairKey_Unambiguous(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := usernameGen.Draw(t, "a")
		b := usernameGen.Draw(t, "b")
		c := usernameGen.Draw(t, "c")
		d := usernameGen.Draw(t, "d")
		same := (a == c && b == d) || (a == d && b == c)
		if !same && PairKey(a, b) == PairKey(c, d) {
			t.Fatalf("distinct pairs {%q,%q} and {%q,%q} share a key", a, b, c, d)
		}
	})
}

func TestPairKey_HyphenatedNames(t *testing.T) {
	// With a "-" separator these two pairs would collide.
	assert.NotEqual(t, PairKey("a-b", "c"), PairKey("a", "b-c"))
	assert.Equal(t, "alice:bob", PairKey("bob", "alice"))
}

func TestAppError_KindsAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		kind   ErrorKind
		code   string
		status int
	}{
		{"validation", NewValidationError("bad"), KindValidation, CodeValidation, http.StatusBadRequest},
		{"auth", NewAuthError(CodeAuthBadPassword, "wrong"), KindAuth, CodeAuthBadPassword, http.StatusUnauthorized},
		{"permission", NewPermissionError(CodePermissionMuted, "muted"), KindPermission, CodePermissionMuted, http.StatusForbidden},
		{"not found", NewNotFoundError("user", "bob"), KindNotFound, CodeNotFound, http.StatusNotFound},
		{"internal", NewInternalError(errors.New("boom")), KindInternal, CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, HTTPStatus(tt.err.Kind))
		})
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", NewPermissionError(CodePermissionNoAccess, "no access"))
	assert.Equal(t, CodePermissionNoAccess, AsAppError(wrapped).Code)
	assert.True(t, HasCode(wrapped, CodePermissionNoAccess))

	plain := AsAppError(errors.New("disk full"))
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, "Internal server error: disk full", plain.Error())
}

func TestErrorEvent(t *testing.T) {
	ev := ErrorEvent(EventLoginError, NewAuthError(CodeAuthNotFound, "user not found"))
	assert.Equal(t, EventLoginError, ev.Type)
	assert.Equal(t, ErrorPayload{Code: CodeAuthNotFound, Message: "user not found"}, ev.Payload)
}

func TestMessageInput_Validate(t *testing.T) {
	assert.NoError(t, MessageInput{Text: "hi"}.Validate())
	assert.NoError(t, MessageInput{Attachment: &Attachment{URL: "/uploads/a.png"}}.Validate())

	assert.Error(t, MessageInput{Text: "   "}.Validate())
	assert.Error(t, MessageInput{Attachment: &Attachment{}}.Validate())
	assert.Error(t, MessageInput{Text: strings.Repeat("x", MaxMessageLength+1)}.Validate())
}

func TestPreferences_Apply(t *testing.T) {
	off := false
	dark := "dark"
	p := DefaultPreferences().Apply(PreferencesDelta{Notifications: &off, Theme: &dark})

	assert.False(t, p.Notifications)
	assert.Equal(t, "dark", p.Theme)
	assert.True(t, p.Sound)
	assert.Equal(t, "ru", p.Language)
}

func TestProfile_ApplyAndDisplayName(t *testing.T) {
	first := "Alice"
	p := Profile{Bio: "hello"}.Apply(ProfileDelta{FirstName: &first})

	assert.Equal(t, "Alice", p.FirstName)
	assert.Equal(t, "hello", p.Bio)
	assert.Equal(t, "Alice", p.DisplayName("alice1"))
	assert.Equal(t, "bob", Profile{}.DisplayName("bob"))
	assert.True(t, ProfileDelta{}.Empty())
}

func TestRoom_CanAccess(t *testing.T) {
	public := &Room{ID: "general"}
	private := &Room{
		ID:           "private-1",
		IsPrivate:    true,
		CreatedBy:    "admin",
		AllowedUsers: map[string]struct{}{"alice": {}},
	}

	assert.True(t, public.CanAccess("anyone"))
	assert.True(t, private.CanAccess("admin"))
	assert.True(t, private.CanAccess("alice"))
	assert.False(t, private.CanAccess("bob"))
	assert.Equal(t, []string{"alice"}, private.Allowed())
}
