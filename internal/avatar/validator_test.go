package avatar

import (
	"errors"
	"testing"

	"trivia-session-service/internal/domain"
)

func TestValidate(t *testing.T) {
	v := NewValidator(nil)

	valid := []string{"/avatars/cat.svg", "https://cdn.example.com/a.png", "ok://avatar-7", "OK://upper"}
	for _, ref := range valid {
		if err := v.Validate(ref); err != nil {
			t.Errorf("expected %q accepted, got %v", ref, err)
		}
	}

	invalid := []string{"", "ftp://host/a.png", "javascript:alert(1)", "no-scheme-no-slash"}
	for _, ref := range invalid {
		if err := v.Validate(ref); !errors.Is(err, domain.ErrInvalidAvatar) {
			t.Errorf("expected %q rejected with ErrInvalidAvatar, got %v", ref, err)
		}
	}
}

func TestValidateCustomSchemes(t *testing.T) {
	v := NewValidator([]string{"data"})

	if err := v.Validate("data:image/png;base64,AAAA"); err != nil {
		t.Fatalf("expected configured scheme accepted, got %v", err)
	}
	if err := v.Validate("https://cdn.example.com/a.png"); !errors.Is(err, domain.ErrInvalidAvatar) {
		t.Fatalf("expected https rejected when not configured, got %v", err)
	}
}
