package avatar

import (
	"fmt"
	"net/url"
	"strings"

	"trivia-session-service/internal/domain"
)

// DefaultSchemes are the URL schemes accepted when none are configured.
var DefaultSchemes = []string{"https", "ok"}

// Validator checks avatar references before they are stored on a player.
// A reference is either a site-relative path ("/avatars/cat.svg") or a URL
// whose scheme is on the allow-list.
type Validator struct {
	schemes map[string]struct{}
}

func NewValidator(allowedSchemes []string) *Validator {
	if len(allowedSchemes) == 0 {
		allowedSchemes = DefaultSchemes
	}
	schemes := make(map[string]struct{}, len(allowedSchemes))
	for _, scheme := range allowedSchemes {
		schemes[strings.ToLower(scheme)] = struct{}{}
	}
	return &Validator{schemes: schemes}
}

func (v *Validator) Validate(avatarRef string) error {
	if avatarRef == "" {
		return fmt.Errorf("%w: empty reference", domain.ErrInvalidAvatar)
	}
	if strings.HasPrefix(avatarRef, "/") {
		return nil
	}
	parsed, err := url.Parse(avatarRef)
	if err != nil || parsed.Scheme == "" {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAvatar, avatarRef)
	}
	if _, ok := v.schemes[strings.ToLower(parsed.Scheme)]; !ok {
		return fmt.Errorf("%w: scheme %q not allowed", domain.ErrInvalidAvatar, parsed.Scheme)
	}
	return nil
}
