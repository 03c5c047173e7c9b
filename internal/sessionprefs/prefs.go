package sessionprefs

import (
	"context"
	"strings"
)

// DefaultProfile names the profile used when a session carries none.
const DefaultProfile = "default"

// Prefs captures per-session preferences.
type Prefs struct {
	// Profile selects the persisted preferences file.
	Profile string
	// Frontend names the transport that owns the session.
	Frontend string
}

type prefsKey struct{}

// New returns a new Prefs instance for profile.
func New(profile, frontend string) *Prefs {
	return &Prefs{Profile: profile, Frontend: frontend}
}

// WithContext stores prefs in the context.
func WithContext(ctx context.Context, prefs *Prefs) context.Context {
	if ctx == nil || prefs == nil {
		return ctx
	}
	return context.WithValue(ctx, prefsKey{}, prefs)
}

// FromContext returns the prefs stored in the context, if any.
func FromContext(ctx context.Context) *Prefs {
	if ctx == nil {
		return nil
	}
	if value := ctx.Value(prefsKey{}); value != nil {
		if prefs, ok := value.(*Prefs); ok {
			return prefs
		}
	}
	return nil
}

// ProfileFromContext returns the session profile, or fallback when the
// context carries none.
func ProfileFromContext(ctx context.Context, fallback string) string {
	if prefs := FromContext(ctx); prefs != nil && strings.TrimSpace(prefs.Profile) != "" {
		return prefs.Profile
	}
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	return DefaultProfile
}
