// Package registry maps language identifiers to language profiles.
package registry

import (
	"context"
	"fmt"
	"strings"

	"coderun/internal/execution/profile"
	appErr "coderun/pkg/errors"
)

// Resolver resolves a language identifier into a profile.
type Resolver interface {
	Resolve(ctx context.Context, languageID string) (profile.Language, error)
}

// Registry is a read-only table of language profiles.
type Registry struct {
	languages map[string]profile.Language
	order     []string
}

// New validates and registers languages. A later entry replaces an earlier one
// with the same ID, which is how config-declared languages override built-ins.
func New(languages ...profile.Language) (*Registry, error) {
	r := &Registry{languages: make(map[string]profile.Language, len(languages))}
	for _, lang := range languages {
		if err := lang.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.languages[lang.ID]; !exists {
			r.order = append(r.order, lang.ID)
		}
		r.languages[lang.ID] = lang
	}
	if len(r.languages) == 0 {
		return nil, appErr.New(appErr.InvalidLanguageSpec).WithMessage("no languages registered")
	}
	return r, nil
}

// Default returns a registry holding the built-in languages.
func Default() *Registry {
	r, err := New(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("builtin languages are invalid: %v", err))
	}
	return r
}

// Resolve returns the profile registered for languageID.
func (r *Registry) Resolve(ctx context.Context, languageID string) (profile.Language, error) {
	lang, ok := r.languages[languageID]
	if !ok {
		return profile.Language{}, appErr.Newf(appErr.LanguageNotSupported,
			"Unsupported language. Please specify one of the following: %s", strings.Join(r.order, ", ")).
			WithDetail("language", languageID)
	}
	return lang, nil
}

// IDs lists registered identifiers in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
