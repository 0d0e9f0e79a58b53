// Package theme persists the editor theme chosen in the admin UI.
package theme

import (
	"context"
	"fmt"
	"regexp"
)

// Default is used until a theme has been saved.
const Default = "original"

var namePattern = regexp.MustCompile(`^[a-z0-9-]{1,32}$`)

// Store reads and writes the current theme.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, name, updatedBy string) error
}

// Valid reports whether name can be stored as a theme.
func Valid(name string) bool {
	return namePattern.MatchString(name)
}

func errInvalid(name string) error {
	return fmt.Errorf("invalid theme %q: use 1-32 lowercase letters, digits or dashes", name)
}
