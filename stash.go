package stashy

import (
	"context"
	"fmt"
	"strings"
)

// Stash is the capability contract for storing, retrieving, and deleting
// string values by key. Implementations confine side effects to their own
// store; concurrent use is safe for every backend in this package.
type Stash interface {
	// Fetch returns the current value for key if present. The key is not
	// validated, a malformed key cannot match any stored entry and misses.
	Fetch(ctx context.Context, key string) (value string, ok bool, err error)

	// Stash validates key, then inserts or overwrites the entry and returns
	// the previous value if one existed. An invalid key fails with
	// ErrInvalidKey and performs no write.
	Stash(ctx context.Context, key, value string) (prev string, ok bool, err error)

	// Delete removes the entry for key if present and returns the removed
	// value. No validation, a malformed key can never have been stored.
	Delete(ctx context.Context, key string) (removed string, ok bool, err error)
}

// ValidateKey checks key against the stash naming rules: one or more
// non-empty segments of ASCII alphanumerics and underscores, joined by ':',
// e.g. "user:123:name". Returns an error wrapping ErrInvalidKey on violation.
// Called internally by every backend before a write; exposed for
// pre-validation by callers.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, ":") || strings.HasSuffix(key, ":") {
		return fmt.Errorf("%w: key must not start or end with ':'", ErrInvalidKey)
	}
	for _, segment := range strings.Split(key, ":") {
		if segment == "" {
			return fmt.Errorf("%w: key must not contain empty segments", ErrInvalidKey)
		}
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
		default:
			return fmt.Errorf("%w: key contains invalid character %q", ErrInvalidKey, r)
		}
	}
	return nil
}
