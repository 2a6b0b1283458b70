// Package identity maps user emails to API keys.
//
// The mapping file is a JSON object of email to API key. Reports consume it
// inverted, to print an email next to each key, and fall back to a redacted
// key prefix when a key is not mapped.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// prefixLen is how much of an API key is shown in redacted form.
const prefixLen = 8

// Mapping maps email to API key.
type Mapping map[string]string

// Load reads a mapping file.
func Load(path string) (Mapping, error) {
	// #nosec G304: path comes from CLI flags or the artifact manifest
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, path)
		}
		return nil, fmt.Errorf("failed to read mapping %s: %w", path, err)
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMapping, path, err)
	}
	if m == nil {
		m = Mapping{}
	}
	return m, nil
}

// Save writes the mapping as indented JSON, creating parent directories.
func Save(path string, m Mapping) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write mapping %s: %w", path, err)
	}
	return nil
}

// Invert returns API key to email.
func (m Mapping) Invert() map[string]string {
	out := make(map[string]string, len(m))
	for email, key := range m {
		out[key] = email
	}
	return out
}

// Lookup returns the API key of an email.
func (m Mapping) Lookup(email string) (string, bool) {
	key, ok := m[email]
	return key, ok && key != ""
}

// Emails returns every email, sorted.
func (m Mapping) Emails() []string {
	out := make([]string, 0, len(m))
	for email := range m {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

// Similar returns the emails containing the local part of email,
// case-insensitively. Used to suggest corrections for unknown emails.
func (m Mapping) Similar(email string) []string {
	local := strings.ToLower(email)
	if i := strings.Index(local, "@"); i >= 0 {
		local = local[:i]
	}
	if local == "" {
		return nil
	}

	var out []string
	for _, candidate := range m.Emails() {
		if strings.Contains(strings.ToLower(candidate), local) {
			out = append(out, candidate)
		}
	}
	return out
}

// Keys resolves emails to API keys, returning the keys found and the
// emails that are not in the mapping.
func (m Mapping) Keys(emails []string) (keys []string, missing []string) {
	for _, email := range emails {
		if key, ok := m.Lookup(email); ok {
			keys = append(keys, key)
		} else {
			missing = append(missing, email)
		}
	}
	return keys, missing
}

// Resolver renders API keys for display.
type Resolver struct {
	byKey map[string]string
}

// NewResolver creates a resolver. A nil mapping resolves every key to its
// redacted form.
func NewResolver(m Mapping) *Resolver {
	return &Resolver{byKey: m.Invert()}
}

// Email returns the email mapped to key.
func (r *Resolver) Email(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	email, ok := r.byKey[key]
	return email, ok
}

// Display returns the email for key, or its redacted form when unmapped.
func (r *Resolver) Display(key string) string {
	if email, ok := r.Email(key); ok {
		return email
	}
	return Redact(key)
}

// Len returns the number of mapped keys.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byKey)
}

// Redact shortens an API key to its first 8 characters followed by "...".
func Redact(key string) string {
	if len(key) > prefixLen {
		key = key[:prefixLen]
	}
	return key + "..."
}
