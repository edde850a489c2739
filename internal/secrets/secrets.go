// Package secrets resolves API keys from flags, files or the environment.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when no source yields a value.
var ErrNotConfigured = errors.New("not configured")

// Source describes where a secret may come from.
type Source struct {
	// Name appears in error messages.
	Name string
	// Value is an inline value from a flag or config file.
	Value string
	// File holds the secret. It takes precedence over Value.
	File string
	// Env is consulted when neither File nor Value is set.
	Env string
}

// Load returns the trimmed secret from src.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}
	if src.Env != "" {
		if secret := strings.TrimSpace(os.Getenv(src.Env)); secret != "" {
			return secret, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotConfigured)
}

// LoadAll resolves a map of inline values, such as per-capability keys.
// Values of the form "@path" are read from the named file. Empty values are
// dropped.
func LoadAll(name string, values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for k, v := range values {
		src := Source{Name: name + " " + k, Value: v}
		if path, ok := strings.CutPrefix(strings.TrimSpace(v), "@"); ok {
			src = Source{Name: src.Name, File: path}
		}
		secret, err := Load(src)
		if errors.Is(err, ErrNotConfigured) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[k] = secret
	}
	return out, nil
}
