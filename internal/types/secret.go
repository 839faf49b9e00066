// Package types holds small value types shared across packages.
package types

import "log/slog"

const redacted = "[REDACTED]"

// Secret is a string that never prints itself. Use Reveal to get the value.
type Secret string

func (s Secret) Reveal() string {
	return string(s)
}

func (s Secret) IsSet() bool {
	return s != ""
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string {
	return s.String()
}

// LogValue keeps secrets out of structured logs.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// MarshalText redacts the value in JSON and YAML output.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
