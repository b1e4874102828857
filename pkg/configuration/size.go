package configuration

import (
	"github.com/dustin/go-humanize"
)

// ByteSize is a uint64 value that supports unmarshalling from both
// human-friendly string representations and numeric representations. It can be
// cast to a uint64 value, where it represents a byte count.
type ByteSize uint64

// UnmarshalText implements the text unmarshalling interface. UnmarshalYAML
// calls it when loading YAML configuration files.
func (s *ByteSize) UnmarshalText(textBytes []byte) error {
	// Convert the bytes to a string.
	text := string(textBytes)

	// Parse and store the value.
	value, err := humanize.ParseBytes(text)
	if err != nil {
		return err
	}
	*s = ByteSize(value)

	// Success.
	return nil
}

// UnmarshalYAML implements yaml.v2's Unmarshaler interface, since that
// package doesn't honor encoding.TextUnmarshaler on its own. It accepts
// either a human-friendly string ("500MB") or a bare integer byte count.
func (s *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text string
	if err := unmarshal(&text); err == nil {
		return s.UnmarshalText([]byte(text))
	}

	var numeric uint64
	if err := unmarshal(&numeric); err != nil {
		return err
	}
	*s = ByteSize(numeric)
	return nil
}
