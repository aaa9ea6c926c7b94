package graph

import (
	"regexp"
)

// MaxIdentifierLength is the maximum length, in bytes, of an Identifier.
const MaxIdentifierLength = 255

// identifierPattern is compiled once at package initialization and is
// read-only afterwards, so it is safe for concurrent use.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// Identifier is a validated name used for vertex types, edge types and
// property names. Identifiers only contain letters, digits, dashes and
// underscores and are at most MaxIdentifierLength bytes long.
//
// The zero value is not a valid identifier.
type Identifier struct {
	name string
}

// NewIdentifier validates s and returns it as an Identifier.
func NewIdentifier(s string) (Identifier, error) {
	if err := ValidateIdentifier(s); err != nil {
		return Identifier{}, err
	}
	return Identifier{name: s}, nil
}

// MustIdentifier is like NewIdentifier but panics on invalid input.
// Intended for constants and tests.
func MustIdentifier(s string) Identifier {
	id, err := NewIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ValidateIdentifier reports whether s is a well formed identifier.
func ValidateIdentifier(s string) error {
	if len(s) > MaxIdentifierLength {
		return &ValidationError{Value: s, Reason: "identifier too long"}
	}
	if !identifierPattern.MatchString(s) {
		return &ValidationError{Value: s, Reason: "identifier must match " + identifierPattern.String()}
	}
	return nil
}

// String returns the identifier text.
func (i Identifier) String() string {
	return i.name
}

// IsZero reports whether i is the zero (invalid) identifier.
func (i Identifier) IsZero() bool {
	return i.name == ""
}

// Valid returns a ValidationError for the zero identifier.
func (i Identifier) Valid() error {
	if i.IsZero() {
		return &ValidationError{Value: "", Reason: "identifier is empty"}
	}
	return nil
}

func (i Identifier) MarshalText() ([]byte, error) {
	if err := i.Valid(); err != nil {
		return nil, err
	}
	return []byte(i.name), nil
}

func (i *Identifier) UnmarshalText(text []byte) error {
	id, err := NewIdentifier(string(text))
	if err != nil {
		return err
	}
	*i = id
	return nil
}
