// Package uid implements the store's node identifier.
//
// A UID is either concrete, "0x" followed by lowercase hex, or a blank-node
// reference, "_:" followed by an opaque token, used before the node is
// persisted. UIDs are immutable values compared by their canonical,
// lowercase string, so "_:Alice" and "_:alice" are the same reference.
package uid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidFormat is returned for malformed identifiers.
	ErrInvalidFormat = errors.New("velograph: invalid uid format")
	// ErrNotConcrete is returned when a blank-node reference is used where a
	// persisted node id is required.
	ErrNotConcrete = errors.New("velograph: uid is not concrete")
)

// InvalidFormatError reports a malformed identifier.
type InvalidFormatError struct {
	Value  string
	Reason string
}

// Error returns the error string.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("velograph: invalid uid %q: %s", e.Value, e.Reason)
}

// Is reports whether the target matches ErrInvalidFormat.
func (e *InvalidFormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

const (
	concretePrefix = "0x"
	blankPrefix    = "_:"
)

// UID is a node identifier. The zero value is the empty identifier of an
// entity that has not been assigned one.
type UID struct {
	s string
}

// Parse validates s and returns its canonical UID. Concrete identifiers are
// normalized to lowercase without leading zeros, blank-node tokens to
// lowercase.
func Parse(s string) (UID, error) {
	switch {
	case strings.HasPrefix(s, blankPrefix):
		token := s[len(blankPrefix):]
		if err := validToken(token); err != "" {
			return UID{}, &InvalidFormatError{Value: s, Reason: err}
		}
		return UID{s: blankPrefix + strings.ToLower(token)}, nil
	case len(s) > 2 && (s[:2] == concretePrefix || s[:2] == "0X"):
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return UID{}, &InvalidFormatError{Value: s, Reason: "invalid hexadecimal number"}
		}
		if n == 0 {
			return UID{}, &InvalidFormatError{Value: s, Reason: "zero is not a valid node id"}
		}
		return New(n), nil
	default:
		return UID{}, &InvalidFormatError{Value: s, Reason: `expected "0x" or "_:" prefix`}
	}
}

// MustParse is like Parse but panics on error.
func MustParse(s string) UID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// New returns the concrete UID of a numeric node id.
func New(n uint64) UID {
	return UID{s: concretePrefix + strconv.FormatUint(n, 16)}
}

// Blank returns a blank-node reference with the given token.
func Blank(token string) (UID, error) {
	return Parse(blankPrefix + token)
}

// NewBlank returns a blank-node reference with a random token.
func NewBlank() UID {
	return UID{s: blankPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")}
}

func validToken(token string) string {
	if token == "" {
		return "empty blank-node token"
	}
	for _, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
		default:
			return fmt.Sprintf("invalid character %q in blank-node token", r)
		}
	}
	return ""
}

// String returns the canonical form of the identifier.
func (u UID) String() string { return u.s }

// IsZero reports if the identifier is unset.
func (u UID) IsZero() bool { return u.s == "" }

// IsConcrete reports if the identifier refers to a persisted node.
func (u UID) IsConcrete() bool { return strings.HasPrefix(u.s, concretePrefix) }

// IsBlank reports if the identifier is a blank-node reference.
func (u UID) IsBlank() bool { return strings.HasPrefix(u.s, blankPrefix) }

// Token returns the blank-node token, or "" for concrete identifiers.
func (u UID) Token() string {
	if !u.IsBlank() {
		return ""
	}
	return u.s[len(blankPrefix):]
}

// Uint64 returns the numeric node id. It fails for blank and zero UIDs.
func (u UID) Uint64() (uint64, error) {
	if !u.IsConcrete() {
		return 0, fmt.Errorf("%w: %q", ErrNotConcrete, u.s)
	}
	return strconv.ParseUint(u.s[2:], 16, 64)
}

// Equals reports if both identifiers have the same canonical form.
func Equals(a, b UID) bool { return a.s == b.s }

// Compare orders identifiers by canonical string.
func Compare(a, b UID) int {
	return strings.Compare(a.s, b.s)
}

// MarshalText implements encoding.TextMarshaler.
func (u UID) MarshalText() ([]byte, error) {
	return []byte(u.s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*u = UID{}
		return nil
	}
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

var (
	_ json.Marshaler   = UID{}
	_ json.Unmarshaler = (*UID)(nil)
)

// MarshalJSON implements json.Marshaler.
func (u UID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return u.UnmarshalText([]byte(s))
}
