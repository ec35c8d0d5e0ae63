// Package rank generates fractional sort keys.
//
// Keys are lowercase base36 digit strings compared lexicographically. Each key is
// read as a fraction in [0, 1): "i" is 18/36, "i8" is 18/36 + 8/36², and so on.
// Generated keys never end in the minimal digit '0', which keeps the key space
// dense: for any two keys a < c there is always a key b with a < b < c.
package rank

import (
	"errors"
	"fmt"
	"strings"
)

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	base     = len(alphabet)
)

var (
	// ErrOrderingInvariant reports bounds that are out of order or equal. It means the
	// caller's sibling ordering is corrupted and must not be silently corrected.
	ErrOrderingInvariant = errors.New("ordering invariant violated")
	ErrInvalidKey        = errors.New("invalid sort key")
)

// OrderingError carries the offending bounds of an ErrOrderingInvariant failure.
type OrderingError struct {
	Before string
	After  string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("ordering invariant violated: %q is not before %q", e.Before, e.After)
}

func (e *OrderingError) Unwrap() error { return ErrOrderingInvariant }

func digit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'z':
		return 10 + int(c-'a'), true
	default:
		return 0, false
	}
}

func char(d int) byte {
	if d < 0 {
		d = 0
	}
	if d >= base {
		d = base - 1
	}
	return alphabet[d]
}

// Normalize trims and lowercases a key.
func Normalize(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// Validate reports whether k is a usable bound. The empty key is valid and means
// "no bound".
func Validate(k string) error {
	for i := 0; i < len(k); i++ {
		if _, ok := digit(k[i]); !ok {
			return fmt.Errorf("%w %q: unexpected character %q", ErrInvalidKey, k, k[i])
		}
	}
	if k != "" && k[len(k)-1] == alphabet[0] {
		return fmt.Errorf("%w %q: trailing %q", ErrInvalidKey, k, alphabet[0])
	}
	return nil
}

// KeyBetween returns a key strictly between before and after.
// Either bound may be empty: an empty before means "head of the list" and an empty
// after means "tail of the list". With both empty it returns the canonical midpoint.
func KeyBetween(before, after string) (string, error) {
	before = Normalize(before)
	after = Normalize(after)
	if err := Validate(before); err != nil {
		return "", err
	}
	if err := Validate(after); err != nil {
		return "", err
	}
	if before != "" && after != "" && before >= after {
		return "", &OrderingError{Before: before, After: after}
	}
	return midpoint(before, after), nil
}

// midpoint assumes a < b, where an empty b stands for the exclusive upper bound 1.
func midpoint(a, b string) string {
	if b != "" {
		// Shared prefix (a is padded with the minimal digit).
		n := 0
		for n < len(b) {
			ca := alphabet[0]
			if n < len(a) {
				ca = a[n]
			}
			if ca != b[n] {
				break
			}
			n++
		}
		if n > 0 {
			rest := ""
			if n < len(a) {
				rest = a[n:]
			}
			return b[:n] + midpoint(rest, b[n:])
		}
	}

	da := 0
	if a != "" {
		da, _ = digit(a[0])
	}
	db := base
	if b != "" {
		db, _ = digit(b[0])
	}
	if db-da > 1 {
		return string(char((da + db) / 2))
	}
	// Adjacent leading digits.
	if len(b) > 1 {
		return b[:1]
	}
	rest := ""
	if len(a) > 1 {
		rest = a[1:]
	}
	return string(char(da)) + midpoint(rest, "")
}

func KeyAfter(before string) (string, error) { return KeyBetween(before, "") }
func KeyBefore(after string) (string, error) { return KeyBetween("", after) }
func InitialKey() string                      { return midpoint("", "") }

// KeysBetween returns n ascending keys strictly between before and after.
func KeysBetween(before, after string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	mid, err := KeyBetween(before, after)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return []string{mid}, nil
	}
	left, err := KeysBetween(before, mid, n/2)
	if err != nil {
		return nil, err
	}
	right, err := KeysBetween(mid, after, n-n/2-1)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	out = append(out, left...)
	out = append(out, mid)
	out = append(out, right...)
	return out, nil
}

// KeyBetweenUnique returns a key between lower and upper that is not present in existing.
//
// existing keys should be normalized. On collision the lower bound is tightened to the
// colliding key and generation retried, so no other sibling has to be rewritten.
func KeyBetweenUnique(existing map[string]bool, lower, upper string) (string, error) {
	cur := Normalize(lower)
	upper = Normalize(upper)
	for i := 0; i < 256; i++ {
		k, err := KeyBetween(cur, upper)
		if err != nil {
			return "", err
		}
		if !existing[k] {
			return k, nil
		}
		cur = k
	}
	return "", errors.New("unable to find unique sort key")
}
