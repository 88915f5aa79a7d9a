// Package agetier parses age-tier strings such as "18+".
package agetier

import (
	"errors"
	"regexp"
	"strconv"
)

var (
	pattern = regexp.MustCompile(`^[1-9][0-9]*\+$`)

	ErrInvalid = errors.New("invalid age tier")
)

// Parse returns the minimum age carried by tier. Tiers are not capped, but
// values that overflow int are rejected.
func Parse(tier string) (int, error) {
	if !pattern.MatchString(tier) {
		return 0, ErrInvalid
	}
	n, err := strconv.Atoi(tier[:len(tier)-1])
	if err != nil {
		return 0, ErrInvalid
	}
	return n, nil
}

// Valid reports whether tier is well formed.
func Valid(tier string) bool {
	_, err := Parse(tier)
	return err == nil
}

// Satisfies reports whether tier meets min. Malformed tiers never do.
func Satisfies(tier string, min int) bool {
	n, err := Parse(tier)
	return err == nil && n >= min
}
