// Package approach provides shared constants and validation for the four
// intersection approaches and their service rotation.
package approach

import (
	"errors"
	"fmt"
	"strings"
)

// Approach identifies one arm of the intersection.
type Approach string

// Approach constants, in rotation order.
const (
	North Approach = "north"
	East  Approach = "east"
	South Approach = "south"
	West  Approach = "west"
)

// ErrUnknownApproach is returned when input names an approach outside the
// fixed set.
var ErrUnknownApproach = errors.New("unknown approach")

// rotation is the fixed service order. West wraps back to North.
var rotation = [4]Approach{North, East, South, West}

// Count is the number of approaches at the intersection.
const Count = len(rotation)

// Order returns the approaches in service order.
func Order() [4]Approach {
	return rotation
}

// AtIndex returns the approach at position i in the rotation. The index
// wraps, so AtIndex(4) is North again.
func AtIndex(i int) Approach {
	i %= Count
	if i < 0 {
		i += Count
	}
	return rotation[i]
}

// IndexOf returns the rotation position of a, or false for an unknown value.
func IndexOf(a Approach) (int, bool) {
	for i, r := range rotation {
		if a == r {
			return i, true
		}
	}
	return 0, false
}

// Next returns the successor of a in the rotation.
func Next(a Approach) Approach {
	i, ok := IndexOf(a)
	if !ok {
		return North
	}
	return AtIndex(i + 1)
}

// IsValid checks if the given value is one of the four approaches.
func IsValid(a Approach) bool {
	_, ok := IndexOf(a)
	return ok
}

// Parse converts free-form input into an Approach. Matching is
// case-insensitive and ignores surrounding whitespace.
func Parse(s string) (Approach, error) {
	a := Approach(strings.ToLower(strings.TrimSpace(s)))
	if !IsValid(a) {
		return "", fmt.Errorf("%w: %q (valid: %s)", ErrUnknownApproach, s, ValidList())
	}
	return a, nil
}

// ValidList returns a comma-separated string of valid approaches for error
// messages.
func ValidList() string {
	return "north, east, south, west"
}

// String implements fmt.Stringer.
func (a Approach) String() string {
	return string(a)
}
