// Package enums holds the closed string sets persisted in the database and
// exchanged over the API.
package enums

import (
	"fmt"
	"slices"
)

func oneOf[T ~string](v T, valid []T) bool {
	return slices.Contains(valid, v)
}

func parse[T ~string](kind, value string, valid []T) (T, error) {
	if v := T(value); oneOf(v, valid) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
