package util

import (
	"golang.org/x/exp/slices"
)

// AppendUnique adds v to in unless it is already there.
func AppendUnique(in []string, v string) []string {
	if slices.Contains(in, v) {
		return in
	}
	return append(in, v)
}

// Permitted tells whether user may act given the permitted list. An empty
// list permits anyone.
func Permitted(permitted []string, user string) bool {
	return len(permitted) == 0 || slices.Contains(permitted, user)
}
