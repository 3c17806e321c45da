package testutil

import (
	"testing"

	"github.com/mazen160/go-random"
)

// RandomString generates random fixture text, failing the test instead of
// returning an error.
func RandomString(t testing.TB, length int) string {
	s, err := random.String(length)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// RandomIntRange generates a random int in [min, max).
func RandomIntRange(t testing.TB, min, max int) int {
	n, err := random.IntRange(min, max)
	if err != nil {
		t.Fatal(err)
	}
	return n
}
