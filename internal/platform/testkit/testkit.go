// Package testkit provides testing helpers
package testkit

import (
	"math"
	"testing"
)

// MustPanic asserts that fn panics
func MustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic, got none")
		}
	}()
	fn()
}

// MustNotPanic asserts that fn does not panic
func MustNotPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	fn()
}

// InDelta asserts that got is within eps of want
func InDelta(t *testing.T, name string, got, want, eps float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > eps {
		t.Fatalf("%s = %v, want %v (eps %v)", name, got, want, eps)
	}
}

// F64 returns a pointer to v; handy for optional record fields in tests
func F64(v float64) *float64 { return &v }

// Str returns a pointer to s
func Str(s string) *string { return &s }

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }
