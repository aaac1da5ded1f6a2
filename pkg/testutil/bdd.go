package testutil

import "testing"

// Given, When, and Then name the stages of a scenario subtest so `go test -v`
// output reads as behavior sentences. They are plain t.Run wrappers.

func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	stage(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	stage(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	stage(t, "Then", desc, fn)
}

func stage(t *testing.T, prefix, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(prefix+" "+desc, fn)
}
