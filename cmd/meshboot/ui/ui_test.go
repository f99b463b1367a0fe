package ui

import "testing"

func TestMarksDegradeToASCII(t *testing.T) {
	t.Setenv("CI", "1")
	Configure()
	if !plain {
		t.Fatal("CI environment not detected as non-interactive")
	}
	if okMark() != "ok" {
		t.Errorf("ok mark = %q, want %q", okMark(), "ok")
	}
	if failMark() != "x" {
		t.Errorf("fail mark = %q, want %q", failMark(), "x")
	}

	plain = false
	if okMark() != "✓" || failMark() != "✗" {
		t.Errorf("interactive marks = %q/%q", okMark(), failMark())
	}
}
