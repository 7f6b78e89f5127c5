package logging

import "testing"

func TestNewLogger(t *testing.T) {
	t.Parallel()

	if NewLogger(true) == nil {
		t.Fatal("logger cannot be nil")
	}
	if NewLogger(false) == nil {
		t.Fatal("logger cannot be nil")
	}
}
