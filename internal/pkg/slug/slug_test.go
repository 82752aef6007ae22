package slug

import (
	"strings"
	"testing"
)

func TestBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sales Dashboard", "sales-dashboard"},
		{"  Q1 -- revenue!! ", "q1-revenue"},
		{"Café Øre", "caf-re"},
		{"", ""},
		{"***", ""},
	}
	for _, tt := range tests {
		if got := Base(tt.in); got != tt.want {
			t.Errorf("Base(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMakeAddsSuffix(t *testing.T) {
	a := Make("Sales Dashboard")
	b := Make("Sales Dashboard")

	if !strings.HasPrefix(a, "sales-dashboard-") {
		t.Errorf("Make() = %q, want sales-dashboard- prefix", a)
	}
	if len(a) != len("sales-dashboard-")+8 {
		t.Errorf("unexpected slug length: %q", a)
	}
	if a == b {
		t.Errorf("two slugs collided: %q", a)
	}
	if got := Make(""); len(got) != 8 {
		t.Errorf("Make(\"\") = %q, want 8 char suffix", got)
	}
}

func TestBaseIsBounded(t *testing.T) {
	long := strings.Repeat("abc ", 100)
	if got := Base(long); len(got) > maxBaseLen {
		t.Errorf("Base length %d exceeds %d", len(got), maxBaseLen)
	}
}
