package errkind

import (
	"errors"
	"strings"
	"testing"
)

func TestOfCodeRoundTrips(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"transport", TransportErr("read failed", errors.New("eof")), Transport},
		{"protocol bare", ProtocolErr("bad opcode", nil), Protocol},
		{"format wrapped", FormatErr("bad length", errors.New("short")), Format},
		{"unknown model", UnknownModelErr("XP-9999"), UnknownModel},
		{"backend bare", BackendErr("incomplete reply", nil), Backend},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := OfCode(c.err); got != c.want {
				t.Errorf("OfCode() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestOfCodeUnrelatedError(t *testing.T) {
	if got := OfCode(errors.New("plain")); got != "" {
		t.Errorf("OfCode(plain) = %q, want empty", got)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := TransportErr("write failed", errors.New("broken pipe"))
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
	if !strings.Contains(msg, "broken pipe") {
		t.Fatalf("Error() = %q, want it to include the cause %q", msg, "broken pipe")
	}
}
