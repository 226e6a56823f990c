package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesScopeAndRawFields(t *testing.T) {
	err := New(
		"api/shipping-rates",
		CodeValidation,
		WithHTTP(422),
		WithMessage("invalid address"),
		WithRawCode("ADDR-404"),
		WithRawMessage("address does not belong to customer"),
		WithCause(errors.New("commerce http 422")),
	)

	out := err.Error()
	if !strings.Contains(out, "scope=api/shipping-rates") {
		t.Fatalf("expected scope marker in error string: %s", out)
	}
	if !strings.Contains(out, "code=validation") {
		t.Fatalf("expected code in error string: %s", out)
	}
	if !strings.Contains(out, "http=422") {
		t.Fatalf("expected http status in error string: %s", out)
	}
	if !strings.Contains(out, "raw_code=\"ADDR-404\"") {
		t.Fatalf("expected raw code in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"commerce http 422\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := New("api/cart", CodeNetwork, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach the cause")
	}
}

func TestCodeOfWrappedEnvelope(t *testing.T) {
	inner := New("cache/cart", CodeCorruptCache, WithMessage("bad blob"))
	wrapped := fmt.Errorf("load snapshot: %w", inner)
	if got := CodeOf(wrapped); got != CodeCorruptCache {
		t.Fatalf("expected corrupt_cache, got %q", got)
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatal("expected empty code for plain error")
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{CodeNetwork, true},
		{CodeRateLimited, true},
		{CodeRemote, true},
		{CodeValidation, false},
		{CodeAuth, false},
		{CodeStale, false},
		{CodeCorruptCache, false},
	}
	for _, tc := range cases {
		err := New("api", tc.code)
		if got := Transient(err); got != tc.want {
			t.Errorf("Transient(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
	if Transient(errors.New("plain")) {
		t.Fatal("plain errors must not be treated as transient")
	}
}

func TestNilEnvelopeError(t *testing.T) {
	var e *E
	if e.Error() != "<nil>" {
		t.Fatalf("expected <nil>, got %q", e.Error())
	}
}
