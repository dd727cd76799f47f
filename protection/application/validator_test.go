package application

import (
	"strings"
	"testing"
)

func TestValidator_AcceptsWellFormedRequest(t *testing.T) {
	v := Validator{Shape: DefaultSettings().Shape}

	ok, why := v.Check(cleanRequest())
	if !ok {
		t.Fatalf("expected valid, got %q", why)
	}
}

func TestValidator_RequiresHost(t *testing.T) {
	v := Validator{Shape: DefaultSettings().Shape}
	desc := cleanRequest()
	desc.Host = ""

	ok, why := v.Check(desc)
	if ok {
		t.Fatalf("expected invalid without Host")
	}
	if !strings.Contains(why, "Host") {
		t.Fatalf("expected Host in reason, got %q", why)
	}
}

func TestValidator_RejectsOversizedURI(t *testing.T) {
	v := Validator{Shape: Shape{MaxURILength: 10, MaxBodyBytes: 1, MaxHeaderCount: 100, MaxQueryLength: 100, MaxProxyHops: 5}}
	desc := cleanRequest()
	desc.Path = "/" + strings.Repeat("a", 50)
	desc.ContentLength = 0

	if ok, _ := v.Check(desc); ok {
		t.Fatalf("expected invalid for oversized uri")
	}
}

func TestValidator_RejectsOversizedBody(t *testing.T) {
	v := Validator{Shape: DefaultSettings().Shape}
	desc := cleanRequest()
	desc.ContentLength = 100 << 20

	if ok, _ := v.Check(desc); ok {
		t.Fatalf("expected invalid for oversized body")
	}
}

func TestValidator_RejectsTooManyHeaders(t *testing.T) {
	shape := DefaultSettings().Shape
	shape.MaxHeaderCount = 2
	v := Validator{Shape: shape}

	if ok, _ := v.Check(cleanRequest()); ok {
		t.Fatalf("expected invalid for header count above limit")
	}
}
