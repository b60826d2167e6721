package binding

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

// fakeEvaluator records the code it is asked to run and returns a canned value.
type fakeEvaluator struct {
	lastCode string
	result   any
	err      error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, code string, _ *Context) (any, error) {
	f.lastCode = code
	return f.result, f.err
}

func testContext() *Context {
	return &Context{
		User: map[string]any{
			"_id":      "us_42",
			"email":    "ada@example.com",
			"nickname": "",
			"profile":  map[string]any{"city": "London"},
		},
		Now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestResolvePathBinding(t *testing.T) {
	r := NewResolver(nil)

	got, err := r.Resolve(context.Background(), "{{ user._id }}", testContext())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "us_42" {
		t.Errorf("Expected us_42, got %v", got)
	}

	got, err = r.Resolve(context.Background(), "{{ user.profile.city }}", testContext())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "London" {
		t.Errorf("Expected London, got %v", got)
	}
}

func TestResolveNow(t *testing.T) {
	r := NewResolver(nil)
	got, err := r.Resolve(context.Background(), "{{ now }}", testContext())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "2024-06-01T12:00:00Z" {
		t.Errorf("Expected canonical UTC instant, got %v", got)
	}
}

func TestResolveDefaultOnlyWhenAbsent(t *testing.T) {
	r := NewResolver(nil)

	// Absent path substitutes the literal.
	got, err := r.Resolve(context.Background(), `{{ default user.missing "fallback" }}`, testContext())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "fallback" {
		t.Errorf("Expected fallback, got %v", got)
	}

	// An explicit empty string is a resolved value, not an absence.
	got, err = r.Resolve(context.Background(), `{{ default user.nickname "fallback" }}`, testContext())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "" {
		t.Errorf("Expected empty string, got %v", got)
	}
}

func TestResolveAbsentPathWithoutDefaultFails(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve(context.Background(), "{{ user.missing }}", testContext())
	var berr *Error
	if !errors.As(err, &berr) {
		t.Fatalf("Expected binding Error, got %v", err)
	}
}

func TestResolveInterpolation(t *testing.T) {
	r := NewResolver(nil)
	got, err := r.Resolve(context.Background(), "owner:{{ user._id }}!", testContext())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "owner:us_42!" {
		t.Errorf("Expected owner:us_42!, got %v", got)
	}
}

func TestResolveJSBinding(t *testing.T) {
	eval := &fakeEvaluator{result: int64(7)}
	r := NewResolver(eval)

	encoded := base64.StdEncoding.EncodeToString([]byte("1 + 6"))
	got, err := r.Resolve(context.Background(), "{{ js \""+encoded+"\" }}", testContext())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != int64(7) {
		t.Errorf("Expected native int64 7, got %v (%T)", got, got)
	}
	if eval.lastCode != "1 + 6" {
		t.Errorf("Evaluator got code %q", eval.lastCode)
	}
}

func TestResolveJSErrors(t *testing.T) {
	r := NewResolver(&fakeEvaluator{err: errors.New("boom")})
	encoded := base64.StdEncoding.EncodeToString([]byte("x"))

	_, err := r.Resolve(context.Background(), "{{ js \""+encoded+"\" }}", testContext())
	var berr *Error
	if !errors.As(err, &berr) {
		t.Fatalf("Expected binding Error, got %v", err)
	}

	// Invalid base64 fails before the evaluator is touched.
	_, err = r.Resolve(context.Background(), `{{ js "not*base64" }}`, testContext())
	if !errors.As(err, &berr) {
		t.Fatalf("Expected binding Error for bad base64, got %v", err)
	}

	// A js binding with no evaluator configured is an error, not a pass-through.
	bare := NewResolver(nil)
	_, err = bare.Resolve(context.Background(), "{{ js \""+encoded+"\" }}", testContext())
	if !errors.As(err, &berr) {
		t.Fatalf("Expected binding Error without evaluator, got %v", err)
	}
}

func TestResolveSlicesElementwise(t *testing.T) {
	r := NewResolver(nil)
	got, err := r.Resolve(context.Background(), []any{"{{ user._id }}", "literal", 3.0}, testContext())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	out, ok := got.([]any)
	if !ok || len(out) != 3 {
		t.Fatalf("Expected 3-element slice, got %v", got)
	}
	if out[0] != "us_42" || out[1] != "literal" || out[2] != 3.0 {
		t.Errorf("Unexpected slice contents: %v", out)
	}
}

func TestResolvePassThrough(t *testing.T) {
	r := NewResolver(nil)
	for _, v := range []any{42.0, true, nil, "plain string"} {
		got, err := r.Resolve(context.Background(), v, testContext())
		if err != nil {
			t.Fatalf("Resolve(%v) failed: %v", v, err)
		}
		if got != v {
			t.Errorf("Expected %v to pass through, got %v", v, got)
		}
	}
}

func TestResolveUnterminatedBinding(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve(context.Background(), "prefix {{ user._id", testContext())
	var berr *Error
	if !errors.As(err, &berr) {
		t.Fatalf("Expected binding Error, got %v", err)
	}
}
