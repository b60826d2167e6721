package binding

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// Resolver rewrites filter values. Two binding forms are recognized inside
// {{ ... }} delimiters:
//
//	{{ user.firstName }}            path lookup against the binding context
//	{{ default user.nickname "x" }} path lookup with a literal fallback
//	{{ js "<base64>" }}             encoded program, run in the sandbox evaluator
//
// A value that is exactly one binding keeps the resolved value's native type;
// bindings embedded in larger strings are interpolated as text.
type Resolver struct {
	eval Evaluator
}

// NewResolver creates a resolver around the injected sandbox evaluator.
func NewResolver(eval Evaluator) *Resolver {
	return &Resolver{eval: eval}
}

// Resolve rewrites one filter value. Non-string scalars pass through; slices
// are resolved element-wise in order.
func (r *Resolver) Resolve(ctx context.Context, v any, bctx *Context) (any, error) {
	switch t := v.(type) {
	case string:
		return r.resolveString(ctx, t, bctx)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			resolved, err := r.Resolve(ctx, item, bctx)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	}
	return v, nil
}

func (r *Resolver) resolveString(ctx context.Context, s string, bctx *Context) (any, error) {
	start := strings.Index(s, "{{")
	if start < 0 {
		return s, nil
	}

	// Whole-string binding: preserve the resolved type.
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") &&
		strings.Index(trimmed, "}}") == len(trimmed)-2 {
		expr := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		return r.evalExpr(ctx, expr, bctx)
	}

	// Interpolation: replace each binding with its string rendering.
	var b strings.Builder
	rest := s
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		close := strings.Index(rest[open:], "}}")
		if close < 0 {
			return nil, &Error{Expression: s, Reason: "unterminated binding"}
		}
		b.WriteString(rest[:open])
		expr := strings.TrimSpace(rest[open+2 : open+close])
		val, err := r.evalExpr(ctx, expr, bctx)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%v", val)
		rest = rest[open+close+2:]
	}
}

func (r *Resolver) evalExpr(ctx context.Context, expr string, bctx *Context) (any, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, &Error{Expression: expr, Reason: err.Error()}
	}
	if len(tokens) == 0 {
		return nil, &Error{Expression: expr, Reason: "empty binding"}
	}

	switch tokens[0].text {
	case "js":
		if len(tokens) != 2 {
			return nil, &Error{Expression: expr, Reason: "js takes exactly one encoded argument"}
		}
		code, err := base64.StdEncoding.DecodeString(tokens[1].text)
		if err != nil {
			return nil, &Error{Expression: expr, Reason: "invalid base64 program", Err: err}
		}
		if r.eval == nil {
			return nil, &Error{Expression: expr, Reason: "no snippet evaluator configured"}
		}
		out, err := r.eval.Evaluate(ctx, string(code), bctx)
		if err != nil {
			return nil, &Error{Expression: expr, Reason: "snippet evaluation failed", Err: err}
		}
		return out, nil

	case "default":
		if len(tokens) != 3 {
			return nil, &Error{Expression: expr, Reason: "default takes a path and a literal"}
		}
		if val, ok := bctx.Lookup(tokens[1].text); ok {
			// An explicit empty string is a resolved value; default only
			// substitutes when the path is absent.
			return val, nil
		}
		return tokens[2].literal(), nil

	default:
		if len(tokens) != 1 {
			return nil, &Error{Expression: expr, Reason: "unknown binding helper " + tokens[0].text}
		}
		val, ok := bctx.Lookup(tokens[0].text)
		if !ok {
			return nil, &Error{Expression: expr, Reason: "path does not resolve and no default given"}
		}
		return val, nil
	}
}

type token struct {
	text   string
	quoted bool
}

// literal returns the token as a binding literal: quoted tokens are strings,
// bare tokens stay text too (filter values are revalidated by type later).
func (t token) literal() any {
	return t.text
}

func tokenize(expr string) ([]token, error) {
	var out []token
	i := 0
	for i < len(expr) {
		switch {
		case expr[i] == ' ' || expr[i] == '\t':
			i++
		case expr[i] == '"':
			end := strings.IndexByte(expr[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated string literal")
			}
			out = append(out, token{text: expr[i+1 : i+1+end], quoted: true})
			i += end + 2
		default:
			end := strings.IndexAny(expr[i:], " \t")
			if end < 0 {
				out = append(out, token{text: expr[i:]})
				i = len(expr)
			} else {
				out = append(out, token{text: expr[i : i+end]})
				i += end
			}
		}
	}
	return out, nil
}
