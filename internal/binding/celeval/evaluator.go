// Package celeval implements the snippet sandbox on CEL. Programs get the
// session user, the current timestamp and the named snippets; nothing else.
// CEL has no I/O and no mutation, so evaluation cannot touch caller state,
// and interrupt checks make it cancellable through the request context.
package celeval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/binding"
)

const (
	programCacheSize = 512
	interruptEvery   = 100
)

// Evaluator compiles and runs snippet programs. Compiled programs are cached
// by (snippet set, code) since compilation dominates cost for the short
// expressions bindings use.
type Evaluator struct {
	cache *lru.Cache[string, cel.Program]
}

// New creates a CEL evaluator.
func New() (*Evaluator, error) {
	cache, err := lru.New[string, cel.Program](programCacheSize)
	if err != nil {
		return nil, err
	}
	return &Evaluator{cache: cache}, nil
}

// Evaluate implements binding.Evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, code string, bctx *binding.Context) (any, error) {
	env, err := e.newEnv(bctx)
	if err != nil {
		return nil, err
	}

	prg, err := e.program(env, bctx, code)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{
		"user": userMap(bctx),
		"now":  nowOf(bctx),
		"args": []any{},
	}
	out, _, err := prg.ContextEval(ctx, vars)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("snippet exceeded its execution budget: %w", ctx.Err())
		}
		return nil, fmt.Errorf("snippet eval error: %w", err)
	}
	return nativize(out), nil
}

// newEnv builds the sandbox environment. The snippet() function closes over
// the context's named snippets, each itself a CEL expression over args.
func (e *Evaluator) newEnv(bctx *binding.Context) (*cel.Env, error) {
	var env *cel.Env

	snippetFn := cel.Function("snippet",
		cel.Overload("snippet_string_list",
			[]*cel.Type{cel.StringType, cel.ListType(cel.DynType)},
			cel.DynType,
			cel.BinaryBinding(func(name, args ref.Val) ref.Val {
				return e.callSnippet(env, bctx, name, args)
			}),
		),
	)

	var err error
	env, err = cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now", cel.TimestampType),
		cel.Variable("args", cel.ListType(cel.DynType)),
		snippetFn,
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	return env, nil
}

func (e *Evaluator) callSnippet(env *cel.Env, bctx *binding.Context, name, args ref.Val) ref.Val {
	sname, ok := name.Value().(string)
	if !ok {
		return types.NewErr("snippet name must be a string")
	}
	var code string
	found := false
	for _, s := range bctx.Snippets {
		if s.Name == sname {
			code = s.Code
			found = true
			break
		}
	}
	if !found {
		return types.NewErr("unknown snippet %q", sname)
	}

	prg, err := e.program(env, bctx, code)
	if err != nil {
		return types.NewErr("snippet %q: %v", sname, err)
	}
	out, _, err := prg.Eval(map[string]any{
		"user": userMap(bctx),
		"now":  nowOf(bctx),
		"args": nativize(args),
	})
	if err != nil {
		return types.NewErr("snippet %q: %v", sname, err)
	}
	return out
}

func (e *Evaluator) program(env *cel.Env, bctx *binding.Context, code string) (cel.Program, error) {
	key := cacheKey(bctx, code)
	if prg, ok := e.cache.Get(key); ok {
		return prg, nil
	}

	ast, issues := env.Compile(code)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast, cel.InterruptCheckFrequency(interruptEvery))
	if err != nil {
		return nil, fmt.Errorf("program construction error: %w", err)
	}
	e.cache.Add(key, prg)
	return prg, nil
}

// cacheKey hashes the program together with the snippet set, since a program
// compiled against one snippet set must not serve a context with different
// snippet definitions.
func cacheKey(bctx *binding.Context, code string) string {
	h := sha256.New()
	h.Write([]byte(code))
	if bctx != nil {
		names := make([]string, 0, len(bctx.Snippets))
		byName := make(map[string]string, len(bctx.Snippets))
		for _, s := range bctx.Snippets {
			names = append(names, s.Name)
			byName[s.Name] = s.Code
		}
		sort.Strings(names)
		for _, n := range names {
			h.Write([]byte{0})
			h.Write([]byte(n))
			h.Write([]byte{0})
			h.Write([]byte(byName[n]))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func userMap(bctx *binding.Context) map[string]any {
	if bctx == nil || bctx.User == nil {
		return map[string]any{}
	}
	return bctx.User
}

func nowOf(bctx *binding.Context) time.Time {
	if bctx == nil || bctx.Now.IsZero() {
		return time.Now().UTC()
	}
	return bctx.Now.UTC()
}

// nativize converts a CEL result into plain Go values.
func nativize(v ref.Val) any {
	switch t := v.(type) {
	case types.String:
		return string(t)
	case types.Bool:
		return bool(t)
	case types.Int:
		return int64(t)
	case types.Double:
		return float64(t)
	case types.Timestamp:
		return t.Time
	case traits.Lister:
		var out []any
		it := t.Iterator()
		for it.HasNext() == types.True {
			out = append(out, nativize(it.Next()))
		}
		return out
	case traits.Mapper:
		out := map[string]any{}
		it := t.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			out[fmt.Sprintf("%v", k.Value())] = nativize(t.Get(k))
		}
		return out
	}
	return v.Value()
}
