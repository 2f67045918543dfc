// Package filter selects events with CEL expressions.
//
// Expressions see these variables:
//
//	type      string  "data", "status" or "log"
//	endpoint  string  endpoint label of the call
//	fn_index  int
//	stage     string  status stage, "" for other events
//	status    map     the status as JSON fields, empty for other events
//	data      list    output values, empty for other events
//	log       string  log text, "" for other events
//	level     string  log level
//
// For example: `type == "status" && stage == "complete"` or
// `type == "data" && size(data) > 0`.
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/inercia/spaceclient/client"
)

// Filter is a compiled expression. It is safe for concurrent use.
type Filter struct {
	expr string
	prg  cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("type", cel.StringType),
		cel.Variable("endpoint", cel.StringType),
		cel.Variable("fn_index", cel.IntType),
		cel.Variable("stage", cel.StringType),
		cel.Variable("status", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("data", cel.ListType(cel.DynType)),
		cel.Variable("log", cel.StringType),
		cel.Variable("level", cel.StringType),
	)
}

// Compile parses and type-checks expr, which must yield a bool.
func Compile(expr string) (*Filter, error) {
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("filter environment: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Match evaluates the filter against ev. A nil Filter matches everything.
func (f *Filter) Match(ev client.Event) (bool, error) {
	if f == nil {
		return true, nil
	}
	vars, err := variables(ev)
	if err != nil {
		return false, err
	}
	out, _, err := f.prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T", f.expr, out.Value())
	}
	return b, nil
}

func variables(ev client.Event) (map[string]any, error) {
	vars := map[string]any{
		"type":     string(ev.Type),
		"endpoint": ev.Endpoint,
		"fn_index": int64(ev.FnIndex),
		"stage":    "",
		"status":   map[string]any{},
		"data":     []any{},
		"log":      "",
		"level":    "",
	}
	if ev.Data != nil {
		data, err := normalize(ev.Data)
		if err != nil {
			return nil, err
		}
		vars["data"] = data
	}
	if ev.Status != nil {
		vars["stage"] = string(ev.Status.Stage)
		status, err := normalize(ev.Status)
		if err != nil {
			return nil, err
		}
		vars["status"] = status
	}
	if ev.Log != nil {
		vars["log"] = ev.Log.Log
		vars["level"] = ev.Log.Level
	}
	return vars, nil
}

// normalize converts v to the plain JSON shapes CEL understands.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return out, nil
}
