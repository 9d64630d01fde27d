package notify

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/loekd/MissionCriticalDemo/internal/messages"
)

// Filter wraps a compiled CEL program evaluated per status update. The zero
// expression compiles to a pass-all filter.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles a CEL expression over the status update fields, e.g.
// `success && direction == "inject"` or `total >= 50`.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("request_id", cel.StringType),
		cel.Variable("direction", cel.StringType),
		cel.Variable("amount", cel.IntType),
		cel.Variable("total", cel.IntType),
		cel.Variable("success", cel.BoolType),
		cel.Variable("fill_level", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
		// Parsed update payload for ad hoc field access
		cel.Variable("json", cel.DynType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Match evaluates the filter against one update. Evaluation errors count as
// no match.
func (f Filter) Match(update messages.StatusUpdate, payload []byte) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(payload, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"customer_id": update.CustomerID.String(),
		"request_id":  update.RequestID.String(),
		"direction":   string(update.Direction),
		"amount":      int64(update.AmountInGWh),
		"total":       int64(update.TotalAmountInGWh),
		"success":     update.Success,
		"fill_level":  int64(update.CurrentFillLevel),
		"ts_ms":       update.Timestamp.UnixMilli(),
		"now_ms":      time.Now().UnixMilli(),
		"json":        jsonObj,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
