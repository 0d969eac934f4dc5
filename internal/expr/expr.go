// Package expr compiles user-supplied CEL expressions into the optional
// classifier and override hooks used by the maintenance engine.
//
// Expressions see these variables:
//
//	is_on_expression:                state (string)
//	maintenance_needed_expression:   needed (bool), last_maintenance_date, now (timestamp)
//	predicted_date_expression:       predicted (timestamp or null), last_maintenance_date, now (timestamp)
//
// Override expressions may evaluate to null to defer to the strategy.
package expr

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/sweeney/maintenance-monitor/internal/logic"
)

// ErrCompile is returned for expressions that fail to parse or type-check.
var ErrCompile = errors.New("compile expression")

const (
	varState           = "state"
	varNeeded          = "needed"
	varPredicted       = "predicted"
	varLastMaintenance = "last_maintenance_date"
	varNow             = "now"
)

func compile(src string, want *cel.Type, opts ...cel.EnvOption) (cel.Program, error) {
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: environment: %v", ErrCompile, err)
	}
	ast, iss := env.Compile(src)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, src, iss.Err())
	}
	// Overrides may mix their result type with null, so only a fixed want is checked.
	if out := ast.OutputType(); want != nil && !out.IsExactType(want) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: %q: result is %s, want %s", ErrCompile, src, out, want)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, src, err)
	}
	return prg, nil
}

// OnPredicate compiles an is-on expression. Evaluation errors classify the
// state as off.
func OnPredicate(src string, log logr.Logger) (func(state string) bool, error) {
	prg, err := compile(src, cel.BoolType, cel.Variable(varState, cel.StringType))
	if err != nil {
		return nil, err
	}
	return func(state string) bool {
		out, _, err := prg.Eval(map[string]any{varState: state})
		if err != nil {
			log.Error(err, "evaluate is_on expression", "expression", src, "state", state)
			return false
		}
		on, ok := out.Value().(bool)
		if !ok {
			log.Info("is_on expression did not return a bool", "expression", src, "result", out.Type().TypeName())
			return false
		}
		return on
	}, nil
}

// NeededOverride compiles a maintenance-needed expression.
func NeededOverride(src string, log logr.Logger) (logic.NeededOverride, error) {
	prg, err := compile(src, nil,
		cel.Variable(varNeeded, cel.BoolType),
		cel.Variable(varLastMaintenance, cel.TimestampType),
		cel.Variable(varNow, cel.TimestampType),
	)
	if err != nil {
		return nil, err
	}
	return func(needed bool, lastMaintenance, now time.Time) (bool, bool) {
		out, _, err := prg.Eval(map[string]any{
			varNeeded:          needed,
			varLastMaintenance: lastMaintenance,
			varNow:             now,
		})
		if err != nil {
			log.Error(err, "evaluate maintenance_needed expression", "expression", src)
			return false, false
		}
		v, ok := out.Value().(bool)
		return v, ok
	}, nil
}

// PredictedOverride compiles a predicted-date expression.
func PredictedOverride(src string, log logr.Logger) (logic.PredictedOverride, error) {
	prg, err := compile(src, nil,
		cel.Variable(varPredicted, cel.DynType),
		cel.Variable(varLastMaintenance, cel.TimestampType),
		cel.Variable(varNow, cel.TimestampType),
	)
	if err != nil {
		return nil, err
	}
	return func(predicted *time.Time, lastMaintenance, now time.Time) (time.Time, bool) {
		var p any = types.NullValue
		if predicted != nil {
			p = *predicted
		}
		out, _, err := prg.Eval(map[string]any{
			varPredicted:       p,
			varLastMaintenance: lastMaintenance,
			varNow:             now,
		})
		if err != nil {
			log.Error(err, "evaluate predicted_date expression", "expression", src)
			return time.Time{}, false
		}
		v, ok := out.Value().(time.Time)
		return v, ok
	}, nil
}
