// Package eval provides the constant-folding and projection closures the
// materialization planner attaches to Const and Eval MIR nodes (spec
// §4.6 step 3's "Const/empty fast path" and step 6's "Expr(projection)"
// case): given a statement that needs no table access, or a record of
// already-fetched columns, compute the value a consumer's Returning
// clause asked for without involving the executor.
package eval

import (
	"fmt"

	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/perr"
)

// Row is one fetched record: column values in table-column order, as the
// executor would hand back from a GetByKey/QueryPk/ExecStatement result.
type Row []stmt.Value

// Func is a projection closure over a Row, used by try_build_key_filter
// and by Eval/Const nodes alike: given the current row (and, for nested
// evaluation, the rows of any sub-statement inputs already resolved),
// produce the expression's value.
type Func func(row Row, inputs []Row) (stmt.Value, error)

// Compile turns e into a Func, failing if e contains any expression kind
// without a case below: sub-statements, Exists and InSubquery (resolved
// by the executor itself, never by this package) and every other
// unlisted kind.
func Compile(e stmt.Expr) (Func, error) {
	switch e.Kind {
	case stmt.ExprValue:
		v := e.Value
		return func(Row, []Row) (stmt.Value, error) { return v, nil }, nil

	case stmt.ExprColumn:
		col := e.Column.Column
		return func(row Row, _ []Row) (stmt.Value, error) {
			if col < 0 || col >= len(row) {
				return stmt.Value{}, perr.New(perr.ErrLowering, "eval: column %d out of range for row of %d", col, len(row))
			}
			return row[col], nil
		}, nil

	case stmt.ExprArg:
		idx := e.ArgIndex
		return func(_ Row, inputs []Row) (stmt.Value, error) {
			if idx < 0 || idx >= len(inputs) {
				return stmt.Value{}, perr.New(perr.ErrLowering, "eval: arg %d out of range for %d inputs", idx, len(inputs))
			}
			if len(inputs[idx]) != 1 {
				return stmt.Value{}, perr.New(perr.ErrLowering, "eval: arg %d is not a scalar input", idx)
			}
			return inputs[idx][0], nil
		}, nil

	case stmt.ExprNot:
		inner, err := Compile(*e.Lhs)
		if err != nil {
			return nil, err
		}
		return func(row Row, inputs []Row) (stmt.Value, error) {
			v, err := inner(row, inputs)
			if err != nil {
				return stmt.Value{}, err
			}
			if v.Null {
				return stmt.NullValue(), nil
			}
			b, _ := v.V.(bool)
			return stmt.BoolValue(!b), nil
		}, nil

	case stmt.ExprIsNull:
		inner, err := Compile(*e.Lhs)
		if err != nil {
			return nil, err
		}
		negate := e.Negate
		return func(row Row, inputs []Row) (stmt.Value, error) {
			v, err := inner(row, inputs)
			if err != nil {
				return stmt.Value{}, err
			}
			return stmt.BoolValue(v.Null != negate), nil
		}, nil

	case stmt.ExprBinaryOp:
		return compileBinary(e)

	case stmt.ExprAnd, stmt.ExprOr:
		return compileConnective(e)

	case stmt.ExprRecord, stmt.ExprList:
		return compileAggregate(e)

	default:
		return nil, perr.New(perr.ErrLowering, "eval: expression kind %v is not evaluable outside the executor", e.Kind)
	}
}

func compileBinary(e stmt.Expr) (Func, error) {
	lhs, err := Compile(*e.Lhs)
	if err != nil {
		return nil, err
	}
	rhs, err := Compile(*e.Rhs)
	if err != nil {
		return nil, err
	}
	op := e.Op
	return func(row Row, inputs []Row) (stmt.Value, error) {
		l, err := lhs(row, inputs)
		if err != nil {
			return stmt.Value{}, err
		}
		r, err := rhs(row, inputs)
		if err != nil {
			return stmt.Value{}, err
		}
		if l.Null || r.Null {
			return stmt.NullValue(), nil
		}
		switch op {
		case stmt.OpEq:
			return stmt.BoolValue(l.V == r.V), nil
		case stmt.OpNe:
			return stmt.BoolValue(l.V != r.V), nil
		default:
			return stmt.Value{}, perr.New(perr.ErrLowering, "eval: binary op %v needs ordered comparison, unsupported in this backend-agnostic evaluator", op)
		}
	}, nil
}

func compileConnective(e stmt.Expr) (Func, error) {
	funcs := make([]Func, len(e.Items))
	for i, it := range e.Items {
		f, err := Compile(it)
		if err != nil {
			return nil, err
		}
		funcs[i] = f
	}
	isAnd := e.Kind == stmt.ExprAnd
	return func(row Row, inputs []Row) (stmt.Value, error) {
		sawNull := false
		for _, f := range funcs {
			v, err := f(row, inputs)
			if err != nil {
				return stmt.Value{}, err
			}
			if v.Null {
				sawNull = true
				continue
			}
			b, _ := v.V.(bool)
			if isAnd && !b {
				return stmt.BoolValue(false), nil
			}
			if !isAnd && b {
				return stmt.BoolValue(true), nil
			}
		}
		if sawNull {
			return stmt.NullValue(), nil
		}
		return stmt.BoolValue(isAnd), nil
	}, nil
}

func compileAggregate(e stmt.Expr) (Func, error) {
	funcs := make([]Func, len(e.Items))
	for i, it := range e.Items {
		f, err := Compile(it)
		if err != nil {
			return nil, err
		}
		funcs[i] = f
	}
	return func(row Row, inputs []Row) (stmt.Value, error) {
		out := make(Row, len(funcs))
		for i, f := range funcs {
			v, err := f(row, inputs)
			if err != nil {
				return stmt.Value{}, err
			}
			out[i] = v
		}
		return stmt.Value{Ty: 0, V: out}, nil
	}, nil
}

// Fold evaluates e against no row/inputs, for the Const fast path (spec
// §4.6 step 3) where the whole expression is already a closed literal
// once lowering and simplification have run.
func Fold(e stmt.Expr) (stmt.Value, error) {
	f, err := Compile(e)
	if err != nil {
		return stmt.Value{}, err
	}
	v, err := f(nil, nil)
	if err != nil {
		return stmt.Value{}, fmt.Errorf("eval: fold: %w", err)
	}
	return v, nil
}
