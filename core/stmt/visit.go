package stmt

// Walk performs a pre-order, read-only traversal of e and its
// descendants, calling fn on every node including e itself. It does not
// descend into sub-statements (Sub fields); callers that need to reach
// nested statements call Walk again on Sub.Filter/Sub.Condition/etc.
// explicitly, mirroring the original engine's scope-bounded visitors
// (spec §4.3 "Scope stack").
func Walk(e Expr, fn func(Expr)) {
	fn(e)
	for _, child := range children(e) {
		Walk(child, fn)
	}
}

func children(e Expr) []Expr {
	switch e.Kind {
	case ExprProject:
		return []Expr{*e.Base}
	case ExprRecord, ExprList, ExprAnd, ExprOr, ExprConcatStr:
		return e.Items
	case ExprCast, ExprNot:
		return []Expr{*e.Lhs}
	case ExprIsNull, ExprLike:
		return []Expr{*e.Lhs}
	case ExprInList:
		out := make([]Expr, 0, len(e.Items)+1)
		out = append(out, *e.Lhs)
		out = append(out, e.Items...)
		return out
	case ExprBinaryOp:
		return []Expr{*e.Lhs, *e.Rhs}
	case ExprFunc:
		return e.Items
	case ExprDecodeEnum:
		return []Expr{*e.Lhs}
	case ExprMatch:
		out := make([]Expr, 0, len(e.MatchArms)+2)
		if e.MatchOn != nil {
			out = append(out, *e.MatchOn)
		}
		for _, arm := range e.MatchArms {
			out = append(out, arm.Body)
		}
		if e.MatchElse != nil {
			out = append(out, *e.MatchElse)
		}
		return out
	case ExprMap:
		out := make([]Expr, 0, len(e.Items)+1)
		out = append(out, e.Items...)
		if e.Lambda != nil {
			out = append(out, *e.Lambda)
		}
		return out
	default:
		return nil
	}
}

// Transform performs a post-order, bottom-up rewrite: every descendant of
// e is transformed first (children before parent), then fn is applied to
// the resulting node. This is the shape the simplifier relies on, since a
// rule like OR-flattening needs its operands already in normal form
// before it can detect nested Or/And/constant shapes (spec §9
// "Simplifier placement").
func Transform(e Expr, fn func(Expr) Expr) Expr {
	out := mapChildren(e, func(c Expr) Expr { return Transform(c, fn) })
	return fn(out)
}

func mapChildren(e Expr, f func(Expr) Expr) Expr {
	switch e.Kind {
	case ExprProject:
		base := f(*e.Base)
		e.Base = &base
	case ExprRecord, ExprList, ExprAnd, ExprOr, ExprConcatStr:
		items := make([]Expr, len(e.Items))
		for i, it := range e.Items {
			items[i] = f(it)
		}
		e.Items = items
	case ExprCast, ExprNot:
		l := f(*e.Lhs)
		e.Lhs = &l
	case ExprIsNull, ExprLike:
		l := f(*e.Lhs)
		e.Lhs = &l
	case ExprInList:
		l := f(*e.Lhs)
		e.Lhs = &l
		items := make([]Expr, len(e.Items))
		for i, it := range e.Items {
			items[i] = f(it)
		}
		e.Items = items
	case ExprBinaryOp:
		l := f(*e.Lhs)
		r := f(*e.Rhs)
		e.Lhs, e.Rhs = &l, &r
	case ExprFunc:
		items := make([]Expr, len(e.Items))
		for i, it := range e.Items {
			items[i] = f(it)
		}
		e.Items = items
	case ExprDecodeEnum:
		l := f(*e.Lhs)
		e.Lhs = &l
	case ExprMatch:
		if e.MatchOn != nil {
			m := f(*e.MatchOn)
			e.MatchOn = &m
		}
		arms := make([]MatchArm, len(e.MatchArms))
		for i, arm := range e.MatchArms {
			arms[i] = MatchArm{Tag: arm.Tag, Body: f(arm.Body)}
		}
		e.MatchArms = arms
		if e.MatchElse != nil {
			m := f(*e.MatchElse)
			e.MatchElse = &m
		}
	case ExprMap:
		items := make([]Expr, len(e.Items))
		for i, it := range e.Items {
			items[i] = f(it)
		}
		e.Items = items
		if e.Lambda != nil {
			l := f(*e.Lambda)
			e.Lambda = &l
		}
	}
	return e
}

// TransformStatement applies fn to every top-level expression slot of s
// (Filter, Condition, Returning.Expr, each Assignment value) without
// descending into InsertSource or Returning's nested sub-statements,
// which callers simplify independently via their own Statement.
func TransformStatement(s *Statement, fn func(Expr) Expr) {
	if s.Filter != nil {
		nf := Transform(*s.Filter, fn)
		s.Filter = &nf
	}
	if s.Condition != nil {
		nc := Transform(*s.Condition, fn)
		s.Condition = &nc
	}
	if s.Returning != nil && (s.Returning.Kind == ReturningExpr || s.Returning.Kind == ReturningValue) {
		s.Returning.Expr = Transform(s.Returning.Expr, fn)
	}
	for i := range s.Assignments {
		s.Assignments[i].Value = Transform(s.Assignments[i].Value, fn)
	}
}
