// Package config provides a small, programmatic options struct for the
// query planner, mirroring the teacher's config.CompareOptions: a
// default constructor plus fluent "With..." copiers, no config-file
// parsing (the planner is a library, not a standalone service).
package config

// PlannerOptions controls planner behavior that isn't determined purely
// by the schema, statement, and capability descriptor.
type PlannerOptions struct {
	// MaxSubqueryDepth bounds how many nested Ref/Sub levels the
	// lowerer will unfold before returning a capability error; it
	// guards against runaway recursion on a cyclic relation schema that
	// slipped past the cycle-prevention stack (spec §4.5).
	MaxSubqueryDepth int

	// CollationLocale, when non-empty, is a BCP-47 locale tag used to
	// normalize LIKE/BEGINS_WITH prefix comparisons via
	// golang.org/x/text/collate during simplification, instead of plain
	// byte-wise comparison.
	CollationLocale string
}

// DefaultPlannerOptions returns the options the planner uses unless
// overridden.
func DefaultPlannerOptions() *PlannerOptions {
	return &PlannerOptions{
		MaxSubqueryDepth: 32,
		CollationLocale:  "",
	}
}

// WithMaxSubqueryDepth returns a copy of o with MaxSubqueryDepth set to n.
func (o *PlannerOptions) WithMaxSubqueryDepth(n int) *PlannerOptions {
	out := *o
	out.MaxSubqueryDepth = n
	return &out
}

// WithCollationLocale returns a copy of o with CollationLocale set to
// locale.
func (o *PlannerOptions) WithCollationLocale(locale string) *PlannerOptions {
	out := *o
	out.CollationLocale = locale
	return &out
}
