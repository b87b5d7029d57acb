// Package planshow is a debugging CLI, not a query DSL: it loads a
// canned schema and statement fixture and prints the MIR node list the
// materialization planner produces for it.
package planshow

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/go-extras/go-kit/must"
	"github.com/spf13/cobra"

	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/schema/mapbuild"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/capability"
	"github.com/stokaro/ptah/engine/lower"
	"github.com/stokaro/ptah/engine/mir"
	"github.com/stokaro/ptah/engine/plan"
)

const backendFlag = "backend"

var flags = map[string]cobraflags.Flag{
	backendFlag: &cobraflags.StringFlag{
		Name:  backendFlag,
		Value: "postgres",
		Usage: "Target backend capability preset (postgres, mysql, sqlite, dynamodb)",
	},
}

var planshowCmd = &cobra.Command{
	Use:   "planshow",
	Short: "Show the materialized plan for a fixture query",
	Long: `Planshow lowers and materializes a canned Query-by-name statement
against a fixture User schema and prints the resulting MIR node list.

It exists to make the planner's output inspectable during development; it
is not a query builder or a supported public API.`,
	RunE: runPlanshow,
}

// NewPlanshowCommand returns the planshow subcommand for wiring into a
// root command.
func NewPlanshowCommand() *cobra.Command {
	cobraflags.RegisterMap(planshowCmd, flags)
	return planshowCmd
}

func runPlanshow(_ *cobra.Command, _ []string) error {
	cap, err := backendCapability(flags[backendFlag].GetString())
	if err != nil {
		return err
	}

	app := fixtureSchema()
	db := must.Must(mapbuild.Build(app, cap))

	root := fixtureStatement()
	l := lower.New(app, db, cap, nil)
	arena, err := l.Lower(root)
	if err != nil {
		return fmt.Errorf("lowering fixture statement: %w", err)
	}

	graph, err := plan.New(arena, db, cap).Plan()
	if err != nil {
		return fmt.Errorf("materializing plan: %w", err)
	}

	printGraph(graph)
	return nil
}

func backendCapability(name string) (capability.Capability, error) {
	switch name {
	case "postgres":
		return capability.Postgres(), nil
	case "mysql":
		return capability.MySQL(), nil
	case "sqlite":
		return capability.SQLite(), nil
	case "dynamodb":
		return capability.DynamoDB(), nil
	default:
		return capability.Capability{}, fmt.Errorf("unknown backend %q (want postgres, mysql, sqlite, dynamodb)", name)
	}
}

func printGraph(g *mir.Graph) {
	fmt.Printf("plan: %d node(s), root=%d\n\n", len(g.Nodes), g.Root)
	for _, n := range g.Nodes {
		marker := " "
		if n.ID == g.Root {
			marker = "*"
		}
		fmt.Printf("%s [%d] %s deps=%v\n", marker, n.ID, n.Op.Kind, n.Deps)
	}
}

// fixtureSchema builds a small User model: id (PK, autoincrement i64),
// name (string), email (string).
func fixtureSchema() *schema.Schema {
	userID := schema.ModelID(0)
	return &schema.Schema{
		Models: []schema.Model{
			{
				ID:        userID,
				Name:      "User",
				TableName: "users",
				Fields: []schema.Field{
					{ID: schema.FieldID{Model: userID, Index: 0}, Name: "id", Kind: schema.FieldPrimitive, Ty: schema.TyI64, AutoInc: true},
					{ID: schema.FieldID{Model: userID, Index: 1}, Name: "name", Kind: schema.FieldPrimitive, Ty: schema.TyString},
					{ID: schema.FieldID{Model: userID, Index: 2}, Name: "email", Kind: schema.FieldPrimitive, Ty: schema.TyString},
				},
				PrimaryKey: schema.PrimaryKey{Fields: []int{0}},
			},
		},
	}
}

// fixtureStatement is "select the User named alice".
func fixtureStatement() *stmt.Statement {
	filter := stmt.Binary(stmt.OpEq,
		stmt.Field(0, schema.FieldID{Model: 0, Index: 1}),
		stmt.Lit(schema.TyString, "alice"))
	return &stmt.Statement{
		Kind:      stmt.StmtQuery,
		Source:    stmt.Source{Kind: stmt.SourceModel, Model: 0},
		Filter:    &filter,
		Returning: &stmt.Returning{Kind: stmt.ReturningModel},
	}
}
