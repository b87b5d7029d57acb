// Package ptahctl is the root CLI for ptah's query-planning core: a
// debugging surface, not a query DSL or a service entrypoint.
package ptahctl

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stokaro/ptah/cmd/planshow"
)

var rootCmd = &cobra.Command{
	Use:   "ptahctl",
	Short: "Inspect the ptah query planner's materialized output",
	Long: `Ptahctl is a debugging CLI over ptah's schema/statement lowerer and
materialization planner. It carries no query DSL of its own; it loads
fixture schemas and statements and prints the plan the library produces
for them.`,
	Args: cobra.NoArgs, // Disallow unknown subcommands
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and runs it. It
// only needs to happen once.
func Execute(args ...string) {
	rootCmd.SetArgs(args)
	rootCmd.AddCommand(planshow.NewPlanshowCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1) //revive:disable-line:deep-exit
	}
}
