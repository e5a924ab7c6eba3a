package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stonegoods/catmig/internal/cli/appctx"
	"github.com/stonegoods/catmig/internal/migrate"
	"github.com/stonegoods/catmig/internal/reconcile"
)

var classifyCmd = &cobra.Command{
	Use:   "classify NAME [DESCRIPTION]",
	Short: "Show which category rule a product name would match",
	Long: `Classify runs the keyword rules over a product name and optional
description and prints the target category, the source tag and the unit
a new product would get. No database is needed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: appctx.WithApp(appctx.Options{NeedsDB: false}, runClassify),
}

var classifyJSON bool

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Output as JSON")
}

type classification struct {
	Name    string `json:"name"`
	Matched bool   `json:"matched"`
	Rule    string `json:"rule,omitempty"`
	Target  string `json:"target,omitempty"`
	Source  string `json:"source"`
	Unit    string `json:"unit"`
}

func runClassify(app *appctx.App, cmd *cobra.Command, args []string) error {
	rules, err := ruleSet(app.Config)
	if err != nil {
		return exitError(1, err)
	}

	name := args[0]
	var desc string
	if len(args) > 1 {
		desc = args[1]
	}

	res := classification{Name: name, Source: migrate.SourceFor(name)}
	if rule, ok := reconcile.Classify(rules.Rules, name, desc); ok {
		res.Matched = true
		res.Rule = rule.Name
		res.Target = rule.Target
	}
	res.Unit = migrate.UnitFor(res.Target)

	out := cmd.OutOrStdout()
	if classifyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Matched {
		fmt.Fprintf(out, "target: %s (rule %s)\n", res.Target, res.Rule)
	} else {
		fmt.Fprintln(out, "target: none (fallback category)")
	}
	fmt.Fprintf(out, "source: %s\n", res.Source)
	fmt.Fprintf(out, "unit:   %s\n", res.Unit)
	return nil
}
