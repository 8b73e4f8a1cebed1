package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stemsi/exstem-adaptive/internal/simulation"
)

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run synthetic students through a rule-based room and report how sessions stop",
		RunE:  runSimulate,
	}
	f := cmd.Flags()
	f.IntP("students", "n", 20, "Number of simulated students")
	f.Float64P("ability", "a", 0, "Student ability on a logit scale (0 = even odds at C3)")
	f.Int("max-items", 20, "Room question count (the rule-based item cap)")
	f.Int("per-cell", 5, "Bank questions per level and difficulty")
	f.Int64("selection-seed", 1, "Seed for question selection and simulated responses")
	f.Bool("json", false, "Print the report as JSON")
	engineFlags(cmd)
	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	log := setupLogger(v)

	params := simulation.Params{
		Students: v.GetInt("students"),
		Ability:  v.GetFloat64("ability"),
		MaxItems: v.GetInt("max-items"),
		PerCell:  v.GetInt("per-cell"),
		Seed:     v.GetInt64("selection-seed"),
		Engine:   engineFrom(v),
	}
	log.Info().
		Int("students", params.Students).
		Float64("ability", params.Ability).
		Int("max_items", params.MaxItems).
		Float64("lambda", params.Engine.Lambda).
		Float64("min_ratio", params.Engine.MinRatio).
		Msg("Starting simulation")

	report, err := simulation.Run(cmd.Context(), params, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if v.GetBool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STUDENT\tANSWERED\tCORRECT\tSCORE\tREASON")
	for i, r := range report.Runs {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.2f\t%s\n", i+1, r.Answered, r.Correct, r.TrueScore, r.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	reasons := make([]string, 0, len(report.Reasons))
	for reason := range report.Reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	fmt.Fprintf(out, "\nmean score %.2f, mean items %.2f\n", report.MeanScore, report.MeanItems)
	for _, reason := range reasons {
		fmt.Fprintf(out, "  %-22s %d\n", reason, report.Reasons[reason])
	}
	return nil
}
