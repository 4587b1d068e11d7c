package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/sequencer"
	"github.com/mensylisir/craftkit/pkg/step"
)

var planOnlyFlag bool

func addPlanOnlyFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&planOnlyFlag, "plan-only", false, "Print the action plan without executing it")
}

// renderPlan prints a plan's actions as a border-free, tab-padded table.
func renderPlan(actions []sequencer.Action) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Part", "Step", "Action", "Reason"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	rows := make([][]string, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, []string{a.PartName, a.Step.String(), a.Type.String(), a.Reason})
	}
	table.AppendBulk(rows)

	fmt.Println()
	table.Render()
	fmt.Println()
}

// runToStep plans and executes target for partNames, rendering a plan
// table instead when planOnlyFlag is set.
func runToStep(cmd *cobra.Command, target step.Step, partNames []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	m, _, err := buildManager(workDir)
	if err != nil {
		return err
	}

	actions, err := m.Plan(cmd.Context(), target, partNames, updateFlag)
	if err != nil {
		return err
	}

	if planOnlyFlag {
		renderPlan(actions)
		return nil
	}

	bar := progressbar.NewOptions(len(actions),
		progressbar.OptionSetDescription(fmt.Sprintf("Running %s", target)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)

	m.Callbacks().RegisterPostStep(func(ctx context.Context, p *part.Part, s step.Step) error {
		return bar.Add(1)
	})

	_, err = m.Run(cmd.Context(), target, partNames, updateFlag)
	return err
}
