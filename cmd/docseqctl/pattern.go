package main

import (
	"time"

	"github.com/spf13/cobra"

	corenumerator "docseq/internal/core/numerator"
	"docseq/internal/infrastructure/http/v1/dto"
)

func newPatternCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Check numbering patterns offline",
	}
	cmd.AddCommand(newPatternValidateCmd(), newPatternRenderCmd())
	return cmd
}

func newPatternValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [pattern]",
		Short: "Validate a numbering pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := corenumerator.Compile(args[0])
			if err != nil {
				return err
			}
			cmd.Printf("valid: width %d, period %q\n", p.Width(), p.PeriodKey(time.Now()))
			return nil
		},
	}
}

func newPatternRenderCmd() *cobra.Command {
	var (
		start int64
		count int
		asOf  string
	)

	cmd := &cobra.Command{
		Use:   "render [pattern]",
		Short: "Render sample numbers for a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := corenumerator.Compile(args[0])
			if err != nil {
				return err
			}
			date, err := dto.ParseDate("as-of", asOf)
			if err != nil {
				return err
			}
			if date.IsZero() {
				date = time.Now()
			}
			for i := 0; i < count; i++ {
				cmd.Println(p.Render(start+int64(i), date))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&start, "start", 1, "first running number")
	cmd.Flags().IntVarP(&count, "count", "n", 3, "how many numbers to render")
	cmd.Flags().StringVar(&asOf, "as-of", "", "date in YYYY-MM-DD (default today)")
	return cmd
}
