package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"docseq/internal/domain/pricing"
	"docseq/internal/infrastructure/http/v1/dto"
)

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary [file|-]",
		Short: "Compute line amounts and totals from a JSON file",
		Long: `Reads {"items": [...]} in the same shape as POST /api/v1/summary
and prints the computed lines and summary. Use - to read standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var req dto.SummaryRequest
			if err := json.NewDecoder(r).Decode(&req); err != nil {
				return fmt.Errorf("decode items: %w", err)
			}

			lines, summary := pricing.Calculate(dto.ToInputs(req.Items))
			return writeJSON(cmd.OutOrStdout(), dto.CalculationResponse{
				Lines:   dto.FromLines(lines),
				Summary: dto.FromSummary(summary),
			})
		},
	}
}
