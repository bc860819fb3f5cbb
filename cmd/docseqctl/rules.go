package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docseq/internal/core/entity"
	corenumerator "docseq/internal/core/numerator"
	"docseq/internal/infrastructure/http/v1/dto"
	"docseq/internal/infrastructure/storage/postgres"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and change numbering rules",
	}
	cmd.AddCommand(newRulesListCmd(), newRulesSetCmd())
	return cmd
}

func newRulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List numbering rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			rules, err := b.numerator.Rules(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range rules {
				cmd.Printf("%-16s %-20s current=%d period=%q\n", r.DocumentType, r.Pattern, r.CurrentNumber, r.PeriodKey)
			}
			return nil
		},
	}
}

func newRulesSetCmd() *cobra.Command {
	var current int64

	cmd := &cobra.Command{
		Use:   "set [document-type] [pattern]",
		Short: "Replace the pattern of a rule, optionally resetting its counter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docType, err := entity.ParseDocumentType(args[0])
			if err != nil {
				return err
			}
			// fail before connecting
			if err := corenumerator.ValidatePattern(args[1]); err != nil {
				return err
			}

			update := corenumerator.RuleUpdate{Pattern: args[1]}
			if cmd.Flags().Changed("current") {
				update.CurrentNumber = &current
			}

			b, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			rule, err := b.numerator.ConfigureRule(cmd.Context(), docType, update)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), dto.FromRule(*rule))
		},
	}
	cmd.Flags().Int64Var(&current, "current", 0, "reset the counter to this value")
	return cmd
}

func newAllocateCmd() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "allocate [document-type]",
		Short: "Allocate the next number outside of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docType, err := entity.ParseDocumentType(args[0])
			if err != nil {
				return err
			}
			date, err := dto.ParseDate("as-of", asOf)
			if err != nil {
				return err
			}

			b, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			alloc, err := b.numerator.Allocate(cmd.Context(), docType, date)
			if err != nil {
				return err
			}
			cmd.Println(alloc.Number)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "date in YYYY-MM-DD (default today)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			if err := postgres.RunMigrations(b.pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
