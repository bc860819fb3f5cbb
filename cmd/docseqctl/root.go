package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"docseq/internal/infrastructure/numerator"
	"docseq/internal/infrastructure/storage/postgres"
	"docseq/internal/infrastructure/storage/postgres/numbering_repo"
	"docseq/pkg/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "docseqctl",
		Short:        "Operate document numbering and calculations",
		SilenceUsage: true,
	}

	root.AddCommand(
		newVersionCmd(),
		newPatternCmd(),
		newSummaryCmd(),
		newRulesCmd(),
		newAllocateCmd(),
		newMigrateCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("docseqctl version %s\n", version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// backend holds the database-backed services used by online commands.
type backend struct {
	pool      *postgres.Pool
	numerator *numerator.Service
}

func (b *backend) Close() {
	b.pool.Close()
}

// openBackend connects using the same configuration as the server.
func openBackend(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	txManager := postgres.NewTxManager(pool)
	audit, err := postgres.NewAuditService(txManager, cfg.Audit.CompressThreshold)
	if err != nil {
		pool.Close()
		return nil, err
	}

	rules := numbering_repo.NewRepo(txManager)
	return &backend{
		pool: pool,
		numerator: numerator.NewService(numerator.ServiceConfig{
			Rules:     rules,
			Scanner:   rules,
			TxManager: txManager,
			Audit:     audit,
			Options:   cfg.Numbering.Options(),
		}),
	}, nil
}
