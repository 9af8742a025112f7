package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wakala/glrecon/internal/anomaly"
	"github.com/wakala/glrecon/internal/config"
	"github.com/wakala/glrecon/internal/detection"
	"github.com/wakala/glrecon/internal/ingestion"
	"github.com/wakala/glrecon/internal/logger"
	"github.com/wakala/glrecon/internal/report"
	"github.com/wakala/glrecon/internal/repository"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:          "detect",
		Short:        "Flag accounts whose GL/sub-ledger balance differences are anomalous",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent account workers")
	root.PersistentFlags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "isolation forest random seed")
	root.PersistentFlags().IntVar(&cfg.Trees, "trees", cfg.Trees, "isolation forest tree count")

	root.AddCommand(newRunCmd(cfg), newIngestCmd(cfg))
	return root
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var input, output, xlsx, db string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run detection over an input table and write the output table",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(cfg.LogLevel)
			if db == "" {
				db = ":memory:"
			}
			return runDetection(cmd.Context(), cfg, log, db, input, output, xlsx)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input table CSV (optional when --db already holds records)")
	cmd.Flags().StringVarP(&output, "output", "o", "predictions.csv", "output table CSV")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "also write an XLSX report to this path")
	cmd.Flags().StringVar(&db, "db", "", "SQLite record store (default: in-memory)")
	return cmd
}

func newIngestCmd(cfg *config.Config) *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Load input tables into a persistent record store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(cfg.LogLevel)
			conn, err := repository.InitDB(db)
			if err != nil {
				return err
			}
			defer conn.Close()

			svc := ingestion.NewService(repository.NewRecordRepo(conn), nil, logger.Component(log, "ingestion"))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, err := svc.IngestCSV(cmd.Context(), data, filepath.Base(path))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records, %d duplicates, %d row issues\n",
					path, res.RecordsIngested, res.DuplicatesSkipped, res.RowIssues)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", cfg.DBPath, "SQLite record store")
	return cmd
}

func runDetection(ctx context.Context, cfg *config.Config, log zerolog.Logger, dbPath, input, output, xlsx string) error {
	conn, err := repository.InitDB(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	records := repository.NewRecordRepo(conn)
	verdicts := repository.NewVerdictRepo(conn)

	if input != "" {
		data, err := os.ReadFile(input)
		if err != nil {
			return err
		}
		ing := ingestion.NewService(records, nil, logger.Component(log, "ingestion"))
		if _, err := ing.IngestCSV(ctx, data, filepath.Base(input)); err != nil {
			return err
		}
	}

	opts := detection.Options{
		Workers: cfg.Workers,
		Gate:    anomaly.Gate{MinHistory: cfg.MinHistory, ConstantStd: cfg.ConstantStd},
		Model:   anomaly.Config{Trees: cfg.Trees, MaxSamples: cfg.MaxSamples, Seed: cfg.Seed},
	}
	svc := detection.NewService(records, verdicts, opts, logger.Component(log, "detection"))
	run, table, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	if err := writeFile(output, func(f *os.File) error { return report.WriteCSV(f, table) }); err != nil {
		return err
	}
	if xlsx != "" {
		if err := writeFile(xlsx, func(f *os.File) error { return report.WriteXLSX(f, table) }); err != nil {
			return err
		}
	}

	log.Info().Str("run_id", run.ID).Int("accounts", run.Accounts).
		Int("anomalous", run.AnomalousAccounts).Str("output", output).Msg("report written")
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
