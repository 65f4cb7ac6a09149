package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/app"
	"github.com/noah-isme/paud-api/migrations"
	"github.com/noah-isme/paud-api/pkg/config"
	"github.com/noah-isme/paud-api/pkg/database"
	"github.com/noah-isme/paud-api/pkg/logger"
)

// env is the process state shared by every subcommand. Tests replace connect.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB

	connect func(cfg config.DatabaseConfig) (*sqlx.DB, error)
}

func (e *env) open() error {
	var err error
	if e.cfg == nil {
		if e.cfg, err = config.Load(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if e.logger == nil {
		if e.logger, err = logger.New(e.cfg); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	if e.db == nil {
		if e.db, err = e.connect(e.cfg.Database); err != nil {
			return err
		}
	}
	return nil
}

// services wires the domain services without the export workers, which the CLI never runs.
func (e *env) services() (*app.Container, error) {
	cfg := *e.cfg
	cfg.Exports.Enabled = false
	return app.New(&cfg, e.db, nil, e.logger)
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

func newRootCommand(e *env) *cobra.Command {
	if e.connect == nil {
		e.connect = database.NewPostgres
	}
	root := &cobra.Command{
		Use:           "paudctl",
		Short:         "Administrative tasks for the PAUD API database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}
	root.AddCommand(newImportCommand(e), newMigrateCommand(e), newTermsCommand(e))
	return root
}

func newImportCommand(e *env) *cobra.Command {
	importCmd := &cobra.Command{Use: "import", Short: "Bulk imports"}
	var failOnErrors bool
	rosterCmd := &cobra.Command{
		Use:   "roster FILE",
		Short: "Import students and parent contacts from a roster CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(); err != nil {
				return err
			}
			container, err := e.services()
			if err != nil {
				return err
			}
			report := container.Roster.ImportFile(cmd.Context(), args[0])
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if failOnErrors && len(report.Errors) > 0 {
				return fmt.Errorf("%d rows failed", len(report.Errors))
			}
			return nil
		},
	}
	rosterCmd.Flags().BoolVar(&failOnErrors, "strict", false, "exit non-zero when any row fails")
	importCmd.AddCommand(rosterCmd)
	return importCmd
}

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|status|version",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(); err != nil {
				return err
			}
			if err := database.Migrate(cmd.Context(), e.db.DB, migrations.FS, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", args[0])
			return nil
		},
	}
}

func newTermsCommand(e *env) *cobra.Command {
	termsCmd := &cobra.Command{Use: "terms", Short: "Academic term administration"}
	var actor string
	activateCmd := &cobra.Command{
		Use:   "activate TERM_ID",
		Short: "Make a term the active one, deactivating the others",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(); err != nil {
				return err
			}
			container, err := e.services()
			if err != nil {
				return err
			}
			term, err := container.Calendar.ActivateTerm(cmd.Context(), actor, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), term)
		},
	}
	activateCmd.Flags().StringVar(&actor, "actor", "", "user id recorded in the audit log")
	termsCmd.AddCommand(activateCmd)
	return termsCmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
