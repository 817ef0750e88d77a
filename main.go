package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alc6/sqlsnap/compare"
	"github.com/alc6/sqlsnap/config"
	"github.com/alc6/sqlsnap/dump"
	"github.com/alc6/sqlsnap/engine"
)

// errDrift is returned by compare --fail-on-diff when differences exist.
var errDrift = errors.New("schema drift detected")

var logLevel = new(slog.LevelVar)

type rootOptions struct {
	mcpMode    bool
	verbose    bool
	configPath string
	envFile    string
}

func main() {
	if err := run(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd(newFactory()).ExecuteContext(ctx)
}

func newRootCmd(opener BundleOpener) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlsnap",
		Short: "Back up SQL databases and compare schemas using read-only access",
		Long: `sqlsnap produces a self-contained, replayable SQL script recreating a
database's structure and data using only read privileges, and compares two
schemas to list structural drift with ready-to-apply fix statements.

Engines: postgres, oracle, mysql.

Modes:
  backup:  write a backup file
  compare: diff a source schema against a target schema
  inspect: show tables, columns, constraints and indexes
  ddl:     render a schema as DDL for another engine
  --mcp:   run as Model Context Protocol server`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.verbose {
				logLevel.Set(slog.LevelDebug)
			}
			return config.LoadEnv(opts.envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.mcpMode {
				slog.Info("starting mcp server")
				return StartMCPServer(opener, opts.configPath)
			}
			return cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&opts.configPath, "config", "", "Config file with connection profiles (default sqlsnap.yaml)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before resolving connections")
	cmd.Flags().BoolVar(&opts.mcpMode, "mcp", false, "Run as Model Context Protocol server")

	cmd.AddCommand(
		newBackupCmd(opener, opts),
		newCompareCmd(opener, opts),
		newInspectCmd(opener, opts),
		newDDLCmd(opener, opts),
	)
	return cmd
}

func newBackupCmd(opener BundleOpener, root *rootOptions) *cobra.Command {
	var (
		conn         connFlags
		outputDir    string
		tables       []string
		pageSize     int
		createDB     bool
		skipFuncs    bool
		skipTriggers bool
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a replayable SQL backup of one schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := conn.resolve(root.configPath)
			if err != nil {
				return err
			}

			if file, err := loadConfig(root.configPath, false); err != nil {
				return err
			} else if file != nil {
				applyBackupDefaults(cmd, file.Backup, &outputDir, &tables, &pageSize)
			}

			opts := dump.Options{
				OutputDir:      outputDir,
				Tables:         tables,
				CreateDatabase: createDB,
				Functions:      !skipFuncs,
				Triggers:       !skipTriggers,
			}
			summary, err := backupCore(cmd.Context(), opener, target, opts, pageSize)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s (%d tables, %d rows, %s)\n",
				summary.Path, summary.Tables, summary.Rows, summary.Duration.Round(time.Millisecond))
			return nil
		},
	}

	conn.register(cmd, "", "database")
	f := cmd.Flags()
	f.StringVarP(&outputDir, "output", "o", ".", "Directory the backup file is written to")
	f.StringSliceVarP(&tables, "tables", "t", nil, "Back up only these tables (comma separated)")
	f.IntVar(&pageSize, "page-size", engine.DefaultPageSize, "Rows fetched per cursor page")
	f.BoolVar(&createDB, "create-database", false, "Emit CREATE DATABASE as a statement instead of a comment")
	f.BoolVar(&skipFuncs, "no-functions", false, "Skip functions and procedures")
	f.BoolVar(&skipTriggers, "no-triggers", false, "Skip triggers")
	return cmd
}

// applyBackupDefaults fills flags the user did not set from the config file.
func applyBackupDefaults(cmd *cobra.Command, defaults config.Backup, outputDir *string, tables *[]string, pageSize *int) {
	f := cmd.Flags()
	if defaults.OutputDir != "" && !f.Changed("output") {
		*outputDir = defaults.OutputDir
	}
	if len(defaults.Tables) > 0 && !f.Changed("tables") {
		*tables = defaults.Tables
	}
	if defaults.PageSize > 0 && !f.Changed("page-size") {
		*pageSize = defaults.PageSize
	}
}

func newCompareCmd(opener BundleOpener, root *rootOptions) *cobra.Command {
	var (
		source, target connFlags
		tables         []string
		csvPath        string
		showFixes      bool
		failOnDiff     bool
		skipObjects    bool
		targetDialect  bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "List structural drift from a source schema to a target schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := source.resolve(root.configPath)
			if err != nil {
				return err
			}
			dst, err := target.resolve(root.configPath)
			if err != nil {
				return err
			}

			opts := compare.Options{Tables: tables, Functions: !skipObjects, Triggers: !skipObjects, TargetDialect: targetDialect}
			result, err := compareCore(cmd.Context(), opener, src, dst, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := WriteReport(out, result); err != nil {
				return err
			}
			if showFixes && result.HasDifferences() {
				fmt.Fprintln(out)
				if err := WriteFixes(out, result); err != nil {
					return err
				}
			}
			if csvPath != "" {
				if err := ExportCSV(csvPath, result); err != nil {
					return err
				}
				slog.Info("report exported", "path", csvPath, "diffs", len(result.Diffs))
			}

			if failOnDiff && result.HasDifferences() {
				return errDrift
			}
			return nil
		},
	}

	source.register(cmd, "source", "source")
	target.register(cmd, "target", "target")
	f := cmd.Flags()
	f.StringSliceVarP(&tables, "tables", "t", nil, "Compare only these tables (comma separated)")
	f.StringVar(&csvPath, "csv", "", "Export the report as CSV to this path")
	f.BoolVar(&showFixes, "fixes", false, "Print fix statements after the report")
	f.BoolVar(&failOnDiff, "fail-on-diff", false, "Exit with an error when differences are found")
	f.BoolVar(&skipObjects, "no-objects", false, "Skip function and trigger comparison")
	f.BoolVar(&targetDialect, "target-dialect", false, "Write fixes in the target engine's dialect instead of the source's")
	return cmd
}

func newInspectCmd(opener BundleOpener, root *rootOptions) *cobra.Command {
	var (
		conn   connFlags
		tables []string
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the tables of one schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := conn.resolve(root.configPath)
			if err != nil {
				return err
			}

			output, err := inspectCore(cmd.Context(), opener, target, tables)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "=== DATABASE SCHEMA ===")
			fmt.Fprint(cmd.OutOrStdout(), output)
			return nil
		},
	}

	conn.register(cmd, "", "database")
	cmd.Flags().StringSliceVarP(&tables, "tables", "t", nil, "Inspect only these tables (comma separated)")
	return cmd
}

func newDDLCmd(opener BundleOpener, root *rootOptions) *cobra.Command {
	var (
		conn   connFlags
		tables []string
		to     string
	)

	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Render a schema as DDL, optionally for another engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := conn.resolve(root.configPath)
			if err != nil {
				return err
			}

			target := source.Engine
			if to != "" {
				if target, err = engine.ParseType(to); err != nil {
					return err
				}
			}

			output, err := ddlCore(cmd.Context(), opener, source, target, tables)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), output)
			return nil
		},
	}

	conn.register(cmd, "", "database")
	cmd.Flags().StringSliceVarP(&tables, "tables", "t", nil, "Render only these tables (comma separated)")
	cmd.Flags().StringVar(&to, "to", "", "Engine the DDL is written for (default: the source engine)")
	return cmd
}
