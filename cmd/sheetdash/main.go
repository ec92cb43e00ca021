// sheetdash refreshes the spending dashboards of a spreadsheet from an
// SQLite warehouse.
//
// Usage:
//
//	sheetdash --warehouse warehouse.db [--spreadsheet-name NAME | --spreadsheet-id ID] [flags]
//	sheetdash --warehouse warehouse.db --excel dashboard.xlsx
//	sheetdash --warehouse warehouse.db --dry-run
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ideamans/go-sheetdash"
	"github.com/ideamans/go-sheetdash/adapters/excel"
	"github.com/ideamans/go-sheetdash/adapters/googlesheets"
	"github.com/ideamans/go-sheetdash/adapters/memory"
	"github.com/ideamans/go-sheetdash/dashboard"
	"github.com/ideamans/go-sheetdash/warehouse"
)

const (
	defaultSpreadsheetName = "Spending Dashboard"
	defaultCredentialsEnv  = "GSPREAD_CREDENTIALS"
)

type options struct {
	warehouse        string
	spreadsheetID    string
	spreadsheetName  string
	credentials      string
	credentialsEnv   string
	excelPath        string
	dryRun           bool
	overviewLayout   string
	categoriesLayout string
	maxRetries       int
	baseDelay        time.Duration
	timeout          time.Duration
	noTimestamp      bool
	logFormat        string
	debug            bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options

	flagSet := pflag.NewFlagSet("sheetdash", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.warehouse, "warehouse", "w", "", "path to the SQLite warehouse (required)")
	flagSet.StringVar(&opts.spreadsheetID, "spreadsheet-id", "", "ID of the spreadsheet to refresh")
	flagSet.StringVar(&opts.spreadsheetName, "spreadsheet-name", defaultSpreadsheetName, "name of the spreadsheet, looked up in Drive when no ID is given")
	flagSet.StringVar(&opts.credentials, "credentials", "", "service account JSON key file (default: $GOOGLE_APPLICATION_CREDENTIALS)")
	flagSet.StringVar(&opts.credentialsEnv, "credentials-env", defaultCredentialsEnv, "environment variable holding the service account JSON key")
	flagSet.StringVar(&opts.excelPath, "excel", "", "write the dashboards to this .xlsx file instead of Google Sheets")
	flagSet.BoolVar(&opts.dryRun, "dry-run", false, "build the dashboards in memory and print a summary")
	flagSet.StringVar(&opts.overviewLayout, "overview-layout", "", "layout file for the overview pages (default: built-in)")
	flagSet.StringVar(&opts.categoriesLayout, "categories-layout", "", "layout file for the category pages (default: built-in)")
	flagSet.IntVar(&opts.maxRetries, "max-retries", sheetdash.DefaultMaxRetries, "attempts per API call")
	flagSet.DurationVar(&opts.baseDelay, "base-delay", sheetdash.DefaultBaseDelay, "first retry delay, doubled on each retry")
	flagSet.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "abort the run after this long")
	flagSet.BoolVar(&opts.noTimestamp, "no-timestamp", false, "do not write \"Last updated\" cells")
	flagSet.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	flagSet.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if opts.warehouse == "" {
		return fmt.Errorf("--warehouse is required")
	}
	if opts.dryRun && opts.excelPath != "" {
		return fmt.Errorf("--dry-run and --excel cannot be combined")
	}

	logger, err := newLogger(opts.logFormat, opts.debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	source, err := warehouse.OpenSQLite(warehouse.SQLiteConfig{Path: opts.warehouse, Logger: logger})
	if err != nil {
		return err
	}
	defer source.Close()

	adapter, closeAdapter, err := openAdapter(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeAdapter()

	pages, err := dashboard.DefaultPages(dashboard.LayoutOverrides{
		Overview:   opts.overviewLayout,
		Categories: opts.categoriesLayout,
	}, time.Now)
	if err != nil {
		return err
	}

	batcher := sheetdash.New(adapter, &sheetdash.Config{
		MaxRetries: opts.maxRetries,
		BaseDelay:  opts.baseDelay,
		Logger:     logger,
	})
	refresher := dashboard.NewRefresher(batcher, source, pages, &dashboard.Config{
		Logger:        logger,
		SkipTimestamp: opts.noTimestamp,
	})

	start := time.Now()
	if err := refresher.Run(ctx); err != nil {
		return err
	}
	logger.Info("dashboards refreshed", "elapsed", time.Since(start).Round(time.Millisecond))

	if mem, ok := adapter.(*memory.Adapter); ok {
		printSummary(os.Stdout, mem)
	}
	return nil
}

// openAdapter picks the backend from the flags. The returned func
// releases it.
func openAdapter(ctx context.Context, opts options, logger *slog.Logger) (sheetdash.Adapter, func(), error) {
	nop := func() {}

	switch {
	case opts.dryRun:
		return memory.New(), nop, nil

	case opts.excelPath != "":
		a, err := excel.New(&excel.Config{FilePath: opts.excelPath, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return a, func() {
			if err := a.Close(); err != nil {
				logger.Warn("failed to close workbook", "path", opts.excelPath, "error", err)
			}
		}, nil
	}

	config := googlesheets.Config{
		SpreadsheetID:   opts.spreadsheetID,
		SpreadsheetName: opts.spreadsheetName,
		Logger:          logger,
	}

	var a *googlesheets.Adapter
	var err error
	switch {
	case opts.credentials != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
		a, err = googlesheets.NewWithJSONKeyFile(ctx, config, opts.credentials)
	case opts.credentialsEnv != "" && os.Getenv(opts.credentialsEnv) != "":
		a, err = googlesheets.NewWithEnvCredentials(ctx, config, opts.credentialsEnv)
	default:
		a, err = googlesheets.NewWithDefaultCredentials(ctx, config)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Google Sheets adapter: %w", err)
	}
	logger.Info("spreadsheet opened", "spreadsheet_id", a.SpreadsheetID())
	return a, nop, nil
}

func newLogger(format string, debug bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug || os.Getenv("SHEETDASH_DEBUG") != "" {
		level = slog.LevelDebug
	}
	handlerOptions := &slog.HandlerOptions{Level: level}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOptions)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOptions)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}

func printSummary(w io.Writer, a *memory.Adapter) {
	for _, title := range a.Titles() {
		s, _ := a.Sheet(title)
		fmt.Fprintf(w, "%-24s %4d x %-3d %4d cells %4d requests\n", title, s.Rows, s.Cols, len(s.Cells), len(s.Requests))
	}
	calls := make(map[string]int)
	for _, c := range a.CallLog() {
		calls[c.Method]++
	}
	fmt.Fprintf(w, "calls: %d values batches, %d request batches, %d worksheets added\n",
		calls[memory.MethodBatchUpdateValues], calls[memory.MethodBatchUpdate], calls[memory.MethodAddWorksheet])
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `sheetdash - refresh spending dashboards from an SQLite warehouse

Every run deletes and recreates the overview and yearly category
worksheets, then writes all values and formatting in as few API calls
as possible. Pages whose tables are missing are logged and skipped.

Usage:
  sheetdash --warehouse <path> [flags]

Examples:
  # Refresh the "Spending Dashboard" spreadsheet with a key file
  sheetdash --warehouse warehouse.db --credentials service-account.json

  # Key JSON in an environment variable
  GSPREAD_CREDENTIALS="$(cat key.json)" sheetdash --warehouse warehouse.db

  # Render to a local workbook
  sheetdash --warehouse warehouse.db --excel dashboard.xlsx

Flags:
%s`, flagSet.FlagUsages())
}
