package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"sheetflow/adapters/datareadiness/validator"
	"sheetflow/app"
	"sheetflow/domain/core"
	domaingrouping "sheetflow/domain/grouping"
	"sheetflow/internal"
	"sheetflow/internal/config"
	"sheetflow/internal/container"
	"sheetflow/internal/migration"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "sheetflow-dev",
		Short:         "sheetflow development tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	verbose := rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *verbose {
			internal.DefaultLogger.SetLevel(internal.LogLevelDebug)
		}
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newListCmd(),
		newPreviewCmd(),
		newImportCmd(),
		newDeleteCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env bundles the loaded configuration and wired container
type env struct {
	cfg *config.Config
	c   *container.Container
}

func loadEnv(ctx context.Context, withDB bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c, err := container.New(ctx, cfg, container.Options{In: os.Stdin, Out: os.Stderr})
	if err != nil {
		return nil, err
	}
	if !withDB {
		return &env{cfg: cfg, c: c}, nil
	}

	db, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.InitWithDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return &env{cfg: cfg, c: c}, nil
}

func connect(cfg *config.Config) (*sqlx.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the dataset tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := connect(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			runner := migration.NewRunner()
			if err := runner.Run(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %s\n", runner.Version())
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [spreadsheet-id]",
		Short: "List spreadsheets, or the tabs of one spreadsheet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				tabs, err := e.c.Source.ListTabs(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, tab := range tabs {
					fmt.Fprintf(w, "%d\t%s\n", tab.ID, tab.Name)
				}
				return nil
			}

			files, err := e.c.Source.ListSpreadsheets(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.ID, f.Name, f.ModifiedTime)
			}
			return nil
		},
	}
}

type previewFlags struct {
	headerRow   int
	allTabs     bool
	concurrency int64
	required    []string
}

func newPreviewCmd() *cobra.Command {
	var flags previewFlags
	cmd := &cobra.Command{
		Use:   "preview <spreadsheet-id> [tab]",
		Short: "Print the inferred schema, issues and quality of a tab",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			if !flags.allTabs {
				if len(args) < 2 {
					return fmt.Errorf("a tab name is required without --all-tabs")
				}
				ws := app.NewWorkspace("preview", e.c.Source, nil, e.c.Pipeline)
				if _, err := ws.LoadPreview(cmd.Context(), previewRequest(args[0], args[1], flags)); err != nil {
					return err
				}
				printPreview(cmd.OutOrStdout(), args[1], ws.State())
				return nil
			}
			return previewAllTabs(cmd.Context(), cmd.OutOrStdout(), e, args[0], flags)
		},
	}
	cmd.Flags().IntVar(&flags.headerRow, "header-row", 1, "1-based header row")
	cmd.Flags().BoolVar(&flags.allTabs, "all-tabs", false, "preview every tab of the spreadsheet")
	cmd.Flags().Int64Var(&flags.concurrency, "concurrency", 4, "tabs fetched at once with --all-tabs")
	cmd.Flags().StringSliceVar(&flags.required, "required", nil, "columns that must not be blank")
	return cmd
}

func previewRequest(spreadsheetID, tab string, flags previewFlags) app.PreviewRequest {
	return app.PreviewRequest{
		SpreadsheetID: spreadsheetID,
		TabName:       tab,
		HeaderRow:     flags.headerRow,
		Required:      flags.required,
	}
}

// previewAllTabs loads every tab in its own workspace, at most
// flags.concurrency at a time, and prints them in tab order
func previewAllTabs(ctx context.Context, out io.Writer, e *env, spreadsheetID string, flags previewFlags) error {
	tabs, err := e.c.Source.ListTabs(ctx, spreadsheetID)
	if err != nil {
		return err
	}
	if flags.concurrency < 1 {
		flags.concurrency = 1
	}

	sem := semaphore.NewWeighted(flags.concurrency)
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	states := make(map[string]app.State, len(tabs))

	for _, tab := range tabs {
		tab := tab
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			ws := app.NewWorkspace(tab.Name, e.c.Source, nil, e.c.Pipeline)
			if _, err := ws.LoadPreview(gctx, previewRequest(spreadsheetID, tab.Name, flags)); err != nil {
				internal.DefaultLogger.Warn("tab %s: %v", tab.Name, err)
			}
			mu.Lock()
			states[tab.Name] = ws.State()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, tab := range tabs {
		if state, ok := states[tab.Name]; ok {
			printPreview(out, tab.Name, state)
		}
	}
	return nil
}

func printPreview(out io.Writer, tab string, state app.State) {
	fmt.Fprintf(out, "== %s (%s)\n", tab, state.Status)
	if state.Snapshot == nil {
		fmt.Fprintf(out, "   %s\n\n", state.Error)
		return
	}
	snap := state.Snapshot
	q := state.Quality()
	fmt.Fprintf(out, "%d rows, %d columns, %d errors, %d warnings\n", q.Rows, q.Columns, q.Errors, q.Warnings)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tNULLS\tDISTINCT\tEXAMPLES")
	for i, col := range snap.Schema {
		var nulls, distinct int
		var examples []string
		if i < len(snap.Profiles) {
			nulls = snap.Profiles[i].NullCount
			distinct = snap.Profiles[i].DistinctCount
			for _, ex := range snap.Profiles[i].Examples {
				examples = append(examples, ex.Text())
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", col.ColumnName, col.InferredType, nulls, distinct, strings.Join(examples, ", "))
	}
	w.Flush()

	summary := validator.Summarize(snap.Issues)
	if len(summary) > 0 {
		fmt.Fprintln(out, "issues:")
		for _, s := range summary {
			fmt.Fprintf(out, "  %-18s %-20s %d\n", s.Code, s.ColumnName, s.Count)
		}
	}
	fmt.Fprintln(out)
}

func newImportCmd() *cobra.Command {
	var (
		flags   previewFlags
		name    string
		userID  string
		groupBy []string
		sums    []string
	)
	cmd := &cobra.Command{
		Use:   "import <spreadsheet-id> <tab>",
		Short: "Load a tab and save it as a new dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, true)
			if err != nil {
				return err
			}
			defer e.c.Shutdown(context.Background())

			ws := e.c.Workspaces.Create()
			if _, err := ws.LoadPreview(ctx, previewRequest(args[0], args[1], flags)); err != nil {
				return err
			}
			if len(groupBy) > 0 {
				cfg := domaingrouping.DefaultConfig(groupBy...)
				if _, err := ws.SetGrouping(&cfg); err != nil {
					return err
				}
			}

			strategies := make(map[string]domaingrouping.FieldStrategy, len(sums))
			for _, s := range sums {
				parent, child, ok := strings.Cut(s, "=")
				if !ok {
					return fmt.Errorf("--sum expects parent=child, got %q", s)
				}
				strategies[parent] = domaingrouping.SumOf(child)
			}

			if name == "" {
				name = args[1]
			}
			if userID == "" {
				userID = e.cfg.Import.DefaultUserID
			}
			summary, err := ws.SaveToDataset(ctx, app.SaveRequest{Name: name, UserID: core.ID(userID), FieldStrategies: strategies})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dataset %s batch %s: %d rows (%d parents, %d children)\n",
				summary.DatasetID, summary.ImportBatchID, summary.Rows, summary.Parents, summary.Children)
			return nil
		},
	}
	cmd.Flags().IntVar(&flags.headerRow, "header-row", 1, "1-based header row")
	cmd.Flags().StringSliceVar(&flags.required, "required", nil, "columns that must not be blank")
	cmd.Flags().StringVar(&name, "name", "", "dataset name (default: tab name)")
	cmd.Flags().StringVar(&userID, "user", "", "owning user id (default: DEFAULT_USER_ID)")
	cmd.Flags().StringSliceVar(&groupBy, "group-by", nil, "key columns for parent/child grouping")
	cmd.Flags().StringSliceVar(&sums, "sum", nil, "parent field summed from a child field, as parent=child")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dataset-id>...",
		Short: "Delete datasets with their rows, columns and unreferenced source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.c.Shutdown(context.Background())

			ids := append([]string(nil), args...)
			sort.Strings(ids)
			for _, id := range ids {
				if err := e.c.Datasets.DeepDelete(cmd.Context(), core.ID(id)); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}
