package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kimhsiao/lifetrack/backend/internal/config"
	"github.com/kimhsiao/lifetrack/backend/internal/db"
	"github.com/kimhsiao/lifetrack/backend/internal/logging"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
	"github.com/kimhsiao/lifetrack/backend/internal/services"
	"github.com/kimhsiao/lifetrack/backend/internal/session"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/queue"
)

// env is what a command needs from the local store.
type env struct {
	cfg   *config.Config
	db    *db.DB
	repos *db.Repositories
	queue *queue.Queue
	loc   *time.Location
}

func (e *env) Close() error {
	return e.db.Close()
}

// options holds the persistent flags.
type options struct {
	configPath string
	dataDir    string
}

func (o *options) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	dir := o.dataDir
	if dir == "" {
		dir = config.DefaultDataDir()
	}
	return config.DefaultPath(dir)
}

func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.path())
	if err != nil {
		return nil, err
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	return cfg, nil
}

// open loads the config and opens the migrated store.
func (o *options) open() (*env, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logging.Init(logger)

	d, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if _, err := d.Migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}

	store := db.NewStore(d,
		db.WithSession(session.Static(cfg.UserID)),
		db.WithLogger(logger.Named("db")),
	)
	return &env{
		cfg:   cfg,
		db:    d,
		repos: db.NewRepositories(store),
		queue: queue.New(d.DB,
			queue.WithBackoff(queue.Backoff{Base: cfg.Sync.RetryBase, Max: cfg.Sync.RetryMax}),
			queue.WithLogger(logger.Named("sync.queue"))),
		loc: loc,
	}, nil
}

// withEnv opens the store around fn.
func (o *options) withEnv(fn func(ctx context.Context, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		e, err := o.open()
		if err != nil {
			return err
		}
		defer func() {
			if err := e.Close(); err != nil {
				logging.Warn("close store", zap.Error(err))
			}
		}()
		return fn(cmd.Context(), e)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "lifetrack",
		Short:         "Inspect the local lifetrack store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default <data-dir>/config.toml)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (overrides the config file)")

	root.AddGroup(
		&cobra.Group{ID: "store", Title: "Store:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
	)

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(opts),
		newDueCmd(opts),
		newStatsCmd(opts),
		newQueueCmd(opts),
		newTrashCmd(opts),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lifetrack v%s\n", Version)
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default values",
		Long: `Write a config file with the default values.

The file is written to --config, or to config.toml in the data directory.
An existing file is kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.path()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			if opts.dataDir != "" {
				cfg.DataDir = opts.dataDir
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

// rangeFlags parses --from/--to, defaulting to the days ending today.
type rangeFlags struct {
	from, to string
	days     int
}

func (f *rangeFlags) bind(cmd *cobra.Command, days int) {
	f.days = days
	cmd.Flags().StringVar(&f.from, "from", "", fmt.Sprintf("first day, YYYY-MM-DD (default %d days ago)", days-1))
	cmd.Flags().StringVar(&f.to, "to", "", "last day, YYYY-MM-DD (default today)")
}

func (f *rangeFlags) resolve(loc *time.Location) (recurrence.Day, recurrence.Day, error) {
	to := recurrence.DayIn(time.Now(), loc)
	if f.to != "" {
		d, err := recurrence.ParseDay(f.to)
		if err != nil {
			return recurrence.Day{}, recurrence.Day{}, fmt.Errorf("invalid --to %q", f.to)
		}
		to = d
	}
	from := to.AddDays(-(f.days - 1))
	if f.from != "" {
		d, err := recurrence.ParseDay(f.from)
		if err != nil {
			return recurrence.Day{}, recurrence.Day{}, fmt.Errorf("invalid --from %q", f.from)
		}
		from = d
	}
	return from, to, nil
}

func newDueCmd(opts *options) *cobra.Command {
	var rng rangeFlags
	cmd := &cobra.Command{
		Use:     "due <tracker-id>",
		GroupID: "store",
		Short:   "List the days a tracker is due",
		Args:    cobra.ExactArgs(1),
	}
	rng.bind(cmd, 30)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.withEnv(func(ctx context.Context, e *env) error {
			from, to, err := rng.resolve(e.loc)
			if err != nil {
				return err
			}
			svc := services.NewStatsService(e.repos.TrackingRecurrings, e.repos.TrackingResponses, e.loc)
			dates, err := svc.Schedule(ctx, args[0], from, to)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(dates) == 0 {
				fmt.Fprintf(out, "Not due between %s and %s\n", from, to)
				return nil
			}
			for _, d := range dates {
				fmt.Fprintln(out, d)
			}
			return nil
		})(cmd, args)
	}
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	var rng rangeFlags
	cmd := &cobra.Command{
		Use:     "stats",
		GroupID: "store",
		Short:   "Show tracker completion rates",
		Args:    cobra.NoArgs,
	}
	rng.bind(cmd, 7)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.withEnv(func(ctx context.Context, e *env) error {
			from, to, err := rng.resolve(e.loc)
			if err != nil {
				return err
			}
			svc := services.NewStatsService(e.repos.TrackingRecurrings, e.repos.TrackingResponses, e.loc)
			report, err := svc.Completion(ctx, from, to)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "%s .. %s\t%d%%\n", report.From, report.To, report.Rate)
			for _, t := range report.Trackers {
				fmt.Fprintf(w, "  %s\t%d/%d\t%d%%\n", t.Name, t.Completed, t.Scheduled, t.Rate)
			}
			return w.Flush()
		})(cmd, args)
	}
	return cmd
}

func newQueueCmd(opts *options) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:     "queue",
		GroupID: "sync",
		Short:   "Show the mutations waiting to be pushed",
		Args:    cobra.NoArgs,
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every entry")
	cmd.RunE = opts.withEnv(func(ctx context.Context, e *env) error {
		st, err := e.queue.Stats(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d operations pending (%d failing, %d waiting)\n", st.Total, st.Failing, st.Waiting)
		if st.Total == 0 {
			return nil
		}

		entities := make([]string, 0, len(st.ByEntity))
		for entity := range st.ByEntity {
			entities = append(entities, entity)
		}
		sort.Strings(entities)
		for _, entity := range entities {
			fmt.Fprintf(out, "  %-20s %d\n", entity, st.ByEntity[entity])
		}

		if !verbose {
			return nil
		}
		entries, err := e.queue.List(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		for i := range entries {
			line := queue.String(&entries[i])
			if entries[i].LastError != "" {
				line += fmt.Sprintf(" (retry %d: %s)", entries[i].RetryCount, entries[i].LastError)
			}
			fmt.Fprintln(out, line)
		}
		return nil
	})
	return cmd
}

func newTrashCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "trash",
		GroupID: "store",
		Short:   "Inspect soft-deleted records",
	}

	countCmd := &cobra.Command{
		Use:   "count [table]",
		Short: "Count soft-deleted records per table",
		Args:  cobra.MaximumNArgs(1),
	}
	countCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.withEnv(func(ctx context.Context, e *env) error {
			tables := e.repos.Tables()
			if len(args) == 1 {
				tables = []string{args[0]}
			}

			out := cmd.OutOrStdout()
			total := 0
			for _, table := range tables {
				repo, err := e.repos.Trash(table)
				if err != nil {
					return fmt.Errorf("unknown table %q (one of %s)", table, strings.Join(e.repos.Tables(), ", "))
				}
				n, err := repo.GetDeletedCount(ctx)
				if err != nil {
					return err
				}
				total += n
				fmt.Fprintf(out, "%-20s %d\n", table, n)
			}
			if len(tables) > 1 {
				fmt.Fprintf(out, "%-20s %d\n", "total", total)
			}
			return nil
		})(cmd, args)
	}

	cmd.AddCommand(countCmd)
	return cmd
}
