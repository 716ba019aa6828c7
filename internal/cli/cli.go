package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/calendar"
	"github.com/pfrederiksen/chi-landmarks/internal/config"
	"github.com/pfrederiksen/chi-landmarks/internal/event"
	"github.com/pfrederiksen/chi-landmarks/internal/filter"
	"github.com/pfrederiksen/chi-landmarks/internal/logger"
	"github.com/pfrederiksen/chi-landmarks/internal/metrics"
	"github.com/pfrederiksen/chi-landmarks/internal/notifier"
	"github.com/pfrederiksen/chi-landmarks/internal/scraper"
	"github.com/pfrederiksen/chi-landmarks/internal/server"
	"github.com/pfrederiksen/chi-landmarks/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitNewEvents = 2
)

// exitCodeError carries a non-zero exit code out of a command.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// meetingSource fetches the live commission page.
type meetingSource interface {
	FetchEvents(ctx context.Context) ([]*event.Event, error)
	URL() string
}

var newSource = func(cfg config.Config, m *metrics.Metrics) meetingSource {
	return scraper.NewFromConfig(cfg, m)
}

var newNotifier = func(channel string, dryRun bool, out io.Writer) (notifier.Notifier, error) {
	if dryRun {
		return notifier.NewDryRunNotifier(out), nil
	}
	switch channel {
	case "twitter":
		return notifier.NewTwitterNotifier()
	case "telegram":
		return notifier.NewTelegramNotifier()
	default:
		return nil, fmt.Errorf("unknown channel: %s (must be 'twitter' or 'telegram')", channel)
	}
}

// app holds the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfg     config.Config
	metrics *metrics.Metrics
	now     func() time.Time

	flagConfig  string
	flagFormat  string
	flagSort    string
	flagRange   string
	flagStatus  string
	flagDocs    bool
	flagRefresh bool
	flagAll     bool
	flagVerbose bool
	flagDryRun  bool
	flagOutput  string
	flagMaxPost int
	flagWithin  int
	flagChannel string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), metrics: metrics.New(), now: time.Now}

	cmd := &cobra.Command{
		Use:   "chi-landmarks",
		Short: "Check for newly-published Commission on Chicago Landmarks meetings",
		Long: `A CLI tool to check the Commission on Chicago Landmarks page for meetings.
Tracks meetings across runs and reports only new meetings since last check.
Exits with status 2 when new meetings are found.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runCheck,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flagConfig, "config", "", "Config file (default ./chi-landmarks.yaml or ~/.config/chi-landmarks/chi-landmarks.yaml)")
	pf.String("data-dir", "", "Data directory for snapshots (default ~/.local/share/chi-landmarks)")
	pf.String("url", "", "Commission page URL")
	pf.BoolVar(&a.flagVerbose, "verbose", false, "Enable verbose logging")
	pf.StringVar(&a.flagFormat, "format", "text", "Output format: text, json or yaml")
	pf.StringVar(&a.flagSort, "sort", "date", "Sort order: date, name or status")
	pf.StringVar(&a.flagRange, "range", "", "Only meetings in a date range (e.g. '2015', 'Mar 2015', 'March 1 - April 15')")
	pf.StringVar(&a.flagStatus, "status", "", "Only meetings with these statuses (comma separated)")
	pf.BoolVar(&a.flagDocs, "with-documents", false, "Only meetings with published documents")

	cmd.Flags().BoolVar(&a.flagRefresh, "refresh", false, "Refresh snapshot without showing new meetings")
	cmd.Flags().BoolVar(&a.flagAll, "all", false, "Show all meetings, not just new ones")

	a.v.BindPFlag("data_dir", pf.Lookup("data-dir"))
	a.v.BindPFlag("url", pf.Lookup("url"))

	cmd.AddCommand(a.newParseCmd(), a.newShowCmd(), a.newICSCmd(), a.newNotifyCmd(), a.newServeCmd())

	return cmd
}

// setup loads configuration and installs the default logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.flagConfig)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := logger.ParseLevel(cfg.LogLevel)
	if a.flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.NewWithFormat(level, cmd.ErrOrStderr(), logger.Format(cfg.LogFormat)))
	return nil
}

// buildFilter turns the filter flags into a Filter.
func (a *app) buildFilter() (*filter.Filter, error) {
	f := filter.NewFilter()

	if a.flagRange != "" {
		from, to, err := filter.ParseDateRange(a.flagRange, a.now().In(a.cfg.Location()))
		if err != nil {
			return nil, fmt.Errorf("invalid --range: %w", err)
		}
		f.DateFrom, f.DateTo = &from, &to
	}
	if a.flagStatus != "" {
		f.Statuses = strings.Split(a.flagStatus, ",")
	}
	f.WithDocuments = a.flagDocs

	return f, nil
}

// filterLabel describes f for output headers, or "" when nothing is filtered.
func filterLabel(f *filter.Filter) string {
	if f.IsEmpty() {
		return ""
	}
	return f.String()
}

// outputOptions validates --format and --sort.
func (a *app) outputOptions() (OutputFormat, SortOrder, error) {
	format, err := ParseOutputFormat(strings.ToLower(a.flagFormat))
	if err != nil {
		return "", "", err
	}
	order, err := ParseSortOrder(a.flagSort)
	if err != nil {
		return "", "", err
	}
	return format, order, nil
}

// runCheck is the main command logic
func (a *app) runCheck(cmd *cobra.Command, _ []string) error {
	format, order, err := a.outputOptions()
	if err != nil {
		return err
	}
	f, err := a.buildFilter()
	if err != nil {
		return err
	}

	store, err := storage.New(a.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	src := newSource(a.cfg, a.metrics)
	logger.Debug("Fetching meetings", logger.Fields{"url": src.URL(), "data_dir": store.Dir()})

	current, err := src.FetchEvents(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching meetings: %w", err)
	}

	previous, err := store.LoadSnapshot(scraper.SpiderName)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	logger.Debug("Loaded previous snapshot", logger.Fields{"meetings": len(previous.Events)})

	diff := event.Diff(previous, current)

	changes, err := store.UpdateSnapshot(current, scraper.SpiderName)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	for _, c := range changes {
		if c.ChangeType != "new" {
			logger.Info("Meeting changed", logger.Fields{
				"meeting_id": c.EventID,
				"change":     c.ChangeType,
				"old":        c.OldValue,
				"new":        c.NewValue,
			})
		}
	}

	// In refresh mode, don't output new meetings
	if a.flagRefresh {
		if format == FormatText {
			fmt.Fprintln(cmd.OutOrStdout(), "Snapshot refreshed successfully.")
			return nil
		}
		return WriteOutput(cmd.OutOrStdout(), &OutputResult{
			CheckedAt: a.now().UTC(),
			Source:    src.URL(),
			NewEvents: []*event.Event{},
		}, format, a.flagVerbose)
	}

	newEvents := f.Apply(diff.NewEvents)
	shown := newEvents
	if a.flagAll {
		shown = f.Apply(current)
	}
	shown = append([]*event.Event{}, shown...)
	sortEvents(shown, order)

	result := &OutputResult{
		CheckedAt:  a.now().UTC(),
		Source:     src.URL(),
		NewEvents:  shown,
		EventCount: len(shown),
		ByYear:     groupByYear(shown),
		ShowAll:    a.flagAll,
		Filter:     filterLabel(f),
	}
	if err := WriteOutput(cmd.OutOrStdout(), result, format, a.flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	// Set exit code based on whether new meetings were found
	if len(newEvents) > 0 {
		return &exitCodeError{code: ExitNewEvents}
	}
	return nil
}

func (a *app) newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Extract meetings from a saved copy of the commission page",
		Long: `Extract meetings from a saved HTML copy of the commission page.
Relative document links resolve against --url. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runParse,
	}
}

func (a *app) runParse(cmd *cobra.Command, args []string) error {
	format, order, err := a.outputOptions()
	if err != nil {
		return err
	}
	f, err := a.buildFilter()
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening page: %w", err)
		}
		defer file.Close()
		r = file
	}

	x := scraper.NewExtractor(a.cfg.Location())
	x.Now = a.now
	events, err := x.ParseEvents(r, a.cfg.URL)
	if err != nil {
		a.metrics.ParseFailed()
		return fmt.Errorf("extracting meetings: %w", err)
	}

	events = f.Apply(events)
	sortEvents(events, order)

	return WriteOutput(cmd.OutOrStdout(), &OutputResult{
		CheckedAt:  a.now().UTC(),
		Source:     a.cfg.URL,
		NewEvents:  events,
		EventCount: len(events),
		ByYear:     groupByYear(events),
		ShowAll:    true,
		Filter:     filterLabel(f),
	}, format, a.flagVerbose)
}

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Show a meeting recorded in the snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runShow,
	}
}

func (a *app) runShow(cmd *cobra.Command, args []string) error {
	format, err := ParseOutputFormat(strings.ToLower(a.flagFormat))
	if err != nil {
		return err
	}

	store, err := storage.New(a.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	evt, err := store.GetEventByID(scraper.SpiderName, args[0])
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no meeting %s in the snapshot (run chi-landmarks first)", args[0])
	}
	if err != nil {
		return err
	}
	return WriteMeeting(cmd.OutOrStdout(), evt, format)
}

func (a *app) newICSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Write an iCalendar file of the current meetings",
		Args:  cobra.NoArgs,
		RunE:  a.runICS,
	}
	cmd.Flags().StringVarP(&a.flagOutput, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func (a *app) runICS(cmd *cobra.Command, _ []string) error {
	f, err := a.buildFilter()
	if err != nil {
		return err
	}

	events, err := newSource(a.cfg, a.metrics).FetchEvents(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching meetings: %w", err)
	}
	events = f.Apply(events)
	sortEvents(events, SortByDate)

	ics := calendar.GenerateBulkICS(events, scraper.MeetingName, a.cfg.Location())
	if ics == "" {
		return fmt.Errorf("no meetings to export")
	}

	if a.flagOutput == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), ics)
		return err
	}
	// Owner read/write only
	if err := os.WriteFile(a.flagOutput, []byte(ics), 0600); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	logger.Info("Wrote calendar", logger.Fields{"path": a.flagOutput, "meetings": len(events)})
	return nil
}

func (a *app) newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Post newly-published upcoming meetings to Twitter or Telegram",
		Long: `Post newly-published upcoming meetings to Twitter or Telegram.
Twitter credentials are read from TWITTER_API_KEY, TWITTER_API_SECRET,
TWITTER_ACCESS_TOKEN and TWITTER_ACCESS_SECRET; Telegram uses
TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID. Meetings that were not posted,
because a post failed, --max-posts was reached or they are beyond
--within-days, are left out of the snapshot so a later run posts them.`,
		Args: cobra.NoArgs,
		RunE: a.runNotify,
	}
	cmd.Flags().BoolVar(&a.flagDryRun, "dry-run", false, "Print tweets instead of posting them")
	cmd.Flags().StringVar(&a.flagChannel, "channel", "twitter", "Where to post: twitter or telegram")
	cmd.Flags().IntVar(&a.flagMaxPost, "max-posts", 10, "Maximum number of meetings to post (0 for no limit)")
	cmd.Flags().IntVar(&a.flagWithin, "within-days", 0, "Only post meetings in the next N days; later ones wait (0 for no limit)")
	return cmd
}

func (a *app) runNotify(cmd *cobra.Command, _ []string) error {
	f, err := a.buildFilter()
	if err != nil {
		return err
	}

	n, err := newNotifier(a.flagChannel, a.flagDryRun, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("initializing notifier: %w", err)
	}

	store, err := storage.New(a.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	current, err := newSource(a.cfg, a.metrics).FetchEvents(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching meetings: %w", err)
	}

	previous, err := store.LoadSnapshot(scraper.SpiderName)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	now := a.now().In(a.cfg.Location())
	var pending, deferred []*event.Event
	for _, evt := range f.Apply(event.Diff(previous, current).NewEvents) {
		switch {
		case !evt.IsUpcoming(now):
			// past meetings are never posted
		case evt.IsWithinDays(now, a.flagWithin):
			pending = append(pending, evt)
		default:
			deferred = append(deferred, evt)
		}
	}

	event.SortByStart(pending)
	if a.flagMaxPost > 0 && len(pending) > a.flagMaxPost {
		logger.Warn("Too many new meetings, posting the earliest", logger.Fields{
			"pending": len(pending),
			"limit":   a.flagMaxPost,
		})
		deferred = append(deferred, pending[a.flagMaxPost:]...)
		pending = pending[:a.flagMaxPost]
	}

	var notifyErr error
	if len(pending) == 0 {
		logger.Info("No new upcoming meetings", logger.Fields{"meetings": len(current)})
	} else if err := n.Notify(cmd.Context(), pending); err != nil {
		posted := notifier.Posted(err)
		logger.Error("Notification batch stopped", logger.Fields{
			"posted":  posted,
			"pending": len(pending),
		}, err)
		deferred = append(deferred, pending[posted:]...)
		pending = pending[:posted]
		notifyErr = fmt.Errorf("notifying: %w", err)
	}

	if a.flagDryRun {
		return notifyErr
	}
	// Unposted meetings stay out of the snapshot so the next run posts them.
	if _, err := store.UpdateSnapshot(withoutMeetings(current, deferred), scraper.SpiderName); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	if notifyErr != nil {
		return notifyErr
	}
	logger.Info("Notified", logger.Fields{"posted": len(pending)})
	return nil
}

// withoutMeetings returns events minus the meetings in skip, matched by ID.
func withoutMeetings(events, skip []*event.Event) []*event.Event {
	if len(skip) == 0 {
		return events
	}
	ids := make(map[string]bool, len(skip))
	for _, evt := range skip {
		ids[evt.ID] = true
	}
	kept := make([]*event.Event, 0, len(events))
	for _, evt := range events {
		if !ids[evt.ID] {
			kept = append(kept, evt)
		}
	}
	return kept
}

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve meetings, an iCalendar feed and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
	cmd.Flags().String("listen", "", "Listen address (default :8080)")
	a.v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.New(newSource(a.cfg, a.metrics), a.metrics, a.cfg.CacheTTL, a.cfg.Location())
	if err := s.ListenAndServe(ctx, a.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}

	var exit *exitCodeError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitError)
}
