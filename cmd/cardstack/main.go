// Package main provides the CLI entrypoint for cardstack.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/verte-zerg/cardstack/internal/cardstack"
	"github.com/verte-zerg/cardstack/internal/config"
	"github.com/verte-zerg/cardstack/internal/deck"
	"github.com/verte-zerg/cardstack/internal/gesture"
	"github.com/verte-zerg/cardstack/internal/model"
	"github.com/verte-zerg/cardstack/internal/recorder"
	"github.com/verte-zerg/cardstack/internal/replay"
	"github.com/verte-zerg/cardstack/internal/stats"
	"github.com/verte-zerg/cardstack/internal/store"
	"github.com/verte-zerg/cardstack/internal/tracesui"
	"github.com/verte-zerg/cardstack/internal/tui"
)

const (
	defaultScheme      = "any"
	defaultCellWidth   = 8.0
	defaultCellHeight  = 16.0
	defaultLogLevel    = "info"
	defaultCurveWindow = 5
)

var (
	stackDeck       string
	stackScheme     string
	stackRecord     bool
	stackSeed       int64
	stackCellWidth  float64
	stackCellHeight float64
	stackLogLevel   string

	physicsDragRotation    float64
	physicsThrowSpeed      float64
	physicsProjectionMs    float64
	physicsRotationKick    float64
	physicsThrowDurationMs int
	physicsThrowScale      float64
	physicsRestJitter      float64

	tracesSince string
	tracesLast  int
	tracesPlain bool

	replayCheck bool

	statsSince       string
	statsLast        int
	statsCurveWindow int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cardstack",
		Short:         "Gesture-driven card stack in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runStackCmd,
	}

	rootCmd.Flags().StringVar(&stackDeck, "deck", "", "deck file (.txt or .yaml); default: built-in deck")
	rootCmd.Flags().StringVar(&stackScheme, "scheme", defaultScheme, "keep only image refs of this kind: any, http, file")
	rootCmd.Flags().BoolVar(&stackRecord, "record", false, "record the session as a replayable trace")
	rootCmd.Flags().Int64Var(&stackSeed, "seed", 0, "seed for rest rotations (0: random)")
	rootCmd.Flags().Float64Var(&stackCellWidth, "cell-width", defaultCellWidth, "position units per terminal column")
	rootCmd.Flags().Float64Var(&stackCellHeight, "cell-height", defaultCellHeight, "position units per terminal row")
	rootCmd.Flags().StringVar(&stackLogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")

	// Physics flags are shared with replay and traces, which fall back to
	// them for traces recorded without a tuning.
	physics := rootCmd.PersistentFlags()
	physics.Float64Var(&physicsDragRotation, "drag-rotation", gesture.DefaultDragRotation, "degrees of tilt per unit of horizontal drag")
	physics.Float64Var(&physicsThrowSpeed, "throw-speed", gesture.DefaultThrowSpeed, "release speed (units/ms) above which a card is thrown")
	physics.Float64Var(&physicsProjectionMs, "projection-ms", gesture.DefaultProjection, "how far ahead (ms) a throw is projected")
	physics.Float64Var(&physicsRotationKick, "rotation-kick", gesture.DefaultRotationKick, "degrees of spin per unit/ms of horizontal release speed")
	physics.IntVar(&physicsThrowDurationMs, "throw-duration-ms", int(gesture.DefaultThrowDuration/time.Millisecond), "throw animation length (ms)")
	physics.Float64Var(&physicsThrowScale, "throw-scale", cardstack.DefaultThrowScale, "card scale while thrown (0-1]")
	physics.Float64Var(&physicsRestJitter, "rest-jitter", cardstack.DefaultRestJitter, "max random tilt (degrees) of a recycled card")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newTracesCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

// resolveConfig merges the config file under the flags of cmd. Flags that
// cmd does not define take the file value or their default.
func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "deck", &stackDeck, fileCfg.Stack.Deck)
	applyStringConfig(cmd, "scheme", &stackScheme, fileCfg.Stack.Scheme)
	applyBoolConfig(cmd, "record", &stackRecord, fileCfg.Stack.Record)
	applyFloatConfig(cmd, "cell-width", &stackCellWidth, fileCfg.Stack.CellWidth)
	applyFloatConfig(cmd, "cell-height", &stackCellHeight, fileCfg.Stack.CellHeight)
	applyStringConfig(cmd, "log-level", &stackLogLevel, fileCfg.Stack.LogLevel)
	applyFloatConfig(cmd, "drag-rotation", &physicsDragRotation, fileCfg.Physics.DragRotation)
	applyFloatConfig(cmd, "throw-speed", &physicsThrowSpeed, fileCfg.Physics.ThrowSpeed)
	applyFloatConfig(cmd, "projection-ms", &physicsProjectionMs, fileCfg.Physics.ProjectionMs)
	applyFloatConfig(cmd, "rotation-kick", &physicsRotationKick, fileCfg.Physics.RotationKick)
	applyIntConfig(cmd, "throw-duration-ms", &physicsThrowDurationMs, fileCfg.Physics.ThrowDurationMs)
	applyFloatConfig(cmd, "throw-scale", &physicsThrowScale, fileCfg.Physics.ThrowScale)
	applyFloatConfig(cmd, "rest-jitter", &physicsRestJitter, fileCfg.Physics.RestJitter)

	cfg := model.Config{
		DeckPath:   stackDeck,
		Scheme:     stackScheme,
		Seed:       stackSeed,
		Record:     stackRecord,
		CellWidth:  stackCellWidth,
		CellHeight: stackCellHeight,
		LogLevel:   stackLogLevel,
		Physics: model.Physics{
			DragRotation:    physicsDragRotation,
			ThrowSpeed:      physicsThrowSpeed,
			ProjectionMs:    physicsProjectionMs,
			RotationKick:    physicsRotationKick,
			ThrowDurationMs: physicsThrowDurationMs,
			ThrowScale:      physicsThrowScale,
			RestJitter:      physicsRestJitter,
		},
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func runStackCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	refs, err := loadDeck(cfg.DeckPath, cfg.Scheme)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(config.DefaultLogPath(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		// Sync on a plain file can still report EINVAL on some platforms.
		_ = logger.Sync()
	}()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	tuning := gesture.FromPhysics(cfg.Physics)
	stack := cardstack.New(append(tuning.StackOptions(), cardstack.WithRNG(cardstack.NewSeededRand(seed)))...)
	if err := stack.Initialize(refs); err != nil {
		return fmt.Errorf("failed to initialize stack: %w", err)
	}

	notifier := tui.NewNotifier()
	defer notifier.Close()
	opts := []gesture.ControllerOption{
		gesture.WithTuning(tuning),
		gesture.WithLogger(logger.Named("gesture")),
		gesture.WithObserver(notifier.Observe),
	}
	var rec *recorder.Recorder
	if cfg.Record {
		rec = recorder.New(refs, seed, tuning, cfg.CellWidth, cfg.CellHeight)
		opts = append(opts, gesture.WithObserver(rec.Observe))
	}
	ctrl := gesture.NewController(stack, opts...)
	defer ctrl.Close()

	logger.Info("session started",
		zap.Int("cards", len(refs)),
		zap.Int64("seed", seed),
		zap.Bool("record", cfg.Record))

	m := tui.NewModel(ctrl, notifier, tui.Options{
		CellWidth:  cfg.CellWidth,
		CellHeight: cfg.CellHeight,
		Recorder:   rec,
		Logger:     logger.Named("tui"),
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	ctrl.Close()

	if rec == nil {
		return nil
	}
	return saveTrace(rec, logger)
}

func saveTrace(rec *recorder.Recorder, logger *zap.Logger) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	id, err := rec.Flush(context.Background(), st)
	if err != nil {
		return err
	}
	if id == "" {
		logErrln("Nothing recorded.")
		return nil
	}
	logger.Info("trace saved", zap.String("trace", id), zap.Int("events", rec.Len()))
	logErrf("Saved trace %s (replay with: cardstack replay %s)\n", stats.ShortID(id), stats.ShortID(id))
	return nil
}

// loadDeck resolves the deck. An unset path falls back to the default deck
// file, then to the built-in deck.
func loadDeck(path, scheme string) ([]string, error) {
	explicit := path != ""
	if !explicit {
		path = config.DefaultDeckPath()
	}
	refs, err := deck.LoadRefs(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, os.ErrNotExist):
		refs = deck.DefaultRefs()
	default:
		return nil, fmt.Errorf("failed to load deck %s: %w", path, err)
	}
	refs = deck.Filter(refs, deck.FilterForScheme(scheme))
	if len(refs) == 0 {
		return nil, fmt.Errorf("deck has no %s image refs", scheme)
	}
	return refs, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newTracesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traces",
		Short: "Browse recorded traces",
		Args:  cobra.NoArgs,
		RunE:  runTracesCmd,
	}
	cmd.Flags().StringVar(&tracesSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&tracesLast, "last", 0, "limit to last N traces")
	cmd.Flags().BoolVar(&tracesPlain, "plain", false, "print a table instead of opening the browser")
	return cmd
}

func runTracesCmd(cmd *cobra.Command, _ []string) error {
	filter, err := traceFilter(tracesSince, tracesLast)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if tracesPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		traces, err := st.ListTraces(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("failed to list traces: %w", err)
		}
		return stats.RenderTraceTable(cmd.OutOrStdout(), traces)
	}

	m := tracesui.NewModel(st, filter, tracesui.Options{Tuning: gesture.FromPhysics(cfg.Physics)})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run traces TUI: %w", err)
	}
	return nil
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace-id>",
		Short: "Replay a recorded trace and print the final stack",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
	cmd.Flags().BoolVar(&replayCheck, "check", false, "validate stack invariants after every event and fail on divergence")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	trace, err := st.GetTrace(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load trace: %w", err)
	}
	events, err := st.LoadEvents(ctx, trace.ID)
	if err != nil {
		return fmt.Errorf("failed to load trace events: %w", err)
	}
	res, err := replay.Run(trace, events, replay.Options{
		Tuning: gesture.FromPhysics(cfg.Physics),
		Check:  replayCheck,
	})
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "Trace %s: %d inputs over %s\n", stats.ShortID(trace.ID), res.Inputs, res.Duration.Round(time.Millisecond)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if _, err := fmt.Fprintln(out, stats.ReplaySetup(trace, res.Tuning.ThrowSpeed)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if _, err := fmt.Fprintf(out, "Throws: %d  Snap-backs: %d  Jumps: %d  Recycles: %d\n\n", res.Throws, res.SnapBacks, res.Jumps, res.Recycles); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderStack(out, res.Cards); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if res.Diverged {
		msg := fmt.Sprintf("replay diverged: recorded %d throws, %d snap-backs, %d jumps",
			trace.Throws, trace.SnapBacks, trace.Jumps)
		if replayCheck {
			return errors.New(msg)
		}
		logErrln(msg)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded traces",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N traces")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window for release speeds")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsCurveWindow <= 0 {
		return fmt.Errorf("--curve-window must be > 0")
	}
	filter, err := traceFilter(statsSince, statsLast)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	report, err := stats.BuildReport(context.Background(), st, filter)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report.Summary); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderSpeedCurve(out, report.Releases, statsCurveWindow, stats.TerminalWidth(), cfg.Physics.ThrowSpeed); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func traceFilter(since string, last int) (model.TraceFilter, error) {
	if last < 0 {
		return model.TraceFilter{}, fmt.Errorf("--last must be >= 0")
	}
	filter := model.TraceFilter{Last: last}
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return model.TraceFilter{}, fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}
	return filter, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func flagChanged(cmd *cobra.Command, name string) bool {
	return cmd != nil && cmd.Flags().Lookup(name) != nil && cmd.Flags().Changed(name)
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# cardstack configuration
# Uncomment a value to enable it. CLI flags override config values.

[stack]
# deck = ""                  # Deck file (.txt one ref per line, or .yaml)
# scheme = %q              # Keep only refs of this kind: any, http, file
# record = false             # Record sessions as replayable traces
# cell-width = %.1f           # Position units per terminal column
# cell-height = %.1f         # Position units per terminal row
# log-level = %q          # Log level (debug, info, warn, error)

[physics]
# drag-rotation = %.2f       # Degrees of tilt per unit of horizontal drag
# throw-speed = %.2f         # Release speed (units/ms) above which a card is thrown
# projection-ms = %.1f     # How far ahead (ms) a throw is projected
# rotation-kick = %.1f      # Degrees of spin per unit/ms of horizontal release speed
# throw-duration-ms = %d    # Throw animation length (ms)
# throw-scale = %.2f         # Card scale while thrown (0-1]
# rest-jitter = %.1f         # Max random tilt (degrees) of a recycled card
`,
		defaultScheme,
		defaultCellWidth,
		defaultCellHeight,
		defaultLogLevel,
		gesture.DefaultDragRotation,
		gesture.DefaultThrowSpeed,
		gesture.DefaultProjection,
		gesture.DefaultRotationKick,
		int(gesture.DefaultThrowDuration/time.Millisecond),
		cardstack.DefaultThrowScale,
		cardstack.DefaultRestJitter,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.CellWidth <= 0 {
		return fmt.Errorf("--cell-width must be > 0")
	}
	if cfg.CellHeight <= 0 {
		return fmt.Errorf("--cell-height must be > 0")
	}
	switch strings.ToLower(cfg.Scheme) {
	case "any", "http", "https", "file":
	default:
		return fmt.Errorf("--scheme must be one of any, http, file")
	}
	if err := gesture.FromPhysics(cfg.Physics).Validate(); err != nil {
		return fmt.Errorf("--%w", err)
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
