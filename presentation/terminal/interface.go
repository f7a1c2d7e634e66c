package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"ui_verification/application/catalog"
	"ui_verification/application/executor"
	"ui_verification/application/runner"
	"ui_verification/application/wait"
	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"
	"ui_verification/infrastructure/browser"
	"ui_verification/infrastructure/config"
	"ui_verification/infrastructure/observability"
	"ui_verification/infrastructure/security"
	"ui_verification/infrastructure/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrScenariosFailed is returned by the run command when any scenario failed
var ErrScenariosFailed = errors.New("one or more scenarios failed")

// BrowserFactory starts the browser engine for one run
type BrowserFactory func(cfg *config.Config, logger *logrus.Logger) (interfaces.Browser, error)

type TerminalInterface struct {
	cfg        *config.Config
	logger     *logrus.Logger
	out        io.Writer
	newBrowser BrowserFactory
}

type runFlags struct {
	file     string
	parallel int
	readOnly bool
	report   string
	watch    bool
}

// NewTerminalInterface - loads configuration and sets up the logger
func NewTerminalInterface() (*TerminalInterface, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	return &TerminalInterface{
		cfg:        cfg,
		logger:     cfg.NewLogger(),
		out:        os.Stdout,
		newBrowser: NewBrowser,
	}, nil
}

// NewBrowser - starts the engine selected by E2E_ENGINE
func NewBrowser(cfg *config.Config, logger *logrus.Logger) (interfaces.Browser, error) {
	opts := browser.Options{
		Headless:     cfg.Headless,
		SlowMo:       cfg.SlowMo,
		DriverPath:   cfg.DriverPath,
		ChromeBinary: cfg.ChromeBinary,
		DriverPort:   cfg.DriverPort,
	}

	switch cfg.Engine {
	case config.EngineSelenium:
		ctrl, err := browser.NewSeleniumController(opts, logger)
		if err != nil {
			return nil, err
		}
		return ctrl, nil
	default:
		return browser.NewPlaywrightBrowser(opts, logger)
	}
}

// Command builds the root command with its subcommands
func (t *TerminalInterface) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "ui_verification",
		Short:         "End-to-end verification of the admin panel and public site",
		Long:          "Runs named browser scenarios against a running application and reports\na pass/fail outcome per scenario with failure screenshots.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(t.out)

	root.AddCommand(t.runCommand(), t.listCommand(), t.reportCommand())
	return root
}

func (t *TerminalInterface) runCommand() *cobra.Command {
	flags := runFlags{
		parallel: t.cfg.Parallel,
		readOnly: t.cfg.ReadOnly,
	}

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run scenarios (all when none are named)",
		Long:  "Runs the named scenarios together with the scenarios they depend on.\nExits with status 1 when any scenario failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.watch && flags.file == "" {
				return fmt.Errorf("--watch requires --file")
			}
			if flags.parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := t.startTracing()
			if err != nil {
				return err
			}
			defer shutdown()

			if flags.watch {
				return t.watch(ctx, flags, args)
			}

			summary, err := t.runOnce(ctx, flags, args)
			if err != nil {
				return err
			}
			if !summary.OK() {
				return ErrScenariosFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "YAML file with additional scenarios")
	cmd.Flags().IntVarP(&flags.parallel, "parallel", "p", flags.parallel, "Maximum number of concurrently running scenarios")
	cmd.Flags().BoolVar(&flags.readOnly, "read-only", flags.readOnly, "Skip scenarios that create or change records")
	cmd.Flags().StringVar(&flags.report, "report", "", "Path of the JSON run report (default <artifact-dir>/report.json)")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Re-run when the scenario file changes")
	return cmd
}

func (t *TerminalInterface) listCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := t.loadCatalog(t.fixtures(), file)
			if err != nil {
				return err
			}

			sec := security.NewSecurityLayer(t.logger)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tRISK\tDEPENDS ON\tDESCRIPTION")
			for _, name := range cat.Names() {
				s, _ := cat.Get(name)
				deps := "-"
				if len(s.DependsOn) > 0 {
					deps = fmt.Sprint(s.DependsOn)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, sec.ClassifyScenario(cmd.Context(), s),
					scenarioRisk(cmd.Context(), sec, s), deps, s.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with additional scenarios")
	return cmd
}

func (t *TerminalInterface) reportCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the results of the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewReportStore(t.cfg.ArtifactDir, path)
			if err != nil {
				return err
			}
			results, err := store.Load()
			if err != nil {
				return fmt.Errorf("failed to load run report: %w", err)
			}
			if len(results) == 0 {
				fmt.Fprintln(t.out, "No saved run report")
				return nil
			}

			summary := runner.Summarize(results)
			t.printResults(results, summary, wallTime(results))
			if !summary.OK() {
				return ErrScenariosFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "report", "", "Path of the JSON run report (default <artifact-dir>/report.json)")
	return cmd
}

// wallTime spans from the first start to the last finish of a saved run
func wallTime(results []entities.ExecutionResult) time.Duration {
	var first, last time.Time
	for _, r := range results {
		end := r.StartedAt.Add(r.Duration)
		if first.IsZero() || r.StartedAt.Before(first) {
			first = r.StartedAt
		}
		if end.After(last) {
			last = end
		}
	}
	return last.Sub(first)
}

// scenarioRisk - the highest step risk outside the login setup
func scenarioRisk(ctx context.Context, sec interfaces.SecurityLayer, s entities.Scenario) string {
	rank := map[string]int{"low": 0, "medium": 1, "high": 2}
	risk := "low"
	for _, step := range append(append([]entities.Step(nil), s.Steps...), s.Assertions...) {
		if level := sec.GetStepRiskLevel(ctx, step); rank[level] > rank[risk] {
			risk = level
		}
	}
	return risk
}

func (t *TerminalInterface) fixtures() catalog.Fixtures {
	return catalog.Fixtures{
		BaseURL:     t.cfg.BaseURL,
		Email:       t.cfg.AdminEmail,
		Password:    t.cfg.AdminPassword,
		AvatarPath:  t.cfg.AvatarPath,
		ArtifactDir: t.cfg.ArtifactDir,
		Salt:        catalog.NewSalt(),
	}
}

func (t *TerminalInterface) loadCatalog(f catalog.Fixtures, file string) (*catalog.Catalog, error) {
	cat := catalog.Default(f)
	if file == "" {
		return cat, nil
	}

	scenarios, err := catalog.LoadFile(file, f)
	if err != nil {
		return nil, err
	}
	if err := cat.Add(scenarios...); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return cat, nil
}

// runOnce executes one catalog run with a fresh salt and browser
func (t *TerminalInterface) runOnce(ctx context.Context, flags runFlags, names []string) (runner.Summary, error) {
	cat, err := t.loadCatalog(t.fixtures(), flags.file)
	if err != nil {
		return runner.Summary{}, err
	}

	scenarios, err := cat.Order(names...)
	if err != nil {
		return runner.Summary{}, err
	}

	store, err := storage.NewReportStore(t.cfg.ArtifactDir, flags.report)
	if err != nil {
		return runner.Summary{}, err
	}

	browserCtrl, err := t.newBrowser(t.cfg, t.logger)
	if err != nil {
		return runner.Summary{}, fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer func() {
		if err := browserCtrl.Close(); err != nil {
			t.logger.WithError(err).Warn("Failed to close browser")
		}
	}()

	exec := executor.NewExecutor(
		browserCtrl,
		storage.NewScreenshotCollector(t.cfg.ArtifactDir, t.logger),
		wait.NewPolicy(t.cfg.PollMaxInterval),
		t.logger,
	)
	run := runner.NewRunner(exec, security.NewSecurityLayer(t.logger), runner.Options{
		Parallel:          flags.parallel,
		ReadOnly:          flags.readOnly,
		StructuralRetries: t.cfg.StructuralRetries,
	}, t.logger)

	started := time.Now()
	results := run.Run(ctx, scenarios)
	summary := runner.Summarize(results)

	t.printResults(results, summary, time.Since(started))

	if err := store.Save(results); err != nil {
		t.logger.WithError(err).Error("Failed to save run report")
	}
	return summary, nil
}

func (t *TerminalInterface) printResults(results []entities.ExecutionResult, summary runner.Summary, elapsed time.Duration) {
	fmt.Fprintln(t.out)
	for _, r := range results {
		switch r.Outcome {
		case entities.OutcomePassed:
			fmt.Fprintf(t.out, "PASS  %s (%s", r.Scenario, r.Duration.Round(time.Millisecond))
			if r.Attempts > 1 {
				fmt.Fprintf(t.out, ", %d attempts", r.Attempts)
			}
			fmt.Fprintln(t.out, ")")
		case entities.OutcomeFailed:
			fmt.Fprintf(t.out, "FAIL  %s at step %d (%s): %v\n", r.Scenario, r.FailedStep, r.FailedStepName, r.Cause)
			if r.ArtifactPath != "" {
				fmt.Fprintf(t.out, "      screenshot: %s\n", r.ArtifactPath)
			}
			if r.ArtifactNote != "" {
				fmt.Fprintf(t.out, "      artifact: %s\n", r.ArtifactNote)
			}
		case entities.OutcomeSkipped:
			fmt.Fprintf(t.out, "SKIP  %s: %v\n", r.Scenario, r.Cause)
		}
	}
	fmt.Fprintf(t.out, "\n%d passed, %d failed, %d skipped in %s\n",
		summary.Passed, summary.Failed, summary.Skipped, elapsed.Round(time.Millisecond))
}

func (t *TerminalInterface) startTracing() (func(), error) {
	if t.cfg.Trace != config.TraceStdout {
		return func() {}, nil
	}

	tp, err := observability.NewTracerProvider(os.Stderr)
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			t.logger.WithError(err).Warn("Failed to flush traces")
		}
	}, nil
}
