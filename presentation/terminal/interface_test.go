package terminal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"
	"ui_verification/infrastructure/browser/browsertest"
	"ui_verification/infrastructure/config"
	"ui_verification/infrastructure/storage"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	banner      = entities.Role("banner", "")
	catalogLink = entities.Role("link", "Каталог").Within(banner).Nearest()
)

func publicSite(p *browsertest.Page) {
	p.Show(banner, catalogLink)
}

type harness struct {
	ui       *TerminalInterface
	out      *bytes.Buffer
	browser  *browsertest.Browser
	launches atomic.Int32
	dir      string
}

func newHarness(t *testing.T, configure func(p *browsertest.Page)) *harness {
	t.Helper()
	dir := t.TempDir()
	env := map[string]string{
		"E2E_ARTIFACT_DIR":       dir,
		"E2E_STRUCTURAL_RETRIES": "0",
		"E2E_POLL_MAX_MS":        "100",
	}
	cfg, err := config.FromLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	h := &harness{
		out:     &bytes.Buffer{},
		browser: browsertest.NewBrowser(configure),
		dir:     dir,
	}
	h.ui = &TerminalInterface{
		cfg:    cfg,
		logger: logger,
		out:    h.out,
		newBrowser: func(*config.Config, *logrus.Logger) (interfaces.Browser, error) {
			h.launches.Add(1)
			return h.browser, nil
		},
	}
	return h
}

func (h *harness) execute(args ...string) error {
	cmd := h.ui.Command()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestListCommand(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.execute("list"))

	out := h.out.String()
	assert.Contains(t, out, "RISK")
	assert.Regexp(t, `create-review\s+workflow\s+medium\s+-`, out)
	assert.Regexp(t, `edit-review\s+structural\s+low\s+\[create-review\]`, out)
	assert.Contains(t, out, "public-page-render")
}

func TestRunPassingScenario(t *testing.T) {
	h := newHarness(t, publicSite)
	report := filepath.Join(h.dir, "reports", "run.json")

	require.NoError(t, h.execute("run", "public-page-render", "--report", report))

	assert.Contains(t, h.out.String(), "PASS  public-page-render")
	assert.Contains(t, h.out.String(), "1 passed, 0 failed, 0 skipped")

	store, err := storage.NewReportStore(h.dir, report)
	require.NoError(t, err)
	results, err := store.Load()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsPassed())
	require.Len(t, results[0].Evidence, 1)
	assert.FileExists(t, results[0].Evidence[0])
}

func TestReportShowsLastRun(t *testing.T) {
	h := newHarness(t, publicSite)

	require.NoError(t, h.execute("report"))
	assert.Contains(t, h.out.String(), "No saved run report")

	require.NoError(t, h.execute("run", "public-page-render"))
	h.out.Reset()

	require.NoError(t, h.execute("report"))
	assert.Contains(t, h.out.String(), "PASS  public-page-render")
	assert.Contains(t, h.out.String(), "1 passed, 0 failed, 0 skipped")
	assert.Equal(t, int32(1), h.launches.Load(), "report never starts a browser")
}

func TestReportOfFailedRun(t *testing.T) {
	h := newHarness(t, nil)
	h.browser.SessionErr = errors.New("browser crashed")
	require.ErrorIs(t, h.execute("run", "login"), ErrScenariosFailed)
	h.out.Reset()

	assert.ErrorIs(t, h.execute("report"), ErrScenariosFailed)
	assert.Contains(t, h.out.String(), "FAIL  login at step -1 (init)")
	assert.Contains(t, h.out.String(), "browser crashed")
}

func TestRunFailingScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.browser.SessionErr = errors.New("browser crashed")

	err := h.execute("run", "login", "edit-review")

	assert.ErrorIs(t, err, ErrScenariosFailed)
	out := h.out.String()
	assert.Contains(t, out, "FAIL  login")
	assert.Contains(t, out, "browser crashed")
	assert.Contains(t, out, "SKIP  edit-review")
	assert.FileExists(t, filepath.Join(h.dir, "report.json"))
}

func TestRunReadOnlySkipsWorkflows(t *testing.T) {
	h := newHarness(t, publicSite)

	require.NoError(t, h.execute("run", "create-review", "public-page-render", "--read-only"))

	assert.Contains(t, h.out.String(), "SKIP  create-review")
	assert.Contains(t, h.out.String(), "PASS  public-page-render")
}

func TestRunUsageErrors(t *testing.T) {
	h := newHarness(t, nil)

	assert.ErrorContains(t, h.execute("run", "no-such-scenario"), `unknown scenario "no-such-scenario"`)
	assert.ErrorContains(t, h.execute("run", "--watch"), "--watch requires --file")
	assert.ErrorContains(t, h.execute("run", "--parallel", "0"), "--parallel must be at least 1")
	assert.Zero(t, h.launches.Load())
}

func TestBrowserStartFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.ui.newBrowser = func(*config.Config, *logrus.Logger) (interfaces.Browser, error) {
		return nil, errors.New("playwright driver not installed")
	}

	err := h.execute("run", "public-page-render")
	assert.ErrorContains(t, err, "failed to initialize browser")
	assert.NotErrorIs(t, err, ErrScenariosFailed)
}

const watchedFile = `
scenarios:
  - name: watched
    steps:
      - kind: navigate
        url: ${BASE_URL}/
`

func TestWatchRerunsOnChange(t *testing.T) {
	h := newHarness(t, nil)
	file := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(file, []byte(watchedFile), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.ui.watch(ctx, runFlags{file: file, parallel: 1}, []string{"watched"})
	}()

	require.Eventually(t, func() bool { return h.launches.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(file, []byte(watchedFile+"\n"), 0644))
	require.Eventually(t, func() bool { return h.launches.Load() >= 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}
