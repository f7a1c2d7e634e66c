package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/infrastructure/browser/browsertest"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureWritesTimestampedScreenshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	logger, _ := test.NewNullLogger()
	collector := NewScreenshotCollector(dir, logger)
	collector.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 30, 45, 123000000, time.UTC)
	}

	path, err := collector.Capture(context.Background(), browsertest.NewPage(), "create review/avatar")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "create_review_avatar-error-20260301-123045.123.png"), path)
	assert.FileExists(t, path)
}

func TestCaptureErrorsAreCollectionFailures(t *testing.T) {
	logger, _ := test.NewNullLogger()
	collector := NewScreenshotCollector(t.TempDir(), logger)

	page := browsertest.NewPage()
	page.ScreenshotErr = errors.New("target closed")

	_, err := collector.Capture(context.Background(), page, "login")
	assert.ErrorIs(t, err, entities.ErrCollectionFailed)
	assert.ErrorContains(t, err, "target closed")

	_, err = collector.Capture(context.Background(), nil, "login")
	assert.ErrorIs(t, err, entities.ErrCollectionFailed)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "scenario", sanitize("  "))
	assert.Equal(t, "a_b_c", sanitize("a/b:c"))
	assert.Equal(t, "отзыв", sanitize("отзыв"))
}

func TestReportStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewReportStore(dir, "")
	require.NoError(t, err)

	results, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, results)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	failed := entities.Failed(entities.RunInfo{Scenario: "create-review", RunID: "r1", StartedAt: started}, entities.Failure{
		StepIndex:    3,
		StepName:     `click role=button[name="Войти"]`,
		Cause:        errors.New("condition timeout"),
		ArtifactPath: "artifacts/create-review-error.png",
	})
	skipped := entities.Skipped("edit-review", entities.ErrDependencyFailed)

	require.NoError(t, store.Save([]entities.ExecutionResult{failed, skipped}))
	assert.FileExists(t, filepath.Join(dir, "report.json"))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, entities.OutcomeFailed, loaded[0].Outcome)
	assert.Equal(t, 3, loaded[0].FailedStep)
	assert.Equal(t, "artifacts/create-review-error.png", loaded[0].ArtifactPath)
	assert.EqualError(t, loaded[0].Cause, "condition timeout")
	assert.True(t, started.Equal(loaded[0].StartedAt))

	assert.Equal(t, entities.OutcomeSkipped, loaded[1].Outcome)
	assert.EqualError(t, loaded[1].Cause, entities.ErrDependencyFailed.Error())
}

func TestReportStoreCustomPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "nightly.json")
	store, err := NewReportStore("unused", path)
	require.NoError(t, err)

	require.NoError(t, store.Save(nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"passed": 0`)
}
