package actions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ui_verification/application/wait"
	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"
	"ui_verification/infrastructure/browser/browsertest"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	saveButton = entities.Role("button", "Сохранить отзыв")
	dropzone   = entities.CSS(".cursor-pointer").Filter("Нажмите или перетащите")
)

func newPrimitives(page interfaces.Page) *Primitives {
	logger, _ := test.NewNullLogger()
	return NewPrimitives(page, wait.NewPolicy(0), logrus.NewEntry(logger))
}

func writeAsset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "placeholder-user.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpg"), 0644))
	return path
}

func TestClickVisibleTarget(t *testing.T) {
	page := browsertest.NewPage().Show(saveButton)

	err := newPrimitives(page).Click(context.Background(), saveButton, time.Second)

	require.NoError(t, err)
	assert.Equal(t, []string{"click " + saveButton.String()}, page.Calls())
}

func TestClickUnresolvableTargetIsConditionTimeout(t *testing.T) {
	page := browsertest.NewPage()

	err := newPrimitives(page).Click(context.Background(), saveButton, 200*time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrConditionTimeout)
	assert.Empty(t, page.Calls())
}

func TestClickAmbiguousTarget(t *testing.T) {
	page := browsertest.NewPage().Set(saveButton, entities.ElementSnapshot{Count: 2, Visible: 2})

	err := newPrimitives(page).Click(context.Background(), saveButton, time.Second)

	assert.ErrorIs(t, err, entities.ErrActionTargetAmbiguous)
	assert.Empty(t, page.Calls())

	var actionErr *entities.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, entities.StepClick, actionErr.Action)
	assert.Equal(t, saveButton.String(), actionErr.Locator)
}

func TestClickFirstOfManyIsNotAmbiguous(t *testing.T) {
	row := entities.CSS("table > tbody > tr").Nearest()
	page := browsertest.NewPage().Set(row, entities.ElementSnapshot{Count: 3, Visible: 3})

	err := newPrimitives(page).Click(context.Background(), row, time.Second)
	require.NoError(t, err)
}

func TestEngineTimeoutMapsToActionTimeout(t *testing.T) {
	page := browsertest.NewPage().Show(saveButton).FailOn(saveButton, browsertest.ErrEngineTimeout)

	err := newPrimitives(page).Click(context.Background(), saveButton, time.Second)

	assert.ErrorIs(t, err, entities.ErrActionTimeout)
	assert.NotErrorIs(t, err, entities.ErrActionFailed)
}

func TestEngineErrorMapsToActionFailed(t *testing.T) {
	engineErr := errors.New("element is not enabled")
	author := entities.Label("Имя автора")
	page := browsertest.NewPage().Show(author).FailOn(author, engineErr)

	err := newPrimitives(page).Fill(context.Background(), author, "Тестовый Автор", time.Second)

	assert.ErrorIs(t, err, entities.ErrActionFailed)
	assert.ErrorIs(t, err, engineErr)
}

func TestFillPassesValue(t *testing.T) {
	author := entities.Label("Имя автора")
	page := browsertest.NewPage().Show(author)

	require.NoError(t, newPrimitives(page).Fill(context.Background(), author, "Тестовый Автор", time.Second))
	assert.Equal(t, []string{"fill " + author.String() + "=Тестовый Автор"}, page.Calls())
}

func TestNavigateFailure(t *testing.T) {
	page := browsertest.NewPage().FailURL("http://localhost:3000/admin", errors.New("net::ERR_CONNECTION_REFUSED"))

	err := newPrimitives(page).Navigate(context.Background(), "http://localhost:3000/admin", time.Second)

	assert.ErrorIs(t, err, entities.ErrActionFailed)
	assert.Contains(t, err.Error(), "ERR_CONNECTION_REFUSED")
}

func TestUploadConsumesChooserOnce(t *testing.T) {
	asset := writeAsset(t)
	page := browsertest.NewPage().Show(dropzone)

	err := newPrimitives(page).Upload(context.Background(), dropzone, asset, time.Second)

	require.NoError(t, err)
	assert.Equal(t, []string{asset}, page.Uploaded())
}

func TestUploadChooserNotConsumed(t *testing.T) {
	asset := writeAsset(t)
	page := browsertest.NewPage().Show(dropzone)
	page.ChooserErr = errors.New("file chooser closed")

	err := newPrimitives(page).Upload(context.Background(), dropzone, asset, time.Second)

	assert.ErrorIs(t, err, entities.ErrFileChooserNotConsumed)
	assert.Contains(t, err.Error(), "file chooser closed")
	assert.Empty(t, page.Uploaded())
}

func TestUploadMissingAssetFailsBeforeTrigger(t *testing.T) {
	page := browsertest.NewPage().Show(dropzone)

	err := newPrimitives(page).Upload(context.Background(), dropzone, filepath.Join(t.TempDir(), "missing.jpg"), time.Second)

	assert.ErrorIs(t, err, entities.ErrActionFailed)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, page.Calls())
}

func TestScreenshotCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence", "settings-panel.png")
	page := browsertest.NewPage()

	require.NoError(t, newPrimitives(page).Screenshot(context.Background(), path, time.Second))
	assert.FileExists(t, path)
}

func TestScreenshotIsBounded(t *testing.T) {
	page := browsertest.NewPage()
	page.HangScreenshots = true

	started := time.Now()
	err := newPrimitives(page).Screenshot(context.Background(), filepath.Join(t.TempDir(), "x.png"), 100*time.Millisecond)

	assert.ErrorIs(t, err, entities.ErrActionTimeout)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestActionBudgetNeverExceedsStepTimeout(t *testing.T) {
	page := browsertest.NewPage().Show(saveButton)
	page.ProbeDelay = 150 * time.Millisecond

	// the visibility wait and the ambiguity probe use up most of the window
	err := newPrimitives(page).Click(context.Background(), saveButton, 400*time.Millisecond)
	require.NoError(t, err)

	budgets := page.Budgets()
	require.Len(t, budgets, 1)
	assert.Greater(t, budgets[0], time.Duration(0))
	assert.LessOrEqual(t, budgets[0], 250*time.Millisecond)
}

func TestActionWithNoTimeLeftIsActionTimeout(t *testing.T) {
	page := browsertest.NewPage().Show(saveButton)
	page.ProbeDelay = 150 * time.Millisecond

	err := newPrimitives(page).Click(context.Background(), saveButton, 200*time.Millisecond)

	assert.ErrorIs(t, err, entities.ErrActionTimeout)
	assert.Empty(t, page.Calls())
}

func TestChooserHandle(t *testing.T) {
	t.Run("consumed once", func(t *testing.T) {
		page := browsertest.NewPage()
		chooser, err := page.ChooseFile(context.Background(), dropzone, time.Second)
		require.NoError(t, err)

		h := NewChooserHandle(chooser)
		require.NoError(t, h.Consume("a.jpg"))
		assert.NoError(t, h.Verify())
	})

	t.Run("reused", func(t *testing.T) {
		page := browsertest.NewPage()
		chooser, err := page.ChooseFile(context.Background(), dropzone, time.Second)
		require.NoError(t, err)

		h := NewChooserHandle(chooser)
		require.NoError(t, h.Consume("a.jpg"))
		assert.ErrorIs(t, h.Consume("b.jpg"), errChooserReused)
		assert.ErrorIs(t, h.Verify(), errChooserReused)
		assert.Equal(t, []string{"a.jpg"}, page.Uploaded())
	})

	t.Run("never consumed", func(t *testing.T) {
		h := NewChooserHandle(&browsertest.Chooser{})
		assert.ErrorIs(t, h.Verify(), errChooserUnused)
	})

	t.Run("nil chooser", func(t *testing.T) {
		h := NewChooserHandle(nil)
		assert.ErrorIs(t, h.Consume("a.jpg"), errNoChooser)
		assert.ErrorIs(t, h.Verify(), errChooserUnused)
	})

	t.Run("no files", func(t *testing.T) {
		h := NewChooserHandle(&browsertest.Chooser{})
		assert.ErrorIs(t, h.Consume(), errNoFilesProvided)
	})
}
