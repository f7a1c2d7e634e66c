package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// ScreenshotCollector saves a screenshot of a failed scenario's page
type ScreenshotCollector struct {
	dir    string
	logger *logrus.Logger
	now    func() time.Time
}

// NewScreenshotCollector - creates a collector writing into dir
func NewScreenshotCollector(dir string, logger *logrus.Logger) *ScreenshotCollector {
	return &ScreenshotCollector{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// Capture writes <dir>/<scenario>-error-<timestamp>.png. Every error is a
// *entities.CollectionError.
func (c *ScreenshotCollector) Capture(ctx context.Context, page interfaces.Page, scenario string) (string, error) {
	if page == nil {
		return "", &entities.CollectionError{Scenario: scenario, Err: fmt.Errorf("no page to capture")}
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", &entities.CollectionError{Scenario: scenario, Err: fmt.Errorf("failed to create artifact directory: %w", err)}
	}

	name := fmt.Sprintf("%s-error-%s.png", sanitize(scenario), c.now().Format("20060102-150405.000"))
	path := filepath.Join(c.dir, name)

	if err := page.Screenshot(ctx, path); err != nil {
		return "", &entities.CollectionError{Scenario: scenario, Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"scenario": scenario,
		"url":      page.URL(),
	}).Debugf("Screenshot saved: %s", path)
	return path, nil
}

// sanitize - keeps scenario names safe for file names
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "scenario"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}

var _ interfaces.ArtifactCollector = (*ScreenshotCollector)(nil)
