package interfaces

import (
	"context"
	"time"

	"ui_verification/domain/entities"
)

// Browser defines a launched automation engine that hands out isolated sessions
type Browser interface {
	// NewSession creates a fresh browser context with one open page
	NewSession(ctx context.Context) (Session, error)

	// Close stops the engine
	Close() error
}

// Session is an isolated browser context owned by exactly one scenario run
type Session interface {
	// Page returns the session's page
	Page() Page

	// Close destroys the context with its cookies, storage and pages
	Close() error
}

// Page defines the primitives the harness needs from a browser page.
// Every call resolves locators against the current DOM. Implementations
// wrap engine timeouts with entities.ErrActionTimeout.
type Page interface {
	// Goto navigates to url and waits for the document to load
	Goto(ctx context.Context, url string, timeout time.Duration) error

	// Probe reports how many elements match and how many of them are visible
	Probe(ctx context.Context, locator entities.Locator) (entities.ElementSnapshot, error)

	// Fill replaces the value of the single matching input
	Fill(ctx context.Context, locator entities.Locator, value string, timeout time.Duration) error

	// Click clicks the single matching element
	Click(ctx context.Context, locator entities.Locator, timeout time.Duration) error

	// ChooseFile clicks trigger and returns the file chooser it opened
	ChooseFile(ctx context.Context, trigger entities.Locator, timeout time.Duration) (FileChooser, error)

	// Screenshot writes a PNG of the viewport to path
	Screenshot(ctx context.Context, path string) error

	// URL returns the current page URL
	URL() string
}

// FileChooser is a single-use handle for a pending file selection
type FileChooser interface {
	SetFiles(paths ...string) error
}
