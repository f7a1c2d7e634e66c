package actions

import (
	"errors"
	"sync"

	"ui_verification/domain/interfaces"
)

var (
	errNoChooser       = errors.New("no file chooser opened")
	errChooserReused   = errors.New("file chooser already consumed")
	errChooserUnused   = errors.New("file chooser was never given a file")
	errNoFilesProvided = errors.New("no files provided")
)

// ChooserHandle enforces single use of a file chooser
type ChooserHandle struct {
	mu       sync.Mutex
	chooser  interfaces.FileChooser
	uses     int
	consumed bool
}

// NewChooserHandle - wraps chooser; a nil chooser can never be consumed
func NewChooserHandle(chooser interfaces.FileChooser) *ChooserHandle {
	return &ChooserHandle{chooser: chooser}
}

// Consume hands paths to the chooser. Only the first call reaches the engine.
func (h *ChooserHandle) Consume(paths ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.uses++
	if h.uses > 1 {
		return errChooserReused
	}
	if h.chooser == nil {
		return errNoChooser
	}
	if len(paths) == 0 {
		return errNoFilesProvided
	}
	if err := h.chooser.SetFiles(paths...); err != nil {
		return err
	}
	h.consumed = true
	return nil
}

// Verify fails unless the chooser was consumed exactly once
func (h *ChooserHandle) Verify() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.uses > 1:
		return errChooserReused
	case !h.consumed:
		return errChooserUnused
	default:
		return nil
	}
}
