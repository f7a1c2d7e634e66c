// Package browsertest provides an in-memory browser engine for tests.
// Pages hold a table of locator states that tests set up and that click
// handlers change, the way a real page reacts to user input.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"
)

// ErrEngineTimeout mimics an engine timeout
var ErrEngineTimeout = fmt.Errorf("%w: fake engine timeout", entities.ErrActionTimeout)

// Browser hands out sessions with pages prepared by Configure
type Browser struct {
	Configure  func(p *Page)
	SessionErr error
	// SessionPanic, when set, is raised by NewSession
	SessionPanic any

	mu       sync.Mutex
	sessions []*Session
	closed   bool
}

func NewBrowser(configure func(p *Page)) *Browser {
	return &Browser{Configure: configure}
}

func (b *Browser) NewSession(ctx context.Context) (interfaces.Session, error) {
	if b.SessionPanic != nil {
		panic(b.SessionPanic)
	}
	if b.SessionErr != nil {
		return nil, b.SessionErr
	}

	page := NewPage()
	if b.Configure != nil {
		b.Configure(page)
	}
	s := &Session{page: page}

	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Sessions - every session opened so far
func (b *Browser) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Session(nil), b.sessions...)
}

type Session struct {
	page *Page

	CloseErr error
	mu       sync.Mutex
	closes   int
}

func (s *Session) Page() interfaces.Page {
	return s.page
}

// FakePage - the concrete page of this session
func (s *Session) FakePage() *Page {
	return s.page
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.CloseErr
}

// Closes - how many times Close was called
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Page is a scripted page. Locators are matched by their String() form.
type Page struct {
	mu       sync.Mutex
	state    map[string]entities.ElementSnapshot
	onClick  map[string]func(p *Page)
	errs     map[string]error
	panics   map[string]any
	url      string
	calls    []string
	uploaded []string

	// ChooserErr is returned by SetFiles of every chooser
	ChooserErr    error
	ScreenshotErr error
	// ProbeDelay slows every probe down
	ProbeDelay time.Duration
	// HangScreenshots makes screenshots block until their context ends,
	// like an engine that stopped answering
	HangScreenshots bool

	budgets []time.Duration
}

func NewPage() *Page {
	return &Page{
		state:   make(map[string]entities.ElementSnapshot),
		onClick: make(map[string]func(p *Page)),
		errs:    make(map[string]error),
		panics:  make(map[string]any),
	}
}

// Set - state the locator reports from now on
func (p *Page) Set(loc entities.Locator, snapshot entities.ElementSnapshot) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state[loc.String()] = snapshot
	return p
}

// Show makes each locator resolve to one visible element
func (p *Page) Show(locs ...entities.Locator) *Page {
	for _, loc := range locs {
		p.Set(loc, entities.ElementSnapshot{Count: 1, Visible: 1})
	}
	return p
}

// Hide detaches each locator
func (p *Page) Hide(locs ...entities.Locator) *Page {
	for _, loc := range locs {
		p.Set(loc, entities.ElementSnapshot{})
	}
	return p
}

// OnClick runs fn after loc is clicked
func (p *Page) OnClick(loc entities.Locator, fn func(p *Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[loc.String()] = fn
	return p
}

// FailOn makes fill, click and file chooser calls on loc return err
func (p *Page) FailOn(loc entities.Locator, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[loc.String()] = err
	return p
}

// FailURL makes navigation to url return err
func (p *Page) FailURL(url string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[url] = err
	return p
}

// PanicOn makes clicks on loc panic with v
func (p *Page) PanicOn(loc entities.Locator, v any) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panics[loc.String()] = v
	return p
}

// Calls - engine calls in order, e.g. "click role=button[name=\"Войти\"]"
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Uploaded - files handed to file choosers
func (p *Page) Uploaded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.uploaded...)
}

// Budgets - timeouts handed to fill, click and file chooser calls
func (p *Page) Budgets() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.budgets...)
}

func (p *Page) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("goto %s", url)
	if err := p.errs[url]; err != nil {
		return err
	}
	p.url = url
	return nil
}

func (p *Page) Probe(ctx context.Context, loc entities.Locator) (entities.ElementSnapshot, error) {
	if p.ProbeDelay > 0 {
		select {
		case <-time.After(p.ProbeDelay):
		case <-ctx.Done():
			return entities.ElementSnapshot{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return entities.ElementSnapshot{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs["probe "+loc.String()]; err != nil {
		return entities.ElementSnapshot{}, err
	}
	return p.state[loc.String()], nil
}

// FailProbe makes probes of loc return err
func (p *Page) FailProbe(loc entities.Locator, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs["probe "+loc.String()] = err
	return p
}

func (p *Page) Fill(ctx context.Context, loc entities.Locator, value string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("fill %s=%s", loc, value)
	p.budgets = append(p.budgets, timeout)
	return p.errs[loc.String()]
}

func (p *Page) Click(ctx context.Context, loc entities.Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.record("click %s", loc)
	p.budgets = append(p.budgets, timeout)
	err := p.errs[loc.String()]
	panicValue, panics := p.panics[loc.String()]
	hook := p.onClick[loc.String()]
	p.mu.Unlock()

	if panics {
		panic(panicValue)
	}
	if err != nil {
		return err
	}
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) ChooseFile(ctx context.Context, trigger entities.Locator, timeout time.Duration) (interfaces.FileChooser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("choose %s", trigger)
	p.budgets = append(p.budgets, timeout)
	if err := p.errs[trigger.String()]; err != nil {
		return nil, err
	}
	return &Chooser{page: p, err: p.ChooserErr}, nil
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.record("screenshot %s", path)
	err := p.ScreenshotErr
	hang := p.HangScreenshots
	p.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG fake"), 0644)
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Chooser records the files it receives
type Chooser struct {
	page *Page
	err  error
}

func (c *Chooser) SetFiles(paths ...string) error {
	if c.err != nil {
		return c.err
	}
	if len(paths) == 0 {
		return errors.New("no files")
	}
	c.page.mu.Lock()
	defer c.page.mu.Unlock()
	c.page.uploaded = append(c.page.uploaded, paths...)
	return nil
}

var (
	_ interfaces.Browser     = (*Browser)(nil)
	_ interfaces.Session     = (*Session)(nil)
	_ interfaces.Page        = (*Page)(nil)
	_ interfaces.FileChooser = (*Chooser)(nil)
)
