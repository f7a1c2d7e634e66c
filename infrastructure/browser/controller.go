package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// maxProbedElements bounds visibility checks per probe
const maxProbedElements = 20

// Options configure the launched browser
type Options struct {
	Headless bool
	SlowMo   time.Duration
	Width    int
	Height   int
	Locale   string

	// selenium only
	DriverPath   string
	ChromeBinary string
	DriverPort   int
}

type playwrightBrowser struct {
	pw             *playwright.Playwright
	browser        playwright.Browser
	contextOptions playwright.BrowserNewContextOptions
	logger         *logrus.Logger
}

// NewPlaywrightBrowser - starts playwright and launches Chromium
func NewPlaywrightBrowser(opts Options, logger *logrus.Logger) (interfaces.Browser, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-infobars",
			"--disable-notifications",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	width, height := opts.Width, opts.Height
	if width == 0 || height == 0 {
		width, height = 1280, 720
	}

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  width,
			Height: height,
		},

		JavaScriptEnabled: playwright.Bool(true),

		IgnoreHttpsErrors: playwright.Bool(true),

		AcceptDownloads: playwright.Bool(true),
	}
	if opts.Locale != "" {
		contextOptions.Locale = playwright.String(opts.Locale)
	}

	logger.WithField("headless", opts.Headless).Info("Playwright Chromium launched")

	return &playwrightBrowser{
		pw:             pw,
		browser:        browser,
		contextOptions: contextOptions,
		logger:         logger,
	}, nil
}

// NewSession - creates an isolated browser context with one page
func (b *playwrightBrowser) NewSession(ctx context.Context) (interfaces.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := b.browser.NewContext(b.contextOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.OnDialog(func(dialog playwright.Dialog) {

		dialog.Accept()
	})

	return &playwrightSession{
		context: bctx,
		page:    &playwrightPage{page: page},
	}, nil
}

// Close - closes the browser and stops the playwright driver
func (b *playwrightBrowser) Close() error {
	var closeErr error

	if b.browser != nil {
		if err := b.browser.Close(); err != nil && !isClosedErr(err) {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to close browser: %w", err))
		}
		b.browser = nil
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to stop playwright: %w", err))
		}
		b.pw = nil
	}

	return closeErr
}

type playwrightSession struct {
	context playwright.BrowserContext
	page    *playwrightPage
	once    sync.Once
	err     error
}

func (s *playwrightSession) Page() interfaces.Page {
	return s.page
}

// Close - destroys the context; later calls return the first result
func (s *playwrightSession) Close() error {
	s.once.Do(func() {
		if err := s.context.Close(); err != nil && !isClosedErr(err) {
			s.err = fmt.Errorf("failed to close context: %w", err)
		}
	})
	return s.err
}

type playwrightPage struct {
	page playwright.Page
}

// Goto - navigates to the specified URL
func (p *playwrightPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   millis(timeout),
	})
	return wrapErr(err)
}

// Probe - counts matches and visible matches of the locator
func (p *playwrightPage) Probe(ctx context.Context, locator entities.Locator) (entities.ElementSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return entities.ElementSnapshot{}, err
	}

	loc := p.resolve(locator)
	count, err := loc.Count()
	if err != nil {
		return entities.ElementSnapshot{}, wrapErr(err)
	}

	snapshot := entities.ElementSnapshot{Count: count}
	for i := 0; i < count && i < maxProbedElements; i++ {
		visible, err := loc.Nth(i).IsVisible()
		if err != nil {
			return snapshot, wrapErr(err)
		}
		if visible {
			snapshot.Visible++
		}
	}
	return snapshot, nil
}

// Fill - replaces the input value
func (p *playwrightPage) Fill(ctx context.Context, locator entities.Locator, value string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return wrapErr(p.resolve(locator).Fill(value, playwright.LocatorFillOptions{
		Timeout: millis(timeout),
	}))
}

// Click - clicks the element and lets the page settle
func (p *playwrightPage) Click(ctx context.Context, locator entities.Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.resolve(locator).Click(playwright.LocatorClickOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return wrapErr(err)
	}

	p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(5000),
	})
	return nil
}

// ChooseFile - clicks the trigger and captures the opened file chooser
func (p *playwrightPage) ChooseFile(ctx context.Context, trigger entities.Locator, timeout time.Duration) (interfaces.FileChooser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc := p.resolve(trigger)
	chooser, err := p.page.ExpectFileChooser(func() error {
		return loc.Click(playwright.LocatorClickOptions{
			Timeout: millis(timeout),
		})
	}, playwright.PageExpectFileChooserOptions{
		Timeout: millis(timeout),
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return &playwrightChooser{chooser: chooser}, nil
}

// Screenshot - takes a full page screenshot
func (p *playwrightPage) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return context.DeadlineExceeded
		}
		opts.Timeout = millis(left)
	}
	_, err := p.page.Screenshot(opts)
	return wrapErr(err)
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

// resolve builds a fresh playwright locator; nothing is cached between calls
func (p *playwrightPage) resolve(l entities.Locator) playwright.Locator {
	var loc playwright.Locator
	if l.Parent != nil {
		loc = resolveWithin(p.resolve(*l.Parent), l)
	} else {
		loc = resolveOnPage(p.page, l)
	}

	if l.HasText != "" {
		loc = loc.Filter(playwright.LocatorFilterOptions{HasText: l.HasText})
	}
	if l.First {
		loc = loc.First()
	}
	return loc
}

func resolveOnPage(page playwright.Page, l entities.Locator) playwright.Locator {
	exact := playwright.Bool(l.Exact)
	switch l.Strategy {
	case entities.ByRole:
		opts := playwright.PageGetByRoleOptions{Exact: exact}
		if l.Value != "" {
			opts.Name = l.Value
		}
		return page.GetByRole(playwright.AriaRole(l.Role), opts)
	case entities.ByLabel:
		return page.GetByLabel(l.Value, playwright.PageGetByLabelOptions{Exact: exact})
	case entities.ByText:
		return page.GetByText(l.Value, playwright.PageGetByTextOptions{Exact: exact})
	case entities.ByPlaceholder:
		return page.GetByPlaceholder(l.Value, playwright.PageGetByPlaceholderOptions{Exact: exact})
	case entities.ByAltText:
		return page.GetByAltText(l.Value, playwright.PageGetByAltTextOptions{Exact: exact})
	default:
		return page.Locator(l.Value)
	}
}

func resolveWithin(parent playwright.Locator, l entities.Locator) playwright.Locator {
	exact := playwright.Bool(l.Exact)
	switch l.Strategy {
	case entities.ByRole:
		opts := playwright.LocatorGetByRoleOptions{Exact: exact}
		if l.Value != "" {
			opts.Name = l.Value
		}
		return parent.GetByRole(playwright.AriaRole(l.Role), opts)
	case entities.ByLabel:
		return parent.GetByLabel(l.Value, playwright.LocatorGetByLabelOptions{Exact: exact})
	case entities.ByText:
		return parent.GetByText(l.Value, playwright.LocatorGetByTextOptions{Exact: exact})
	case entities.ByPlaceholder:
		return parent.GetByPlaceholder(l.Value, playwright.LocatorGetByPlaceholderOptions{Exact: exact})
	case entities.ByAltText:
		return parent.GetByAltText(l.Value, playwright.LocatorGetByAltTextOptions{Exact: exact})
	default:
		return parent.Locator(l.Value)
	}
}

type playwrightChooser struct {
	chooser playwright.FileChooser
}

func (c *playwrightChooser) SetFiles(paths ...string) error {
	return wrapErr(c.chooser.SetFiles(paths))
}

// wrapErr marks playwright timeouts with entities.ErrActionTimeout
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", entities.ErrActionTimeout, err)
	}
	return err
}

// isClosedErr - the target was already gone, nothing left to release
func isClosedErr(err error) bool {
	if errors.Is(err, playwright.ErrTargetClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "closed") || strings.Contains(errStr, "target closed")
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}
