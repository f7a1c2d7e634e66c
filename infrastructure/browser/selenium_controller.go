package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"go.uber.org/multierr"
)

const defaultDriverPort = 9515

// roleTags lists the elements carrying an implicit ARIA role
var roleTags = map[string][]string{
	"button":       {"button", "input[@type='submit' or @type='button' or @type='reset']"},
	"heading":      {"h1", "h2", "h3", "h4", "h5", "h6"},
	"link":         {"a[@href]"},
	"columnheader": {"th"},
	"row":          {"tr"},
	"cell":         {"td"},
	"option":       {"option"},
	"textbox":      {"textarea", "input[not(@type) or @type='text' or @type='email' or @type='password' or @type='search']"},
	"dialog":       {"dialog"},
	"banner":       {"header"},
	"navigation":   {"nav"},
	"table":        {"table"},
}

type elementFinder interface {
	FindElements(by, value string) ([]selenium.WebElement, error)
}

type SeleniumController struct {
	service *selenium.Service
	port    int
	caps    selenium.Capabilities
	logger  *logrus.Logger
}

// findChromeDriver - finds ChromeDriver executable path
func findChromeDriver(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, nil
		}
	}

	commonPaths := []string{
		"/usr/local/bin/chromedriver",
		"/usr/bin/chromedriver",
		"/opt/homebrew/bin/chromedriver",
		filepath.Join(os.Getenv("HOME"), "bin", "chromedriver"),
	}

	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath("chromedriver"); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("chromedriver not found. Please install it or set BROWSER_DRIVER_PATH environment variable")
}

// findChromeBinary - finds Chrome/Chromium browser executable path
func findChromeBinary(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}

	chromePaths := []string{
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
	}

	for _, path := range chromePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	return ""
}

// NewSeleniumController - starts ChromeDriver; every session is a separate WebDriver
func NewSeleniumController(opts Options, logger *logrus.Logger) (*SeleniumController, error) {
	driverPath, err := findChromeDriver(opts.DriverPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find chromedriver: %w", err)
	}

	logger.Infof("Using ChromeDriver at: %s", driverPath)

	chromeBinary := findChromeBinary(opts.ChromeBinary)
	if chromeBinary != "" {
		logger.Infof("Using Chrome binary at: %s", chromeBinary)
	}

	port := opts.DriverPort
	if port == 0 {
		port = defaultDriverPort
	}

	service, err := selenium.NewChromeDriverService(driverPath, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start chromedriver: %w", err)
	}

	caps := selenium.Capabilities{
		"browserName": "chrome",
	}

	args := []string{
		"--disable-dev-shm-usage",
		"--no-sandbox",
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	width, height := opts.Width, opts.Height
	if width == 0 || height == 0 {
		width, height = 1280, 720
	}
	args = append(args, fmt.Sprintf("--window-size=%d,%d", width, height))
	if opts.Locale != "" {
		args = append(args, "--lang="+opts.Locale)
	}

	chromeCaps := chrome.Capabilities{Args: args}
	if chromeBinary != "" {
		chromeCaps.Path = chromeBinary
	}
	caps.AddChrome(chromeCaps)

	return &SeleniumController{
		service: service,
		port:    port,
		caps:    caps,
		logger:  logger,
	}, nil
}

// NewSession - opens a new WebDriver session with a fresh profile
func (s *SeleniumController) NewSession(ctx context.Context) (interfaces.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wd, err := selenium.NewRemote(s.caps, fmt.Sprintf("http://localhost:%d/wd/hub", s.port))
	if err != nil {
		if strings.Contains(err.Error(), "cannot find Chrome binary") {
			return nil, fmt.Errorf("failed to create webdriver: Chrome browser not found. Please install Google Chrome or set CHROME_BINARY_PATH environment variable. Error: %w", err)
		}
		return nil, fmt.Errorf("failed to create webdriver: %w", err)
	}

	return &seleniumSession{page: &seleniumPage{wd: wd, logger: s.logger}}, nil
}

// Close - stops ChromeDriver service
func (s *SeleniumController) Close() error {
	if s.service == nil {
		return nil
	}
	err := s.service.Stop()
	s.service = nil
	return err
}

type seleniumSession struct {
	page *seleniumPage
	once sync.Once
	err  error
}

func (s *seleniumSession) Page() interfaces.Page {
	return s.page
}

// Close - quits the WebDriver session, dropping its cookies and storage
func (s *seleniumSession) Close() error {
	s.once.Do(func() {
		var err error
		err = multierr.Append(err, s.page.wd.DeleteAllCookies())
		err = multierr.Append(err, s.page.wd.Quit())
		if err != nil {
			s.err = fmt.Errorf("failed to quit webdriver: %w", err)
		}
	})
	return s.err
}

type seleniumPage struct {
	wd     selenium.WebDriver
	logger *logrus.Logger
}

// Goto - navigates browser to specified URL
func (p *seleniumPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := bounded(ctx, timeout, "navigate", func() (struct{}, error) {
		if err := p.wd.SetPageLoadTimeout(timeout); err != nil {
			p.logger.Warnf("Failed to set page load timeout: %v", err)
		}
		return struct{}{}, p.wd.Get(url)
	})
	return err
}

// Probe - counts matches and visible matches
func (p *seleniumPage) Probe(ctx context.Context, locator entities.Locator) (entities.ElementSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return entities.ElementSnapshot{}, err
	}

	return bounded(ctx, 0, "probe", func() (entities.ElementSnapshot, error) {
		elements, err := p.resolve(locator)
		if err != nil {
			return entities.ElementSnapshot{}, err
		}

		snapshot := entities.ElementSnapshot{Count: len(elements)}
		for i, el := range elements {
			if i >= maxProbedElements {
				break
			}
			visible, err := el.IsDisplayed()
			if err != nil {
				// stale elements were detached between find and check
				snapshot.Count--
				continue
			}
			if visible {
				snapshot.Visible++
			}
		}
		return snapshot, nil
	})
}

// Fill - clears the input and types value
func (p *seleniumPage) Fill(ctx context.Context, locator entities.Locator, value string, timeout time.Duration) error {
	_, err := bounded(ctx, timeout, "fill", func() (struct{}, error) {
		element, err := p.single(ctx, locator)
		if err != nil {
			return struct{}{}, err
		}
		if err := element.Clear(); err != nil {
			p.logger.Warnf("Failed to clear element: %v", err)
		}
		return struct{}{}, element.SendKeys(value)
	})
	return err
}

// Click - scrolls the element into view and clicks it
func (p *seleniumPage) Click(ctx context.Context, locator entities.Locator, timeout time.Duration) error {
	_, err := bounded(ctx, timeout, "click", func() (struct{}, error) {
		element, err := p.single(ctx, locator)
		if err != nil {
			return struct{}{}, err
		}
		p.scrollIntoView(element)
		return struct{}{}, element.Click()
	})
	return err
}

// ChooseFile returns the file input behind trigger. WebDriver cannot drive
// native dialogs, so the input receives the path directly.
func (p *seleniumPage) ChooseFile(ctx context.Context, trigger entities.Locator, timeout time.Duration) (interfaces.FileChooser, error) {
	return bounded(ctx, timeout, "choose file", func() (interfaces.FileChooser, error) {
		element, err := p.single(ctx, trigger)
		if err != nil {
			return nil, err
		}

		xpaths := []string{
			"self::input[@type='file']",
			".//input[@type='file']",
			"ancestor::*[.//input[@type='file']][1]//input[@type='file']",
		}
		for _, xp := range xpaths {
			inputs, err := element.FindElements(selenium.ByXPATH, xp)
			if err == nil && len(inputs) > 0 {
				return &seleniumChooser{input: inputs[0]}, nil
			}
		}
		return nil, fmt.Errorf("no file input found for %s", trigger)
	})
}

// Screenshot - writes a PNG of the current window
func (p *seleniumPage) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := bounded(ctx, 0, "screenshot", p.wd.Screenshot)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (p *seleniumPage) URL() string {
	url, err := p.wd.CurrentURL()
	if err != nil {
		return ""
	}
	return url
}

func (p *seleniumPage) single(ctx context.Context, locator entities.Locator) (selenium.WebElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elements, err := p.resolve(locator)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("element not found: %s", locator)
	}
	return elements[0], nil
}

func (p *seleniumPage) scrollIntoView(element selenium.WebElement) {
	script := `arguments[0].scrollIntoView({block: 'center'}); return true;`
	if _, err := p.wd.ExecuteScript(script, []interface{}{element}); err != nil {
		p.logger.Warnf("Failed to scroll to element: %v", err)
		if err := element.MoveTo(0, 0); err != nil {
			p.logger.Warnf("Failed to move to element: %v", err)
		}
	}
}

// resolve finds all elements for the locator against the current DOM
func (p *seleniumPage) resolve(l entities.Locator) ([]selenium.WebElement, error) {
	scopes := []elementFinder{p.wd}
	prefix := "//"
	if l.Parent != nil {
		parents, err := p.resolve(*l.Parent)
		if err != nil {
			return nil, err
		}
		scopes = scopes[:0]
		for _, parent := range parents {
			scopes = append(scopes, parent)
		}
		prefix = ".//"
	}

	var found []selenium.WebElement
	for _, scope := range scopes {
		elements, err := p.find(scope, prefix, l)
		if err != nil {
			return nil, err
		}
		found = append(found, elements...)
	}

	if l.HasText != "" {
		filtered := found[:0]
		for _, el := range found {
			text, err := el.Text()
			if err == nil && containsFold(text, l.HasText) {
				filtered = append(filtered, el)
			}
		}
		found = filtered
	}

	if l.First && len(found) > 1 {
		found = found[:1]
	}
	return found, nil
}

func (p *seleniumPage) find(scope elementFinder, prefix string, l entities.Locator) ([]selenium.WebElement, error) {
	switch l.Strategy {
	case entities.ByCSS:
		return findAll(scope, selenium.ByCSSSelector, l.Value)

	case entities.ByRole:
		branches := []string{fmt.Sprintf("*[@role=%s]", xpathLiteral(l.Role))}
		branches = append(branches, roleTags[l.Role]...)
		for i, b := range branches {
			branches[i] = prefix + b
		}
		candidates, err := findAll(scope, selenium.ByXPATH, strings.Join(branches, " | "))
		if err != nil || l.Value == "" {
			return candidates, err
		}
		return filterByName(candidates, l.Value, l.Exact), nil

	case entities.ByLabel:
		return p.findByLabel(scope, prefix, l)

	case entities.ByText:
		lit := xpathLiteral(l.Value)
		match := fmt.Sprintf("contains(normalize-space(.), %s)", lit)
		if l.Exact {
			match = fmt.Sprintf("normalize-space(.)=%s", lit)
		}
		// innermost element carrying the text
		xp := fmt.Sprintf("%s*[%s][not(.//*[%s])]", prefix, match, match)
		return findAll(scope, selenium.ByXPATH, xp)

	case entities.ByPlaceholder:
		return findAll(scope, selenium.ByXPATH, prefix+"*"+attrPredicate("placeholder", l.Value, l.Exact))

	case entities.ByAltText:
		return findAll(scope, selenium.ByXPATH, prefix+"*"+attrPredicate("alt", l.Value, l.Exact))

	default:
		return nil, fmt.Errorf("unsupported locator strategy %q", l.Strategy)
	}
}

// findByLabel resolves <label for>, wrapping labels and aria-label
func (p *seleniumPage) findByLabel(scope elementFinder, prefix string, l entities.Locator) ([]selenium.WebElement, error) {
	var found []selenium.WebElement

	labels, err := findAll(scope, selenium.ByXPATH, prefix+"label")
	if err != nil {
		return nil, err
	}
	for _, label := range labels {
		text, err := label.Text()
		if err != nil || !nameMatches(text, l.Value, l.Exact) {
			continue
		}
		if id, err := label.GetAttribute("for"); err == nil && id != "" {
			controls, err := findAll(p.wd, selenium.ByID, id)
			if err == nil {
				found = append(found, controls...)
				continue
			}
		}
		nested, err := findAll(label, selenium.ByXPATH, ".//input | .//textarea | .//select")
		if err == nil {
			found = append(found, nested...)
		}
	}

	aria, err := findAll(scope, selenium.ByXPATH, prefix+"*"+attrPredicate("aria-label", l.Value, l.Exact))
	if err != nil {
		return nil, err
	}
	return append(found, aria...), nil
}

type seleniumChooser struct {
	input selenium.WebElement
}

func (c *seleniumChooser) SetFiles(paths ...string) error {
	abs := make([]string, 0, len(paths))
	for _, path := range paths {
		full, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		abs = append(abs, full)
	}
	return wrapSeleniumErr(c.input.SendKeys(strings.Join(abs, "\n")))
}

func findAll(scope elementFinder, by, value string) ([]selenium.WebElement, error) {
	elements, err := scope.FindElements(by, value)
	if err != nil {
		if strings.Contains(err.Error(), "no such element") {
			return nil, nil
		}
		return nil, wrapSeleniumErr(err)
	}
	return elements, nil
}

// filterByName keeps elements whose accessible name matches
func filterByName(elements []selenium.WebElement, name string, exact bool) []selenium.WebElement {
	var out []selenium.WebElement
	for _, el := range elements {
		if nameMatches(accessibleName(el), name, exact) {
			out = append(out, el)
		}
	}
	return out
}

func accessibleName(el selenium.WebElement) string {
	for _, attr := range []string{"aria-label", "value", "title"} {
		if v, err := el.GetAttribute(attr); err == nil && v != "" {
			return v
		}
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return text
}

func nameMatches(actual, want string, exact bool) bool {
	actual = strings.Join(strings.Fields(actual), " ")
	if exact {
		return actual == want
	}
	return containsFold(actual, want)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func attrPredicate(attr, value string, exact bool) string {
	if exact {
		return fmt.Sprintf("[@%s=%s]", attr, xpathLiteral(value))
	}
	return fmt.Sprintf("[contains(@%s, %s)]", attr, xpathLiteral(value))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+part+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// bounded runs a WebDriver call until it returns, ctx ends or timeout passes.
// The driver's HTTP client has no deadline of its own; an abandoned call
// finishes in the background and its result is dropped.
func bounded[T any](ctx context.Context, timeout time.Duration, op string, call func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := call()
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		return out.value, wrapSeleniumErr(out.err)
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("webdriver %s: %w", op, ctx.Err())
	}
}

// wrapSeleniumErr marks WebDriver timeouts with entities.ErrActionTimeout
func wrapSeleniumErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return fmt.Errorf("%w: %w", entities.ErrActionTimeout, err)
	}
	return err
}

var _ interfaces.Browser = (*SeleniumController)(nil)
