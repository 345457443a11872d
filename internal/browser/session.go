package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// readBound caps plain DOM reads. Reads always follow an explicit WaitFor, so
// the node is already attached; this only guards against a wedged target.
const readBound = 10 * time.Second

// ErrNodeMissing is returned when a scoped click or fill finds no element.
var ErrNodeMissing = errors.New("browser: no element matched selector")

// Element is a DOM node snapshot: its text content plus requested attributes.
// Attributes absent on the node are missing from the map.
type Element struct {
	Text  string            `json:"text"`
	Attrs map[string]string `json:"attrs"`
}

// Session is the capability surface the provider adapters consume from the
// browser. One session drives one page; all operations on it are sequential.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	ReadText(ctx context.Context, selector string) (string, error)
	Query(ctx context.Context, selector string, attrs ...string) ([]Element, error)
	QueryGrouped(ctx context.Context, groupSelector, innerSelector string, attrs ...string) ([][]Element, error)
	Click(ctx context.Context, selector string, timeout time.Duration) error
	ClickWithin(ctx context.Context, groupSelector string, index int, innerSelector string) error
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	FillWithin(ctx context.Context, groupSelector string, index int, innerSelector, value string) error
	Close() error
}

// IsTimeout reports whether a session operation failed because its bounded
// wait elapsed.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Factory creates chromedp-backed sessions. When RemoteURL is set, sessions
// attach to an existing DevTools endpoint instead of launching a local Chrome.
type Factory struct {
	remoteURL string
	log       *zap.Logger
}

// NewFactory constructs a session factory.
func NewFactory(remoteURL string, log *zap.Logger) *Factory {
	return &Factory{remoteURL: remoteURL, log: log}
}

// NewSession launches a fresh browser tab. The session is independent of the
// request context: its lifetime ends only at Close, and individual operations
// are bounded by their own timeouts.
func (f *Factory) NewSession() (Session, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if f.remoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), f.remoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), chromedp.DefaultExecAllocatorOptions[:]...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Force the browser to start now so launch failures surface here rather
	// than on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: start session: %w", err)
	}

	f.log.Debug("browser session opened", zap.Bool("remote", f.remoteURL != ""))
	return &chromeSession{ctx: tabCtx, cancels: []context.CancelFunc{tabCancel, allocCancel}}, nil
}

type chromeSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

// run executes chromedp actions on the session's tab, bounded by timeout and
// cancellable through the caller's context.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := s.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	if ctx != nil {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.Navigate(url))
}

func (s *chromeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *chromeSession) ReadText(ctx context.Context, selector string) (string, error) {
	var text string
	if err := s.run(ctx, readBound, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

func (s *chromeSession) Query(ctx context.Context, selector string, attrs ...string) ([]Element, error) {
	expr := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(el => %s)`,
		jsString(selector), elementSnippet(attrs))
	var elements []Element
	if err := s.run(ctx, readBound, chromedp.Evaluate(expr, &elements)); err != nil {
		return nil, err
	}
	return elements, nil
}

func (s *chromeSession) QueryGrouped(ctx context.Context, groupSelector, innerSelector string, attrs ...string) ([][]Element, error) {
	expr := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(group => Array.from(group.querySelectorAll(%s)).map(el => %s))`,
		jsString(groupSelector), jsString(innerSelector), elementSnippet(attrs))
	var groups [][]Element
	if err := s.run(ctx, readBound, chromedp.Evaluate(expr, &groups)); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *chromeSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromeSession) ClickWithin(ctx context.Context, groupSelector string, index int, innerSelector string) error {
	expr := fmt.Sprintf(`(() => {
		const groups = document.querySelectorAll(%s);
		if (%d >= groups.length) { return false; }
		const el = groups[%d].querySelector(%s);
		if (!el) { return false; }
		el.click();
		return true;
	})()`, jsString(groupSelector), index, index, jsString(innerSelector))

	var clicked bool
	if err := s.run(ctx, readBound, chromedp.Evaluate(expr, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s[%d] %s", ErrNodeMissing, groupSelector, index, innerSelector)
	}
	return nil
}

func (s *chromeSession) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *chromeSession) FillWithin(ctx context.Context, groupSelector string, index int, innerSelector, value string) error {
	// Uses the native value setter plus synthetic input/change events so that
	// framework-rendered inputs register the change.
	expr := fmt.Sprintf(`(() => {
		const groups = document.querySelectorAll(%s);
		if (%d >= groups.length) { return false; }
		const el = groups[%d].querySelector(%s);
		if (!el) { return false; }
		const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, %s);
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, jsString(groupSelector), index, index, jsString(innerSelector), jsString(value))

	var filled bool
	if err := s.run(ctx, readBound, chromedp.Evaluate(expr, &filled)); err != nil {
		return err
	}
	if !filled {
		return fmt.Errorf("%w: %s[%d] %s", ErrNodeMissing, groupSelector, index, innerSelector)
	}
	return nil
}

func (s *chromeSession) Close() error {
	for _, cancel := range s.cancels {
		cancel()
	}
	return nil
}

// jsString renders a Go string as a safe JavaScript string literal.
func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

// elementSnippet builds the JS object literal read for each matched element.
func elementSnippet(attrs []string) string {
	snippet := `{ text: (el.textContent || '').trim(), attrs: (() => { const a = {}; `
	for _, attr := range attrs {
		snippet += fmt.Sprintf(`if (el.hasAttribute(%s)) { a[%s] = el.getAttribute(%s); } `,
			jsString(attr), jsString(attr), jsString(attr))
	}
	snippet += `return a; })() }`
	return snippet
}
