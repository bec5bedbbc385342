package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Engine is the browser-automation capability the automator drives.
// Implemented by ChromeEngine in production and fakes in tests; its
// unavailability (crash, launch failure) is an ordinary failure mode.
type Engine interface {
	NewSession(ctx context.Context) (Session, error)
	Close()
}

// Session is one browser tab working a single registration attempt
type Session interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	Close()
}

// ErrNoSessions is returned when every automation session slot is in use
var ErrNoSessions = errors.New("maximum number of browser sessions reached")

// ===========================
// 🌐 Headless Chrome engine
type ChromeEngine struct {
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	active      int
	maxSessions int
	timeout     time.Duration
}

func NewChromeEngine(maxSessions int, timeout time.Duration) *ChromeEngine {
	if maxSessions < 1 {
		maxSessions = 2
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeEngine{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		maxSessions: maxSessions,
		timeout:     timeout,
	}
}

// NewSession opens a fresh browser context and verifies it responds.
// Sessions are a scarce resource; the cap keeps concurrent registrations
// from piling Chrome instances onto the host.
func (e *ChromeEngine) NewSession(ctx context.Context) (Session, error) {
	e.mu.Lock()
	if e.active >= e.maxSessions {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d/%d", ErrNoSessions, e.active, e.maxSessions)
	}
	e.active++
	e.mu.Unlock()

	browserCtx, cancel := chromedp.NewContext(e.allocCtx)

	// Health check so a crashed/unlaunchable Chrome surfaces here, not
	// halfway through a registration
	healthCtx, healthCancel := context.WithTimeout(browserCtx, e.timeout)
	defer healthCancel()

	var probe string
	if err := chromedp.Run(healthCtx, chromedp.Evaluate(`"ok"`, &probe)); err != nil {
		cancel()
		e.release()
		return nil, fmt.Errorf("browser session health check failed: %w", err)
	}

	return &chromeSession{
		ctx:     browserCtx,
		cancel:  cancel,
		timeout: e.timeout,
		engine:  e,
	}, nil
}

// Close shuts the allocator and every open session down
func (e *ChromeEngine) Close() {
	e.allocCancel()
}

func (e *ChromeEngine) release() {
	e.mu.Lock()
	if e.active > 0 {
		e.active--
	}
	e.mu.Unlock()
}

type chromeSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	engine  *ChromeEngine
	closed  sync.Once
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// chromedp actions must run on the browser context; the per-call
	// timeout bounds the work instead of the caller context
	navCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation failed for %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Short per-field timeout: a missing field should fail fast so the
	// next candidate selector gets its turn
	fillCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	err := chromedp.Run(fillCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill failed for %s: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clickCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := chromedp.Run(clickCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click failed for %s: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	htmlCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Close() {
	s.closed.Do(func() {
		s.cancel()
		s.engine.release()
	})
}
