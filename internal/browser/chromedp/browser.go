// Package chromedpbrowser drives real Chrome sessions for workers. Each session gets
// its own browser process so cookies and login state never leak between
// credentials.
package chromedpbrowser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// Selectors locate the controls a session interacts with.
type Selectors struct {
	LoginURL           string `mapstructure:"login_url"`
	UsernameInput      string `mapstructure:"username_input"`
	PasswordInput      string `mapstructure:"password_input"`
	SubmitButton       string `mapstructure:"submit_button"`
	LoggedInMarker     string `mapstructure:"logged_in_marker"`
	ReactionsTrigger   string `mapstructure:"reactions_trigger"`
	ReactionsContainer string `mapstructure:"reactions_container"`
	LoadMoreButton     string `mapstructure:"load_more_button"`
}

// DefaultSelectors returns selectors for the LinkedIn web UI.
func DefaultSelectors() Selectors {
	return Selectors{
		LoginURL:           "https://www.linkedin.com/login",
		UsernameInput:      "#username",
		PasswordInput:      "#password",
		SubmitButton:       "button[type='submit']",
		LoggedInMarker:     "#global-nav",
		ReactionsTrigger:   "button.social-details-social-counts__count-value",
		ReactionsContainer: "div.social-details-reactors-modal",
		LoadMoreButton:     "button.scaffold-finite-scroll__load-button",
	}
}

// Config controls browser sessions.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	LoginTimeout      time.Duration
	ProbeTimeout      time.Duration
	ExtraFlags        map[string]any
	Selectors         Selectors
}

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultLoginTimeout      = 60 * time.Second
	defaultProbeTimeout      = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavigationTimeout
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = defaultLoginTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	def := DefaultSelectors()
	s := &c.Selectors
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&s.LoginURL, def.LoginURL)
	fill(&s.UsernameInput, def.UsernameInput)
	fill(&s.PasswordInput, def.PasswordInput)
	fill(&s.SubmitButton, def.SubmitButton)
	fill(&s.LoggedInMarker, def.LoggedInMarker)
	fill(&s.ReactionsTrigger, def.ReactionsTrigger)
	fill(&s.ReactionsContainer, def.ReactionsContainer)
	fill(&s.LoadMoreButton, def.LoadMoreButton)
	return c
}

// Browser opens isolated Chrome sessions.
type Browser struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs a Browser.
func New(cfg Config, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{cfg: cfg.withDefaults(), logger: logger.Named("browser")}
}

func (b *Browser) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if !headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}
	for name, value := range b.cfg.ExtraFlags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// Open starts a fresh browser process and returns a session bound to it.
func (b *Browser) Open(ctx context.Context, opts scrape.SessionOptions) (scrape.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions(opts.Headless)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser; it must use tabCtx so the process
	// outlives any per-call timeout.
	warmup := chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
	if err := chromedp.Run(tabCtx, warmup); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	b.logger.Debug("browser session opened", zap.Bool("headless", opts.Headless))
	return &Session{
		cfg:         b.cfg,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		logger:      b.logger,
	}, nil
}

// Session is one logged-in (or logging-in) browser tab.
type Session struct {
	cfg         Config
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// Login signs in with cred and waits for the logged-in marker.
func (s *Session) Login(ctx context.Context, cred scrape.Credential) error {
	sel := s.cfg.Selectors
	err := s.run(ctx, s.cfg.LoginTimeout,
		chromedp.Navigate(sel.LoginURL),
		chromedp.WaitVisible(sel.UsernameInput, chromedp.ByQuery),
		chromedp.SendKeys(sel.UsernameInput, cred.Identifier, chromedp.ByQuery),
		chromedp.SendKeys(sel.PasswordInput, cred.Secret, chromedp.ByQuery),
		chromedp.Click(sel.SubmitButton, chromedp.ByQuery),
		chromedp.WaitVisible(sel.LoggedInMarker, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: login as %s: %w", scrape.ErrAuthentication, cred.Masked(), err)
	}
	s.logger.Debug("login succeeded", zap.String("credential", cred.Masked()))
	return nil
}

// Navigate loads url and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// OpenReactions opens the reactions list of the current post.
func (s *Session) OpenReactions(ctx context.Context) error {
	sel := s.cfg.Selectors
	if err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Click(sel.ReactionsTrigger, chromedp.ByQuery),
		chromedp.WaitVisible(sel.ReactionsContainer, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("open reactions: %w", err)
	}
	return nil
}

// LoadMoreVisible reports whether the "load more" control is rendered.
func (s *Session) LoadMoreVisible(ctx context.Context) (bool, error) {
	script, err := visibilityScript(s.cfg.Selectors.LoadMoreButton)
	if err != nil {
		return false, err
	}
	var visible bool
	if err := s.run(ctx, s.cfg.ProbeTimeout, chromedp.Evaluate(script, &visible)); err != nil {
		return false, fmt.Errorf("probe load more: %w", err)
	}
	return visible, nil
}

// LoadMore clicks the "load more" control once.
func (s *Session) LoadMore(ctx context.Context) error {
	if err := s.run(ctx, s.cfg.ProbeTimeout,
		chromedp.Click(s.cfg.Selectors.LoadMoreButton, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return fmt.Errorf("click load more: %w", err)
	}
	return nil
}

// HTML snapshots the current document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot dom: %w", err)
	}
	return html, nil
}

// Close shuts the tab and the browser process down.
func (s *Session) Close() error {
	s.tabCancel()
	s.allocCancel()
	return nil
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	err := chromedp.Run(taskCtx, actions...)
	return classify(ctx, taskCtx, err)
}

// classify marks deadline failures with scrape.ErrTimeout so callers can tell
// a slow page from a broken one.
func classify(parent, task context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, scrape.ErrTimeout) {
		return err
	}
	deadline := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(task.Err(), context.DeadlineExceeded) ||
		(parent != nil && errors.Is(parent.Err(), context.DeadlineExceeded))
	if deadline {
		return fmt.Errorf("%w: %w", scrape.ErrTimeout, err)
	}
	return fmt.Errorf("chromedp run: %w", err)
}

func visibilityScript(selector string) (string, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("quote selector: %w", err)
	}
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); return !!el && el.offsetParent !== null; })()`, quoted), nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
