// Package snapshot renders a project's canvas into a PNG the vision model
// can look at before planning changes.
package snapshot

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Renderer produces a data URL image of a project's current canvas. The
// agent route treats it as best effort: a render failure means the run
// proceeds without visual context.
type Renderer interface {
	RenderDataURL(ctx context.Context, project string) (string, error)
	Close() error
}

// Config configures the headless renderer.
type Config struct {
	// BaseURL is the editor frontend serving the canvas view.
	BaseURL string
	Width   int
	Height  int
	Timeout time.Duration
	Logger  zerolog.Logger
}

// RodRenderer screenshots the editor page in headless Chrome. The browser
// is launched lazily on first use and reused across renders.
type RodRenderer struct {
	cfg Config

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodRenderer creates a renderer. Chrome is not started until the first
// render.
func NewRodRenderer(cfg Config) *RodRenderer {
	if cfg.Width <= 0 {
		cfg.Width = 600
	}
	if cfg.Height <= 0 {
		cfg.Height = 800
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RodRenderer{cfg: cfg}
}

func (r *RodRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(true)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	r.launcher = l
	r.browser = browser
	r.cfg.Logger.Info().Msg("Snapshot browser started")
	return browser, nil
}

// RenderDataURL loads the project's canvas page and returns its screenshot
// as a base64 PNG data URL.
func (r *RodRenderer) RenderDataURL(ctx context.Context, project string) (string, error) {
	browser, err := r.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	page = page.Context(ctx)

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  r.cfg.Width,
		Height: r.cfg.Height,
	}); err != nil {
		return "", fmt.Errorf("set viewport: %w", err)
	}

	target := fmt.Sprintf("%s/?project=%s&snapshot=1", r.cfg.BaseURL, url.QueryEscape(project))
	if err := page.Navigate(target); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}

	data, err := page.Screenshot(false, nil)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}

	r.cfg.Logger.Debug().Str("project", project).Int("bytes", len(data)).Msg("Canvas snapshot rendered")
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Close shuts the browser down.
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			r.cfg.Logger.Warn().Err(err).Msg("Browser close failed")
		}
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
	return nil
}
