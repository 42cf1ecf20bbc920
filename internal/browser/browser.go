// Package browser manages headless browser sessions used to render
// JavaScript-driven listing pages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionStart means the browser process could not be started.
	ErrSessionStart = errors.New("browser session could not start")
	// ErrNavigation means the page could not be loaded.
	ErrNavigation = errors.New("page navigation failed")
	// ErrMarkerTimeout means the render marker did not appear within the wait budget.
	ErrMarkerTimeout = errors.New("render marker did not appear in time")
)

// Renderer hands out browser sessions. Every acquired Session must be closed.
type Renderer interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session is one browser process. It is not safe for concurrent use.
type Session interface {
	// Render loads url, waits up to wait for an element matching the CSS
	// selector marker and returns the rendered document HTML.
	Render(ctx context.Context, url, marker string, wait time.Duration) (string, error)
	Close() error
}

// WithSession acquires a session, runs fn with it and releases it on every
// exit path, panics included. A failure to close is reported only when fn
// itself succeeded.
func WithSession(ctx context.Context, r Renderer, fn func(Session) error) (err error) {
	session, err := r.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close browser session: %w", cerr)
		}
	}()
	return fn(session)
}
