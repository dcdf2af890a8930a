// Package sentry implements the ErrorReporter port with sentry-go.
package sentry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sentrygo "github.com/getsentry/sentry-go"

	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ErrorReporter = (*Reporter)(nil)

// Config holds the error tracker settings. An empty DSN disables delivery.
type Config struct {
	DSN         string
	Environment string
	Release     string
	ServerName  string

	// Transport overrides the delivery transport. Nil selects the default HTTP transport.
	Transport sentrygo.Transport
}

// Reporter forwards errors to Sentry through its own hub, so reporters with
// different configurations never share global state.
type Reporter struct {
	hub     *sentrygo.Hub
	enabled bool
	logger  *slog.Logger
}

// NewReporter creates a Reporter. With an empty DSN it returns a reporter
// whose Report only logs at debug level.
func NewReporter(cfg Config, logger *slog.Logger) (*Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		logger.Warn("sentry DSN not configured, error tracking disabled")
		return &Reporter{logger: logger}, nil
	}

	client, err := sentrygo.NewClient(sentrygo.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		ServerName:  cfg.ServerName,
		Transport:   cfg.Transport,
		BeforeSend:  scrubEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}

	logger.Info("sentry initialized", "environment", cfg.Environment, "release", cfg.Release)
	return &Reporter{
		hub:     sentrygo.NewHub(client, sentrygo.NewScope()),
		enabled: true,
		logger:  logger,
	}, nil
}

// Enabled reports whether events are delivered.
func (r *Reporter) Enabled() bool {
	return r.enabled
}

// Report captures err with tags attached to the event. Nil errors are ignored.
func (r *Reporter) Report(_ context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	if !r.enabled {
		r.logger.Debug("error not reported, tracking disabled", "error", err)
		return
	}

	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentrygo.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
	r.logger.Debug("exception captured in sentry", "error", err)
}

// Flush waits up to timeout for queued events to be delivered.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.enabled {
		return true
	}
	return r.hub.Flush(timeout)
}

// scrubEvent strips credentials from request data before delivery.
func scrubEvent(event *sentrygo.Event, _ *sentrygo.EventHint) *sentrygo.Event {
	if event.Request != nil && event.Request.Headers != nil {
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
	}
	return event
}
