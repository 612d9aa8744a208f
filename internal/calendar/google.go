package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Scope is the OAuth scope needed to create events and list them.
const Scope = gcal.CalendarScope

// TokenSourceProvider hands out authorized token sources.
type TokenSourceProvider interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// GoogleEvents talks to the Calendar API. The service is created on first
// use, so a missing token only fails the call that needs it.
type GoogleEvents struct {
	provider TokenSourceProvider
	opts     []option.ClientOption

	mu  sync.Mutex
	srv *gcal.Service
}

func NewGoogleEvents(provider TokenSourceProvider, opts ...option.ClientOption) *GoogleEvents {
	return &GoogleEvents{provider: provider, opts: opts}
}

type credentialError struct {
	err error
}

func (e *credentialError) Error() string      { return fmt.Sprintf("calendar credentials: %v", e.err) }
func (e *credentialError) Unwrap() error      { return e.err }
func (e *credentialError) Unauthorized() bool { return true }

func (g *GoogleEvents) service(ctx context.Context) (*gcal.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.srv != nil {
		return g.srv, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// the service outlives the request context, token refreshes must not be tied to it
	ts, err := g.provider.TokenSource(context.Background())
	if err != nil {
		return nil, &credentialError{err: err}
	}

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, g.opts...)
	srv, err := gcal.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	g.srv = srv
	return srv, nil
}

func (g *GoogleEvents) Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	srv, err := g.service(ctx)
	if err != nil {
		return nil, err
	}

	return srv.Events.Insert(calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
}

func (g *GoogleEvents) List(ctx context.Context, calendarID string, from time.Time, max int64) ([]*gcal.Event, error) {
	srv, err := g.service(ctx)
	if err != nil {
		return nil, err
	}

	events, err := srv.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		MaxResults(max).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	return events.Items, nil
}
