package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type stubProvider struct {
	err   error
	ctxs  []context.Context
	calls int
}

func (p *stubProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	p.calls++
	p.ctxs = append(p.ctxs, ctx)
	if p.err != nil {
		return nil, p.err
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access", TokenType: "Bearer"}), nil
}

const eventsPath = "/calendar/v3/calendars/primary/events"

func newGoogleEvents(t *testing.T, provider TokenSourceProvider, handler http.HandlerFunc) *GoogleEvents {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGoogleEvents(provider,
		option.WithEndpoint(srv.URL+"/calendar/v3/"),
		option.WithHTTPClient(srv.Client()),
	)
}

func TestGoogleEventsInsert(t *testing.T) {
	var got gcal.Event
	var query map[string]string

	provider := &stubProvider{}
	events := newGoogleEvents(t, provider, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != eventsPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		query = map[string]string{
			"conferenceDataVersion": r.URL.Query().Get("conferenceDataVersion"),
			"sendUpdates":           r.URL.Query().Get("sendUpdates"),
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode event: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-9","hangoutLink":"https://meet.google.com/xyz-abcd-efg"}`))
	})

	s := newScheduler(t, events, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outcome, err := s.Schedule(ctx, Request{
		CandidateEmail: "a@b.com",
		PreferredTime:  "2025-08-12 03:00 PM",
		JobTitle:       "Gen AI Engineer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.EventID != "evt-9" || outcome.MeetingLink != "https://meet.google.com/xyz-abcd-efg" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	if query["conferenceDataVersion"] != "1" || query["sendUpdates"] != "all" {
		t.Fatalf("unexpected query %v", query)
	}

	if got.ConferenceData == nil || got.ConferenceData.CreateRequest == nil {
		t.Fatalf("event posted without a conference request: %+v", got)
	}
	create := got.ConferenceData.CreateRequest
	if create.RequestId != "meet-1754990000" || create.ConferenceSolutionKey == nil || create.ConferenceSolutionKey.Type != "hangoutsMeet" {
		t.Fatalf("unexpected conference request %+v", create)
	}
	if got.Start == nil || got.Start.DateTime != "2025-08-12T15:00:00+05:30" {
		t.Fatalf("unexpected start %+v", got.Start)
	}

	if len(provider.ctxs) != 1 || provider.ctxs[0] == ctx {
		t.Fatal("token source must not be bound to the request context")
	}
}

func TestGoogleEventsList(t *testing.T) {
	var query map[string]string

	provider := &stubProvider{}
	events := newGoogleEvents(t, provider, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != eventsPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		query = map[string]string{
			"singleEvents": q.Get("singleEvents"),
			"orderBy":      q.Get("orderBy"),
			"maxResults":   q.Get("maxResults"),
			"timeMin":      q.Get("timeMin"),
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"evt-1","summary":"Interview","start":{"dateTime":"2025-08-12T15:00:00+05:30"}}]}`))
	})

	from := time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC)
	items, err := events.List(context.Background(), "primary", from, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Id != "evt-1" {
		t.Fatalf("unexpected items %+v", items)
	}

	want := map[string]string{
		"singleEvents": "true",
		"orderBy":      "startTime",
		"maxResults":   "5",
		"timeMin":      "2025-08-12T09:00:00Z",
	}
	for k, v := range want {
		if query[k] != v {
			t.Fatalf("query %s = %q, want %q", k, query[k], v)
		}
	}

	// the service is created once and reused
	if _, err := events.List(context.Background(), "primary", from, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("token source requested %d times, want 1", provider.calls)
	}
}

func TestGoogleEventsCredentialErrorIsUnauthorized(t *testing.T) {
	provider := &stubProvider{err: errors.New("no stored oauth token")}
	events := newGoogleEvents(t, provider, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s %s", r.Method, r.URL.Path)
	})

	s := newScheduler(t, events, Config{})
	outcome, err := s.Schedule(context.Background(), Request{
		CandidateEmail: "a@b.com",
		PreferredTime:  "2025-08-12 03:00 PM",
	})

	var serr *SchedulingError
	if !errors.As(err, &serr) || serr.Kind != KindUnauthorized {
		t.Fatalf("expected unauthorized scheduling error, got %v", err)
	}
	if !errors.Is(err, ErrUnauthorized) || outcome.Status != StatusError {
		t.Fatalf("unexpected outcome %+v (%v)", outcome, err)
	}

	if _, err := s.Upcoming(context.Background(), 3); !errors.As(err, &serr) || serr.Kind != KindUnauthorized {
		t.Fatalf("expected unauthorized error from Upcoming, got %v", err)
	}
}
