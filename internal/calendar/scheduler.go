// Package calendar books interviews in Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/spigell/hr-screener/internal/logger"
)

const (
	DefaultTimezone   = "Asia/Kolkata"
	DefaultDuration   = time.Hour
	DefaultCalendarID = "primary"
	DefaultJobTitle   = "Position"
	DefaultUpcoming   = 10

	conferenceType      = "hangoutsMeet"
	emailReminderMinute = 24 * 60
	popupReminderMinute = 30
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type Request struct {
	CandidateEmail string
	PreferredTime  string
	JobTitle       string
}

type Outcome struct {
	Status      Status
	MeetingLink string
	EventID     string
	Message     string
	Start       time.Time
	End         time.Time
}

type Config struct {
	CalendarID     string
	Timezone       string
	Duration       time.Duration
	RecruiterEmail string
}

// Events is the subset of the Calendar API the scheduler needs.
type Events interface {
	Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error)
	List(ctx context.Context, calendarID string, from time.Time, max int64) ([]*gcal.Event, error)
}

// Event is an upcoming calendar entry.
type Event struct {
	ID          string
	Summary     string
	Start       time.Time
	MeetingLink string
}

type Scheduler struct {
	events Events
	cfg    Config
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func New(events Events, cfg Config, l *zap.Logger) (*Scheduler, error) {
	if events == nil {
		return nil, errors.New("calendar events client is required")
	}

	if strings.TrimSpace(cfg.CalendarID) == "" {
		cfg.CalendarID = DefaultCalendarID
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	if recruiter := strings.TrimSpace(cfg.RecruiterEmail); recruiter != "" {
		if err := validateEmail(recruiter); err != nil {
			return nil, fmt.Errorf("recruiter email: %w", err)
		}
		cfg.RecruiterEmail = recruiter
	}

	return &Scheduler{
		events: events,
		cfg:    cfg,
		loc:    loc,
		now:    time.Now,
		logger: logger.OrNop(l),
	}, nil
}

// Schedule books a one-slot interview with a Meet link. On failure the
// returned Outcome has StatusError and the error is a *SchedulingError.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (*Outcome, error) {
	start, err := ParseTime(req.PreferredTime, s.loc)
	if err != nil {
		return failed(KindInvalidTime, err)
	}

	email := strings.TrimSpace(req.CandidateEmail)
	if err := validateEmail(email); err != nil {
		return failed(KindInvalidRequest, err)
	}

	title := strings.TrimSpace(req.JobTitle)
	if title == "" {
		title = DefaultJobTitle
	}

	end := start.Add(s.cfg.Duration)
	event := s.buildEvent(email, title, start, end)

	s.logger.Debug("creating calendar event",
		zap.String("calendar_id", s.cfg.CalendarID),
		zap.String("candidate", email),
		zap.Time("start", start),
		zap.String("request_id", event.ConferenceData.CreateRequest.RequestId),
	)

	created, err := s.events.Insert(ctx, s.cfg.CalendarID, event)
	if err != nil {
		return failed(classify(err), err)
	}
	if created == nil {
		return failed(KindAPI, errors.New("calendar api returned no event"))
	}

	outcome := &Outcome{
		Status:      StatusSuccess,
		MeetingLink: meetingLink(created),
		EventID:     created.Id,
		Start:       start,
		End:         end,
	}

	if outcome.MeetingLink == "" {
		outcome.Message = "event created without a conference link"
		s.logger.Warn(outcome.Message, zap.String("event_id", created.Id))
	} else {
		outcome.Message = fmt.Sprintf("interview scheduled for %s", start.Format(TimeLayout+" MST"))
	}

	s.logger.Info("interview scheduled",
		zap.String("event_id", created.Id),
		zap.String("candidate", email),
		zap.String("meeting_link", outcome.MeetingLink),
	)

	return outcome, nil
}

func (s *Scheduler) buildEvent(email, title string, start, end time.Time) *gcal.Event {
	attendees := []*gcal.EventAttendee{{Email: email}}
	if s.cfg.RecruiterEmail != "" && !strings.EqualFold(s.cfg.RecruiterEmail, email) {
		attendees = append(attendees, &gcal.EventAttendee{Email: s.cfg.RecruiterEmail})
	}

	return &gcal.Event{
		Summary:     "Interview for " + title,
		Description: fmt.Sprintf("Interview scheduled for %s position with %s", title, email),
		Start: &gcal.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
		Attendees: attendees,
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             fmt.Sprintf("meet-%d", s.now().Unix()),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: conferenceType},
			},
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: emailReminderMinute},
				{Method: "popup", Minutes: popupReminderMinute},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

// Upcoming lists the next events from now on, earliest first.
func (s *Scheduler) Upcoming(ctx context.Context, max int) ([]Event, error) {
	if max <= 0 {
		max = DefaultUpcoming
	}

	items, err := s.events.List(ctx, s.cfg.CalendarID, s.now(), int64(max))
	if err != nil {
		kind := classify(err)
		return nil, &SchedulingError{Kind: kind, Err: fmt.Errorf("%w: %w", kind.sentinel(), err)}
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Start:       eventStart(item, s.loc),
			MeetingLink: meetingLink(item),
		})
	}

	return events, nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: candidate email is empty", ErrInvalidRequest)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: %q is not a valid email address", ErrInvalidRequest, email)
	}
	return nil
}

func meetingLink(event *gcal.Event) string {
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	if event.ConferenceData == nil {
		return ""
	}
	for _, ep := range event.ConferenceData.EntryPoints {
		if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
			return ep.Uri
		}
	}
	return ""
}

func eventStart(event *gcal.Event, loc *time.Location) time.Time {
	if event.Start == nil {
		return time.Time{}
	}
	if event.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, event.Start.DateTime); err == nil {
			return t.In(loc)
		}
	}
	if event.Start.Date != "" {
		if t, err := time.ParseInLocation("2006-01-02", event.Start.Date, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}
