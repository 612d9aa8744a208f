package calendar

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

type Kind string

const (
	KindInvalidTime    Kind = "invalid_time"
	KindInvalidRequest Kind = "invalid_request"
	KindUnauthorized   Kind = "unauthorized"
	KindAPI            Kind = "calendar_api"
)

var (
	ErrInvalidTime    = errors.New("invalid preferred time")
	ErrInvalidRequest = errors.New("invalid scheduling request")
	ErrUnauthorized   = errors.New("calendar authorization is missing or expired")
	ErrCalendarAPI    = errors.New("calendar api failure")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidTime:
		return ErrInvalidTime
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindUnauthorized:
		return ErrUnauthorized
	default:
		return ErrCalendarAPI
	}
}

// SchedulingError is returned for every failed booking. errors.Is matches
// the sentinel of its Kind.
type SchedulingError struct {
	Kind Kind
	Err  error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling failure (%s): %v", e.Kind, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

func failed(kind Kind, err error) (*Outcome, error) {
	if !errors.Is(err, kind.sentinel()) {
		err = fmt.Errorf("%w: %w", kind.sentinel(), err)
	}
	serr := &SchedulingError{Kind: kind, Err: err}
	return &Outcome{Status: StatusError, Message: serr.Error()}, serr
}

// unauthorizedError marks errors coming from a missing credential source.
type unauthorizedError interface {
	Unauthorized() bool
}

func classify(err error) Kind {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return KindUnauthorized
	}

	var ue unauthorizedError
	if errors.As(err, &ue) && ue.Unauthorized() {
		return KindUnauthorized
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindUnauthorized
		}
	}

	return KindAPI
}
