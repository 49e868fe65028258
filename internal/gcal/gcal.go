// Package gcal pushes reviewed events into a Google Calendar.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/hurttlocker/syllabus/internal/event"
)

// PrivateIDKey is the extended property carrying the extracted event id.
const PrivateIDKey = "syllabusEventId"

// EventInserter creates one event in a calendar.
type EventInserter interface {
	Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error)
}

type serviceInserter struct {
	service *calendar.Service
}

// NewServiceInserter builds an EventInserter from service-account
// credentials. The calendar must be shared with the service account.
func NewServiceInserter(ctx context.Context, credentialsJSON []byte) (EventInserter, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("loading google credentials: %w", err)
	}
	service, err := calendar.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &serviceInserter{service: service}, nil
}

func (s *serviceInserter) Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	return s.service.Events.Insert(calendarID, ev).Context(ctx).Do()
}

// colorIDs maps event types to Google Calendar event color ids.
var colorIDs = map[event.EventType]string{
	event.Exam:        "11", // tomato
	event.Quiz:        "6",  // tangerine
	event.Homework:    "9",  // blueberry
	event.Project:     "3",  // grape
	event.Lecture:     "10", // basil
	event.OfficeHours: "7",  // peacock
	event.Other:       "8",  // graphite
}

// ColorID returns the Google Calendar color id for an event type.
func ColorID(t event.EventType) string {
	if id, ok := colorIDs[t]; ok {
		return id
	}
	return colorIDs[event.Other]
}

// Syncer inserts events into one calendar.
type Syncer struct {
	inserter   EventInserter
	calendarID string
	unapproved bool
	timeZone   string
	logger     *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithUnapproved also syncs events that were not approved during review.
func WithUnapproved() Option {
	return func(s *Syncer) { s.unapproved = true }
}

// WithTimeZone sets the IANA zone attached to timed events. Without it the
// RFC 3339 offset alone places the event.
func WithTimeZone(tz string) Option {
	return func(s *Syncer) { s.timeZone = tz }
}

// WithLogger sets the logger for per-event failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSyncer creates a Syncer. An empty calendarID means "primary".
func NewSyncer(inserter EventInserter, calendarID string, opts ...Option) *Syncer {
	if calendarID == "" {
		calendarID = "primary"
	}
	s := &Syncer{
		inserter:   inserter,
		calendarID: calendarID,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inserted records one created calendar event.
type Inserted struct {
	EventID         string `json:"eventId"`
	CalendarEventID string `json:"calendarEventId"`
	Link            string `json:"link,omitempty"`
}

// Failure records one event that could not be synced.
type Failure struct {
	EventID string `json:"eventId"`
	Title   string `json:"title"`
	Err     string `json:"error"`
}

// SyncResult summarizes a Sync call.
type SyncResult struct {
	CalendarID string     `json:"calendarId"`
	Inserted   []Inserted `json:"inserted"`
	Skipped    int        `json:"skipped"`
	Failed     []Failure  `json:"failed,omitempty"`
}

// Sync inserts events one by one. Unapproved events are skipped unless
// WithUnapproved was given. Per-event failures are collected in the result;
// the returned error is non-nil only when ctx ends the run early.
func (s *Syncer) Sync(ctx context.Context, events []event.ExtractedEvent) (*SyncResult, error) {
	if s.inserter == nil {
		return nil, errors.New("calendar sync: no inserter configured")
	}
	res := &SyncResult{CalendarID: s.calendarID}
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !e.Approved && !s.unapproved {
			res.Skipped++
			continue
		}

		ce, err := ToCalendarEvent(e, s.timeZone)
		if err == nil {
			ce, err = s.inserter.Insert(ctx, s.calendarID, ce)
		}
		if err != nil {
			s.logger.Warn("calendar insert failed", "event", e.ID, "title", e.Title, "error", err)
			res.Failed = append(res.Failed, Failure{EventID: e.ID, Title: e.Title, Err: err.Error()})
			continue
		}
		res.Inserted = append(res.Inserted, Inserted{EventID: e.ID, CalendarEventID: ce.Id, Link: ce.HtmlLink})
	}
	s.logger.Info("calendar sync finished", "calendar", s.calendarID,
		"inserted", len(res.Inserted), "skipped", res.Skipped, "failed", len(res.Failed))
	return res, nil
}

// ToCalendarEvent converts an extracted event. Date-only events become
// all-day events; timed events last one hour unless an end time is given.
func ToCalendarEvent(e event.ExtractedEvent, timeZone string) (*calendar.Event, error) {
	start, err := e.Day()
	if err != nil {
		return nil, err
	}
	ce := &calendar.Event{
		Summary:     e.Title,
		Description: e.Description,
		Location:    e.Location,
		ColorId:     ColorID(e.EventType),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{PrivateIDKey: e.ID, "eventType": string(e.EventType)},
		},
	}

	end, endErr := event.ParseDate(e.EndDate)
	if e.HasTime() {
		if endErr != nil || !end.After(start) {
			end = start.Add(time.Hour)
		}
		ce.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: timeZone}
		ce.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: timeZone}
		return ce, nil
	}

	if endErr != nil || end.Before(start) {
		end = start
	}
	ce.Start = &calendar.EventDateTime{Date: start.Format(event.DateLayout)}
	ce.End = &calendar.EventDateTime{Date: end.AddDate(0, 0, 1).Format(event.DateLayout)}
	return ce, nil
}
