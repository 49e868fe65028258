// Package ics renders extracted events as an iCalendar (RFC 5545) feed.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hurttlocker/syllabus/internal/event"
)

const (
	DefaultProductID    = "-//hurttlocker//syllabus//EN"
	DefaultCalendarName = "Syllabus"

	// DefaultDuration is used for timed events with no end.
	DefaultDuration = time.Hour

	// uidDomain qualifies event ids so UIDs stay globally unique.
	uidDomain = "@syllabus"
)

// Options controls Export.
type Options struct {
	CalendarName string
	ProductID    string
	// ApprovedOnly skips events not yet approved during review.
	ApprovedOnly bool
	// Now stamps DTSTAMP. Zero means time.Now.
	Now time.Time
}

// colors maps event types to RFC 7986 CSS color names.
var colors = map[event.EventType]string{
	event.Exam:        "crimson",
	event.Quiz:        "darkorange",
	event.Homework:    "royalblue",
	event.Project:     "purple",
	event.Lecture:     "seagreen",
	event.OfficeHours: "teal",
	event.Other:       "gray",
}

// Color returns the display color for an event type.
func Color(t event.EventType) string {
	if c, ok := colors[t]; ok {
		return c
	}
	return colors[event.Other]
}

// Export serializes events to an iCalendar document. Events with dates
// that do not parse are skipped. Date-only events become all-day events;
// timed events without an end last DefaultDuration.
func Export(events []event.ExtractedEvent, opts Options) string {
	if opts.CalendarName == "" {
		opts.CalendarName = DefaultCalendarName
	}
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)
	cal.SetName(opts.CalendarName)
	cal.SetXWRCalName(opts.CalendarName)

	for _, e := range events {
		if opts.ApprovedOnly && !e.Approved {
			continue
		}
		start, err := e.Day()
		if err != nil {
			continue
		}

		ve := cal.AddEvent(e.ID + uidDomain)
		ve.SetDtStampTime(now)
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, string(e.EventType))
		ve.SetProperty(ical.ComponentPropertyColor, Color(e.EventType))

		if e.HasTime() {
			end := start.Add(DefaultDuration)
			if t, err := event.ParseDate(e.EndDate); err == nil && t.After(start) {
				end = t
			}
			ve.SetStartAt(start)
			ve.SetEndAt(end)
			continue
		}

		last := start
		if t, err := event.ParseDate(e.EndDate); err == nil && t.After(start) {
			last = t
		}
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(last.AddDate(0, 0, 1)) // DTEND is exclusive
	}

	return cal.Serialize()
}
