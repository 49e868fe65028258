package repair

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/spf13/cast"
)

// ErrInvalidJSON is returned by Decode when data is not a JSON document.
var ErrInvalidJSON = errors.New("invalid JSON")

// ErrNoEvents is returned by Decode when a valid document has no events
// container: no "events" array, no bare array and no single event object.
var ErrNoEvents = errors.New("no events container")

// RawEvent is one event object as the model emitted it, before validation.
type RawEvent struct {
	Title         string
	Date          string
	EndDate       string
	Description   string
	Location      string
	EventType     string
	Confidence    float64
	HasConfidence bool
}

// fieldAliases maps lowercased keys the model may use to RawEvent fields.
var fieldAliases = map[string]string{
	"title":       "title",
	"name":        "title",
	"summary":     "title",
	"event":       "title",
	"date":        "date",
	"start":       "date",
	"startdate":   "date",
	"start_date":  "date",
	"due":         "date",
	"duedate":     "date",
	"due_date":    "date",
	"enddate":     "endDate",
	"end_date":    "endDate",
	"end":         "endDate",
	"description": "description",
	"details":     "description",
	"notes":       "description",
	"location":    "location",
	"room":        "location",
	"eventtype":   "eventType",
	"event_type":  "eventType",
	"type":        "eventType",
	"category":    "eventType",
	"confidence":  "confidence",
	"score":       "confidence",
}

// Decode walks a valid JSON document and returns its events. The events
// array is visited element by element; elements that are not objects, or
// that carry unusable values, are skipped rather than failing the document.
func Decode(data []byte) ([]RawEvent, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}

	switch data[0] {
	case '[':
		return decodeArray(data), nil
	case '{':
		var events []byte
		hasTitle := false
		err := jsonparser.ObjectEach(data, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
			k := strings.ToLower(string(key))
			switch {
			case k == "events" && dt == jsonparser.Array && events == nil:
				events = value
			case fieldAliases[k] == "title":
				hasTitle = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if events != nil {
			return decodeArray(events), nil
		}
		if hasTitle {
			if ev, ok := decodeObject(data); ok {
				return []RawEvent{ev}, nil
			}
		}
	}
	return nil, ErrNoEvents
}

func decodeArray(data []byte) []RawEvent {
	var out []RawEvent
	_, _ = jsonparser.ArrayEach(data, func(value []byte, dt jsonparser.ValueType, _ int, err error) {
		if err != nil || dt != jsonparser.Object {
			return
		}
		if ev, ok := decodeObject(value); ok {
			out = append(out, ev)
		}
	})
	return out
}

func decodeObject(data []byte) (RawEvent, bool) {
	var ev RawEvent
	seen := make(map[string]bool)
	err := jsonparser.ObjectEach(data, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		field, ok := fieldAliases[strings.ToLower(string(key))]
		if !ok || seen[field] || dt == jsonparser.Null {
			return nil
		}
		if field == "confidence" {
			if f, ok := toFloat(value, dt); ok {
				ev.Confidence, ev.HasConfidence = f, true
				seen[field] = true
			}
			return nil
		}
		s, ok := toString(value, dt)
		if !ok {
			return nil
		}
		seen[field] = true
		switch field {
		case "title":
			ev.Title = s
		case "date":
			ev.Date = s
		case "endDate":
			ev.EndDate = s
		case "description":
			ev.Description = s
		case "location":
			ev.Location = s
		case "eventType":
			ev.EventType = s
		}
		return nil
	})
	return ev, err == nil
}

func toString(value []byte, dt jsonparser.ValueType) (string, bool) {
	switch dt {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		return strings.TrimSpace(s), err == nil
	case jsonparser.Number, jsonparser.Boolean:
		return string(value), true
	}
	return "", false
}

func toFloat(value []byte, dt jsonparser.ValueType) (float64, bool) {
	switch dt {
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(value)
		return f, err == nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
		percent := strings.HasSuffix(s, "%")
		f, err := cast.ToFloat64E(strings.TrimSuffix(s, "%"))
		if err != nil {
			return 0, false
		}
		if percent {
			f /= 100
		}
		return f, true
	}
	return 0, false
}
