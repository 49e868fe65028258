package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hurttlocker/syllabus/internal/event"
	"github.com/hurttlocker/syllabus/internal/ics"
	"github.com/hurttlocker/syllabus/internal/store"
)

type extractRequest struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Save  bool   `json:"save"`
}

// extract accepts {"text", "label", "save"} as JSON, or the raw syllabus
// as a text/plain body with ?label= and ?save=true.
func (s *server) extract(c *fiber.Ctx) error {
	var req extractRequest
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	} else {
		req.Text = string(c.Body())
		req.Label = c.Query("label")
		req.Save = c.QueryBool("save")
	}
	if strings.TrimSpace(req.Label) == "" {
		req.Label = "untitled"
	}

	res := s.orchestrator.Extract(c.UserContext(), req.Text, req.Label)
	out := fiber.Map{
		"success":  true,
		"method":   res.Method,
		"events":   res.Events,
		"attempts": res.Attempts,
	}

	if req.Save {
		if err := s.requireStore(); err != nil {
			return err
		}
		syl, err := s.store.SaveSyllabus(c.UserContext(), store.SaveParams{
			Label:  req.Label,
			Text:   res.Text,
			Method: res.Method,
			Events: res.Events,
		})
		if err != nil {
			return err
		}
		out["syllabus"] = syl
		return c.Status(fiber.StatusCreated).JSON(out)
	}
	return c.JSON(out)
}

func (s *server) listSyllabi(c *fiber.Ctx) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	list, err := s.store.ListSyllabi(c.UserContext())
	if err != nil {
		return err
	}
	if list == nil {
		list = []*store.Syllabus{}
	}
	return c.JSON(fiber.Map{"success": true, "syllabi": list})
}

func (s *server) getSyllabus(c *fiber.Ctx) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	id := c.Params("id")
	syl, err := s.store.GetSyllabus(c.UserContext(), id)
	if err != nil {
		return err
	}
	events, err := s.store.ListEvents(c.UserContext(), store.EventFilter{SyllabusID: id})
	if err != nil {
		return err
	}
	if events == nil {
		events = []*store.StoredEvent{}
	}
	return c.JSON(fiber.Map{"success": true, "syllabus": syl, "events": events})
}

func (s *server) deleteSyllabus(c *fiber.Ctx) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if err := s.store.DeleteSyllabus(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Syllabus deleted"})
}

type eventPatchRequest struct {
	Title       *string `json:"title"`
	Date        *string `json:"date"`
	EndDate     *string `json:"endDate"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	EventType   *string `json:"eventType"`
	Approved    *bool   `json:"approved"`
}

func (s *server) patchEvent(c *fiber.Ctx) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	var req eventPatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	patch := store.EventPatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Approved:    req.Approved,
	}
	if req.Date != nil {
		d, ok := s.normalizeDate(*req.Date)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "unrecognized date: "+*req.Date)
		}
		patch.Date = &d
	}
	if req.EndDate != nil {
		d := ""
		if strings.TrimSpace(*req.EndDate) != "" {
			var ok bool
			if d, ok = s.normalizeDate(*req.EndDate); !ok {
				return fiber.NewError(fiber.StatusBadRequest, "unrecognized end date: "+*req.EndDate)
			}
		}
		patch.EndDate = &d
	}
	if req.EventType != nil {
		t, ok := event.ParseEventType(*req.EventType)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "unknown event type: "+*req.EventType)
		}
		patch.EventType = &t
	}

	updated, err := s.store.UpdateEvent(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "event": updated})
}

// normalizeDate resolves a date typed by a reviewer. Unlike extraction, an
// unparseable date is rejected rather than replaced by the fallback.
func (s *server) normalizeDate(raw string) (string, bool) {
	r, ok := s.dates.Parse(raw)
	if !ok {
		return "", false
	}
	return r.String(), true
}

func (s *server) calendar(c *fiber.Ctx) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	id := c.Params("id")
	syl, err := s.store.GetSyllabus(c.UserContext(), id)
	if err != nil {
		return err
	}
	stored, err := s.store.ListEvents(c.UserContext(), store.EventFilter{
		SyllabusID:   id,
		ApprovedOnly: c.QueryBool("approved"),
	})
	if err != nil {
		return err
	}

	events := make([]event.ExtractedEvent, len(stored))
	for i, e := range stored {
		events[i] = e.ExtractedEvent
	}
	name := s.calendarName
	if name == "" {
		name = syl.Label
	}

	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+safeFilename(syl.Label)+`.ics"`)
	return c.SendString(ics.Export(events, ics.Options{CalendarName: name}))
}

func safeFilename(label string) string {
	base := strings.TrimSuffix(label, filenameExt(label))
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "syllabus"
	}
	return sb.String()
}

func filenameExt(label string) string {
	if i := strings.LastIndex(label, "."); i > 0 {
		return label[i:]
	}
	return ""
}
