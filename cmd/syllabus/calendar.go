package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/syllabus/internal/event"
	"github.com/hurttlocker/syllabus/internal/gcal"
	"github.com/hurttlocker/syllabus/internal/ics"
	"github.com/hurttlocker/syllabus/internal/store"
)

// loadEvents returns a stored syllabus with its events in date order.
func (a *app) loadEvents(ctx context.Context, id string, approvedOnly bool) (*store.Syllabus, []event.ExtractedEvent, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()

	syl, err := st.GetSyllabus(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	stored, err := st.ListEvents(ctx, store.EventFilter{SyllabusID: syl.ID, ApprovedOnly: approvedOnly})
	if err != nil {
		return nil, nil, err
	}
	events := make([]event.ExtractedEvent, len(stored))
	for i, e := range stored {
		events[i] = e.ExtractedEvent
	}
	return syl, events, nil
}

func newExportCmd(a *app) *cobra.Command {
	var (
		output string
		all    bool
		name   string
	)
	cmd := &cobra.Command{
		Use:   "export <syllabus-id>",
		Short: "Export approved events as an iCalendar (.ics) file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syl, events, err := a.loadEvents(cmd.Context(), args[0], !all)
			if err != nil {
				return err
			}
			if name == "" {
				name = syl.Label
			}
			doc := ics.Export(events, ics.Options{CalendarName: name})

			if output == "" || output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), doc)
				return err
			}
			if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", len(events), output)
			if len(events) == 0 && !all {
				fmt.Fprintln(cmd.OutOrStdout(), "No approved events. Approve with: syllabus approve <id>, or pass --all")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&all, "all", false, "Include events that were not approved")
	cmd.Flags().StringVar(&name, "name", "", "Calendar name (default: syllabus label)")
	return cmd
}

// newInserter is swapped in tests.
var newInserter = gcal.NewServiceInserter

func newSyncCmd(a *app) *cobra.Command {
	var (
		calendarID string
		all        bool
		timeZone   string
	)
	cmd := &cobra.Command{
		Use:   "sync <syllabus-id>",
		Short: "Insert approved events into Google Calendar",
		Long:  "Inserts approved events into a Google Calendar using service-account credentials from calendar.credentials_file or GOOGLE_APPLICATION_CREDENTIALS. Share the calendar with the service account first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if calendarID != "" {
				a.opts.CLICalendarID = calendarID
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			credsPath := cfg.CalendarCredentials.Value
			if credsPath == "" {
				return errors.New("no calendar credentials configured; set calendar.credentials_file or GOOGLE_APPLICATION_CREDENTIALS")
			}
			creds, err := os.ReadFile(credsPath)
			if err != nil {
				return fmt.Errorf("reading calendar credentials: %w", err)
			}

			_, events, err := a.loadEvents(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}

			inserter, err := newInserter(cmd.Context(), creds)
			if err != nil {
				return err
			}
			opts := []gcal.Option{gcal.WithLogger(a.logger)}
			if all {
				opts = append(opts, gcal.WithUnapproved())
			}
			if timeZone != "" {
				opts = append(opts, gcal.WithTimeZone(timeZone))
			}

			res, err := gcal.NewSyncer(inserter, cfg.CalendarID.Value, opts...).Sync(cmd.Context(), events)
			if res != nil {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Calendar %s: %d inserted, %d skipped, %d failed\n",
					res.CalendarID, len(res.Inserted), res.Skipped, len(res.Failed))
				for _, f := range res.Failed {
					fmt.Fprintf(out, "  failed %s (%s): %s\n", f.EventID, f.Title, f.Err)
				}
				if len(res.Failed) > 0 && err == nil {
					err = fmt.Errorf("%d events failed to sync", len(res.Failed))
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&calendarID, "calendar", "", "Calendar id (default: calendar.id or primary)")
	cmd.Flags().BoolVar(&all, "all", false, "Also sync events that were not approved")
	cmd.Flags().StringVar(&timeZone, "tz", "", "IANA time zone for timed events (default: local)")
	return cmd
}
