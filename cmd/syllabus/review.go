package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/syllabus/internal/event"
	"github.com/hurttlocker/syllabus/internal/store"
)

func newListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored syllabi",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.ListSyllabi(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if list == nil {
					list = []*store.Syllabus{}
				}
				return writeJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No syllabi stored. Run: syllabus extract <file> --save")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tEVENTS\tMETHOD\tHASH\tSAVED")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					s.ID, s.Label, s.EventCount, s.Method, shortHash(s.ContentHash), humanize.Time(s.CreatedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func newShowCmd(a *app) *cobra.Command {
	var asJSON, approvedOnly bool
	cmd := &cobra.Command{
		Use:   "show <syllabus-id>",
		Short: "Show a stored syllabus and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			syl, err := st.GetSyllabus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			stored, err := st.ListEvents(cmd.Context(), store.EventFilter{SyllabusID: syl.ID, ApprovedOnly: approvedOnly})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if stored == nil {
					stored = []*store.StoredEvent{}
				}
				syl.Text = ""
				return writeJSON(out, map[string]any{"syllabus": syl, "events": stored})
			}

			approved := 0
			events := make([]event.ExtractedEvent, len(stored))
			for i, e := range stored {
				events[i] = e.ExtractedEvent
				if e.Approved {
					approved++
				}
			}
			fmt.Fprintf(out, "%s  (%s, %s, saved %s)\n\n", syl.Label, syl.ID, syl.Method, humanize.Time(syl.CreatedAt))
			printEvents(out, events, true)
			fmt.Fprintf(out, "\n%d events, %d approved\n", len(events), approved)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().BoolVar(&approvedOnly, "approved", false, "Only show approved events")
	return cmd
}

// printEvents writes an aligned event table. withIDs adds the id and
// approval columns used during review.
func printEvents(w io.Writer, events []event.ExtractedEvent, withIDs bool) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if withIDs {
		fmt.Fprintln(tw, "\tID\tDATE\tTYPE\tTITLE")
	} else {
		fmt.Fprintln(tw, "DATE\tTYPE\tTITLE")
	}
	for _, e := range events {
		when := e.Date
		if e.EndDate != "" {
			when += " .. " + e.EndDate
		}
		if withIDs {
			mark := " "
			if e.Approved {
				mark = "✓"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, e.ID, when, e.EventType, e.Title)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", when, e.EventType, e.Title)
		}
	}
	tw.Flush()
}

func newApproveCmd(a *app) *cobra.Command {
	var reject bool
	cmd := &cobra.Command{
		Use:   "approve <event-id|syllabus-id>...",
		Short: "Approve events for export; a syllabus id approves all of its events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			approved := !reject
			verb := "Approved"
			if reject {
				verb = "Rejected"
			}
			out := cmd.OutOrStdout()

			for _, id := range args {
				ev, err := st.UpdateEvent(cmd.Context(), id, store.EventPatch{Approved: &approved})
				if err == nil {
					fmt.Fprintf(out, "%s %s (%s, %s)\n", verb, ev.ID, ev.Title, ev.Date)
					continue
				}
				if !errors.Is(err, store.ErrNotFound) {
					return err
				}

				syl, err := st.GetSyllabus(cmd.Context(), id)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no event or syllabus with id %s", id)
				}
				if err != nil {
					return err
				}
				n, err := st.SetApproved(cmd.Context(), syl.ID, approved)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %d events of %s\n", verb, n, syl.Label)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reject, "reject", false, "Withdraw approval instead")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var title, date, endDate, typ, location, description string
	cmd := &cobra.Command{
		Use:   "edit <event-id>",
		Short: "Correct an extracted event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch store.EventPatch
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("location") {
				patch.Location = &location
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("type") {
				t, ok := event.ParseEventType(typ)
				if !ok {
					return fmt.Errorf("unknown event type %q (want one of %s)", typ, typeList())
				}
				patch.EventType = &t
			}
			if flags.Changed("date") || flags.Changed("end-date") {
				n, err := a.normalizer()
				if err != nil {
					return err
				}
				if flags.Changed("date") {
					r, ok := n.Parse(date)
					if !ok {
						return fmt.Errorf("unrecognized date %q", date)
					}
					d := r.String()
					patch.Date = &d
				}
				if flags.Changed("end-date") {
					d := ""
					if strings.TrimSpace(endDate) != "" {
						r, ok := n.Parse(endDate)
						if !ok {
							return fmt.Errorf("unrecognized end date %q", endDate)
						}
						d = r.String()
					}
					patch.EndDate = &d
				}
			}
			if patch == (store.EventPatch{}) {
				return errors.New("nothing to change; pass --title, --date, --end-date, --type, --location or --description")
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ev, err := st.UpdateEvent(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), []event.ExtractedEvent{ev.ExtractedEvent}, true)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "New title")
	f.StringVar(&date, "date", "", "New date, e.g. 2025-10-03, \"Oct 3\", \"10/3 11:59pm\"")
	f.StringVar(&endDate, "end-date", "", "New end date; empty clears it")
	f.StringVar(&typ, "type", "", "New event type ("+typeList()+")")
	f.StringVar(&location, "location", "", "New location")
	f.StringVar(&description, "description", "", "New description")
	return cmd
}

func typeList() string {
	names := make([]string, len(event.Types))
	for i, t := range event.Types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
