package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/syllabus/internal/extract"
	"github.com/hurttlocker/syllabus/internal/ingest"
	"github.com/hurttlocker/syllabus/internal/store"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		save      bool
		asJSON    bool
		rulesOnly bool
		noExpand  bool
		label     string
	)

	cmd := &cobra.Command{
		Use:   "extract <file|->",
		Short: "Extract events from a syllabus file, or stdin with -",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if label != "" {
				doc.Label = label
			}

			orch, err := a.orchestrator(rulesOnly, !noExpand)
			if err != nil {
				return err
			}
			res := orch.Extract(cmd.Context(), doc.Text, doc.Label)

			var saved *store.Syllabus
			if save {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				saved, err = st.SaveSyllabus(cmd.Context(), store.SaveParams{
					Label:  doc.Label,
					Text:   res.Text,
					Method: res.Method,
					Events: res.Events,
				})
				if err != nil {
					return fmt.Errorf("saving syllabus: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, extractOutput{Result: res, Syllabus: saved})
			}

			printEvents(out, res.Events, false)
			fmt.Fprintf(out, "\n%d events from %s via %s\n", len(res.Events), doc.Label, res.Method)
			for _, at := range res.Attempts {
				if at.Err != "" {
					fmt.Fprintf(out, "  %s failed: %s\n", at.Extractor, at.Err)
				}
			}
			if saved != nil {
				fmt.Fprintf(out, "Saved as %s. Review with: syllabus show %s\n", saved.ID, saved.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Store the syllabus and its events for review")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&rulesOnly, "rules-only", false, "Skip generative extractors")
	cmd.Flags().BoolVar(&noExpand, "no-expand", false, "Keep date ranges as one event instead of one per day")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Document label (default: file name)")
	return cmd
}

type extractOutput struct {
	*extract.Result
	Syllabus *store.Syllabus `json:"syllabus,omitempty"`
}

func readInput(stdin io.Reader, arg string) (ingest.Document, error) {
	if arg != "-" {
		return ingest.ReadDocument(arg)
	}
	data, err := io.ReadAll(io.LimitReader(stdin, ingest.DefaultMaxFileSize+1))
	if err != nil {
		return ingest.Document{}, fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) > ingest.DefaultMaxFileSize {
		return ingest.Document{}, ingest.ErrTooLarge
	}
	return ingest.Document{Label: "stdin", Text: strings.ToValidUTF8(string(data), "")}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
