package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/syllabus/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			masked := make(map[string]config.ResolvedValue, len(cfg.LLMKeys))
			keys := make([]string, 0, len(cfg.LLMKeys))
			for k, v := range cfg.LLMKeys {
				v.Value = maskSecret(v.Value)
				masked[k] = v
				keys = append(keys, k)
			}
			sort.Strings(keys)
			cfg.LLMKeys = masked

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, cfg)
			}

			fmt.Fprintf(out, "config file: %s\n\n", cfg.ConfigPath)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
			rows := []struct {
				key string
				val config.ResolvedValue
			}{
				{"db_path", cfg.DBPath},
				{"llm.extractors", cfg.Extractors},
				{"academic.year", cfg.AcademicYear},
				{"academic.term_start", cfg.TermStart},
				{"academic.fallback_days", cfg.FallbackDays},
				{"calendar.id", cfg.CalendarID},
				{"calendar.credentials_file", cfg.CalendarCredentials},
				{"server.addr", cfg.Addr},
			}
			for _, k := range keys {
				rows = append(rows, struct {
					key string
					val config.ResolvedValue
				}{"api_key." + k, cfg.LLMKeys[k]})
			}
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.key, orDash(r.val.Value), sourceOf(r.val))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func sourceOf(v config.ResolvedValue) string {
	if v.From != "" {
		return fmt.Sprintf("%s (%s)", v.Source, v.From)
	}
	return string(v.Source)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "syllabus %s\n", version)
		},
	}
}
