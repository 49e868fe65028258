package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/syllabus/internal/api"
	"github.com/hurttlocker/syllabus/internal/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.opts.CLIAddr = addr
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			n, err := a.normalizer()
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(false, true)
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			srv := api.New(api.Config{
				Store:        st,
				Orchestrator: orch,
				Dates:        n,
				Logger:       a.logger,
				Version:      version,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
					a.logger.Error("shutdown failed", "error", err)
				}
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "syllabus %s listening on %s\n", version, cfg.Addr.Value)
			return srv.Listen(cfg.Addr.Value)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr or :8080)")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.normalizer()
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(false, true)
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			srv := mcp.NewServer(mcp.ServerConfig{
				Store:        st,
				Orchestrator: orch,
				Dates:        n,
				Version:      version,
			})
			return server.ServeStdio(srv)
		},
	}
}
