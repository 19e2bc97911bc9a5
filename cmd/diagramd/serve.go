package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/diagram"
	"github.com/aretw0/diagram/internal/app"
	"github.com/aretw0/diagram/internal/presentation/tui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the diagram server",
	Long: `Starts the diagram server. Clients connect to /ws; /sessions, /metrics and
/events expose its state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		if term.IsTerminal(int(os.Stderr.Fd())) {
			tui.PrintBanner(os.Stderr, diagram.Version)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		server, err := app.New(ctx, cfg, promReg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		ln, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			_ = server.Registry.Close(context.Background())
			return err
		}
		return server.Run(ctx, ln)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (default \":8080\")")
	serveCmd.Flags().StringP("models", "m", "", "Directory containing the diagram models (default \"models\")")
	serveCmd.Flags().String("layout", "", "Layout policy: AUTOMATIC, INTERACTIVE, MANUAL or NONE")
	serveCmd.Flags().Bool("client-layout", false, "Ask clients for element bounds before layout")
}
