package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"plasflow/batch"
	"plasflow/envelope"
	"plasflow/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the solver over a websocket on /ws and metrics on /metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		factory, err := cfg.Oracle.Factory()
		if err != nil {
			return err
		}
		upgrader := websocket.Upgrader{
			ReadBufferSize:  cfg.Server.ReadBuffer,
			WriteBufferSize: cfg.Server.WriteBuffer,
		}
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
		opts := []server.Option{
			server.WithLogger(log.StandardLogger()),
			server.WithMetrics(batch.NewMetrics(prometheus.DefaultRegisterer), prometheus.DefaultGatherer),
		}
		if cfg.Batch.Envelope != "" {
			if env, err := envelope.Load(cfg.Batch.Envelope, envelope.DefaultOptions()); err == nil {
				opts = append(opts, server.WithEnvelope(env))
			} else {
				log.WithError(err).Warn("facility envelope not loaded, skipping the check")
			}
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.NewServer(cfg.Server.Addr, upgrader, factory, cfg.Solver, opts...).Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "override [server] addr")
}
