package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/server"
	"github.com/BioHazard786/warpchat/internal/signaling"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var opts config.ServerOptions

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay and matchmaker",
		Long: `Run the websocket relay that pairs strangers and forwards their signaling.

Examples:
  warpchat serve
  warpchat serve --addr :9000 --policy most-overlap
  MATCH_POLICY=fifo warpchat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	c.Flags().StringVarP(&opts.Addr, "addr", "a", "", "Listen address (default :8080)")
	c.Flags().StringVarP(&opts.MatchPolicy, "policy", "p", "", "Match policy: overlap, most-overlap or fifo")
	c.Flags().IntVarP(&opts.SendQueue, "send-queue", "q", 0, "Outbound envelopes buffered per client")
	return c
}

func serve(ctx context.Context, opts config.ServerOptions) error {
	cfg, err := config.LoadServer(opts)
	if err != nil {
		return chat.NewError("load config", err)
	}
	policy, err := signaling.ParsePolicy(cfg.MatchPolicy)
	if err != nil {
		return chat.NewError("load config", err)
	}

	hub := signaling.NewHub(signaling.HubOptions{Policy: policy, SendQueue: cfg.SendQueue})
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.NewMux(hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("starting signaling server", "addr", cfg.Addr, "policy", policy.Name())
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return chat.NewError("listen", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down signaling server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
