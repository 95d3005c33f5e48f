package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/searchchat/internal/handler"
	"github.com/zhouzirui/searchchat/internal/service/chat"
	"github.com/zhouzirui/searchchat/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat UI and API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctx, cfg, r, err := bootstrap(ctx)
		if err != nil {
			return err
		}

		chatService := chat.NewService(r)
		router := handler.NewRouter(log.Component(ctx, "http"), chatService)

		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		log.FromCtx(ctx).Info().Str("addr", srv.Addr).Msg("searchchat listening")
		return runServer(ctx, srv)
	},
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
