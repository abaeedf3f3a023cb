package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/jwtauth/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			f.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, f, log.Logger)
		if err != nil {
			return fmt.Errorf("building server: %w", err)
		}
		defer func() {
			if err := srv.Close(); err != nil {
				log.Error().Err(err).Msg("server.close_failed")
			}
		}()

		httpServer := &http.Server{
			Addr:              f.Server.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().
				Str("addr", f.Server.Addr).
				Str("strategy", f.Revocation.Strategy).
				Msg("server.listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		log.Info().Msg("server.shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), f.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("server.exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd)
}
