package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"moto-yard/internal/logging"
	"moto-yard/internal/parking"
	"moto-yard/internal/server"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if port == "" {
				port = a.cfg.Port
			}
			return runServer(a, port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port for HTTP server (defaults to APP_PORT)")

	return cmd
}

func newShellCmd(actor *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run the interactive operator console",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			parking.NewShell(a.coordinator, a.telemetry, *actor, os.Stdin, os.Stdout).Run(ctx)
			return nil
		},
	}
}

func newBothCmd(actor *string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "both",
		Short: "Run the HTTP API and the operator console together",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if port == "" {
				port = a.cfg.Port
			}
			return runBoth(a, port, *actor)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port for HTTP server (defaults to APP_PORT)")

	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the generated sector catalog into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			seeder, ok := a.store.(sectorSeeder)
			if !ok {
				return fmt.Errorf("store driver %q does not support seeding", a.cfg.StoreDriver)
			}

			sectors := parking.GenerateSectors(a.cfg.SeedSectors, a.cfg.SeedSlotsPerSector)
			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.StoreTimeout)
			defer cancel()
			if err := seeder.SeedSectors(ctx, sectors); err != nil {
				return fmt.Errorf("failed to seed sectors: %w", err)
			}

			color.Green("Seeded %d slots into %s store", len(sectors), a.cfg.StoreDriver)
			return nil
		},
	}
}

func runServer(a *app, port string) error {
	srv := server.NewServer(port, a.cfg.OTelServiceName, a.coordinator)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		logging.Info(context.Background(), "received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error(shutdownCtx, "server shutdown error", "error", err.Error())
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runBoth(a *app, port, actor string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.NewServer(port, a.cfg.OTelServiceName, a.coordinator)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan struct{})
	go func() {
		parking.NewShell(a.coordinator, a.telemetry, actor, os.Stdin, os.Stdout).Run(ctx)
		close(cliDone)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serverErr error
	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr = fmt.Errorf("server error: %w", err)
		}
	case <-cliDone:
		logging.Info(ctx, "console exited")
	case <-sigChan:
		logging.Info(ctx, "received shutdown signal")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "server shutdown error", "error", err.Error())
	}

	return serverErr
}
