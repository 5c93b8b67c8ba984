package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"linkdrop/internal/exchange"
	"linkdrop/internal/logger"
	"linkdrop/internal/service"

	"github.com/spf13/cobra"
)

var (
	receiveOnce  bool
	receiveQRPNG string
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Wait for a profile or group from another device",
	Long:  `Opens a receive session on the local network and prints the code to scan on the sending device. Runs until interrupted, or until the first transfer with --once.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		received := make(chan struct{}, 1)
		ex := a.exchange(func(out service.Outcome, err error) {
			if err != nil {
				fmt.Printf("Transfer failed: %v\n", err)
				return
			}
			fmt.Printf("Received %s %q (%s)\n", out.Kind, out.Name, out.Action)
			select {
			case received <- struct{}{}:
			default:
			}
		})

		code, err := ex.StartReceiving()
		if err != nil {
			logger.Log.Fatalf("Starting receive session failed: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ex.StopReceiving(shutdownCtx); err != nil {
				logger.Log.Warnf("Stopping receive session: %v", err)
			}
		}()

		if cfg.Exchange.MetricsListen != "" {
			stopMetrics := serveMetrics(cfg.Exchange.MetricsListen)
			defer stopMetrics()
		}

		if receiveQRPNG != "" {
			png, err := code.QR()
			if err != nil {
				logger.Log.Fatalf("Rendering QR code failed: %v", err)
			}
			if err := os.WriteFile(receiveQRPNG, png, 0o644); err != nil {
				logger.Log.Fatalf("Writing QR code failed: %v", err)
			}
		}
		if art, err := code.Terminal(); err == nil {
			fmt.Println(art)
		} else {
			logger.Log.Warnf("Rendering QR code failed: %v", err)
		}
		fmt.Println(code.String())
		fmt.Println("Waiting for a transfer. Press Ctrl+C to stop.")

		for {
			select {
			case <-ctx.Done():
				printRecentWarnings()
				return
			case <-received:
				if receiveOnce {
					return
				}
			}
		}
	},
}

// serveMetrics exposes the exchange counters on addr until the returned func runs.
func serveMetrics(addr string) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           exchange.MetricsHandler(),
		ReadHeaderTimeout: cfg.Exchange.ReadHeaderTimeout,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("Metrics server stopped: %v", err)
		}
	}()
	logger.Log.Infof("Serving metrics on http://%s%s", addr, exchange.MetricsPath)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func init() {
	receiveCmd.Flags().BoolVar(&receiveOnce, "once", false, "Exit after the first successful transfer")
	receiveCmd.Flags().StringVar(&receiveQRPNG, "qr-png", "", "Also write the code as a PNG to this path")
	rootCmd.AddCommand(receiveCmd)
}
