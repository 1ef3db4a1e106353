package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"choircal/internal/board"
	"choircal/internal/capture"
	appLog "choircal/internal/log"
	"choircal/internal/web"
)

var snapshotFlags struct {
	out    string
	small  bool
	width  int
	height int
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Render the board in headless Chromium and save a PNG",
	RunE:  runSnapshot,
}

func init() {
	f := snapshotCmd.Flags()
	f.StringVarP(&snapshotFlags.out, "out", "o", "board.png", "output PNG path")
	f.BoolVar(&snapshotFlags.small, "small", false, "include small-ensemble rows")
	f.IntVar(&snapshotFlags.width, "width", capture.DefaultWidth, "viewport width")
	f.IntVar(&snapshotFlags.height, "height", capture.DefaultHeight, "viewport height")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	built, err := board.FromConfig(cfg, nil, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The in-process server is loopback only, so it runs without auth.
	local := *cfg
	local.BasicAuth = nil

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           web.NewServer(&local, built.Service).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("snapshot server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	target := url.URL{Scheme: "http", Host: ln.Addr().String(), Path: "/board"}
	if snapshotFlags.small {
		target.RawQuery = "small=1"
	}

	appLog.Info("capturing board", "url", target.String(), "out", snapshotFlags.out)
	err = capture.CaptureBoardPNG(ctx, capture.CaptureOptions{
		URL:        target.String(),
		OutputPath: snapshotFlags.out,
		Width:      snapshotFlags.width,
		Height:     snapshotFlags.height,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), snapshotFlags.out)
	return nil
}
