// Package main runs the terminal client of the maintenance backend: sign-in,
// password recovery and the defect screens in an interactive shell.
package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sitebatch/maintenance/internal/client/authflow"
	"github.com/sitebatch/maintenance/internal/client/backend"
	"github.com/sitebatch/maintenance/internal/client/session"
	"github.com/sitebatch/maintenance/internal/client/storage"
	"github.com/sitebatch/maintenance/internal/config"
	"github.com/sitebatch/maintenance/internal/logger"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// processExit ends the client after a reset e-mail was requested.
type processExit struct{ out io.Writer }

func (e processExit) Exit() {
	fmt.Fprintln(e.out, authflow.NoticeResetSent)
	os.Exit(0)
}

func main() {
	options, err := config.ParseClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	hc, err := backend.NewHTTPClient(options.CAFile, options.Timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	api := backend.New(options.BaseURL, hc, zapLogger)
	provider := session.New(api, zapLogger)
	api.SetTokenSource(provider)

	creds, err := storage.Open(options.CredentialsFile, options.DeviceKeyFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flow := authflow.New(provider, creds, authflow.Options{
		RedirectURL: options.RedirectURL,
		SplashDelay: options.SplashDelay,
		Exiter:      processExit{out: os.Stdout},
	}, zapLogger)
	flow.Start()
	defer flow.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh := newShell(api, provider, flow, os.Stdin, os.Stdout, zapLogger)
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		sh.color = true
	}
	if _, err := flow.Launch(ctx, options.Link); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	sh.showScreen()
	sh.run(ctx)
}
