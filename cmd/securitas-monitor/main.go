package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	logp "github.com/charmbracelet/log"
	securitas "github.com/homesec-labs/securitas-direct"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "monitor",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.Info(
		"securitas-monitor",
		"version", version,
		"commit", commit,
		"date", date,
	)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(
			"could not parse env",
			"err",
			strings.TrimPrefix(strings.ReplaceAll(err.Error(), "; ", "\n"), "env: ")+"\n",
		)
	}
	if cfg.Debug {
		log.SetLevel(logp.DebugLevel)
		securitas.SetLogLevel(logp.DebugLevel)
	}

	cli, err := securitas.New(securitas.Config{
		Username: cfg.Username,
		Password: cfg.Password,
		Country:  cfg.Country,
		Poll:     cfg.pollPolicy(),
	})
	if err != nil {
		log.Fatal("could not create client", "err", err)
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	if err := login(ctx, cli, cfg); err != nil {
		log.Fatal("could not log in", "err", err)
	}

	installations, err := cli.ResolveInstallations(ctx)
	if err != nil {
		log.Fatal("could not resolve installations", "err", err)
	}
	if len(installations) == 0 {
		log.Fatal("account has no installations")
	}
	for _, inst := range installations {
		log.Info(
			"watching installation",
			"numinst", inst.Number,
			"alias", inst.Alias,
			"panel", inst.Panel,
			"perimetral", inst.Perimetral,
			"sentinels", len(inst.Sentinels),
		)
	}

	mon := newMonitor(cli, cfg, installations)
	go mon.loop(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", mon.handleIndex)
	mux.HandleFunc("/arm", mon.handleCommand(true))
	mux.HandleFunc("/disarm", mon.handleCommand(false))

	server := &http.Server{Addr: cfg.Address, Handler: mux}
	go func() {
		<-ctx.Done()
		log.Info("stopping server")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		if err := server.Shutdown(shutCtx); err != nil {
			log.Error("could not shut down server", "err", err)
		}
	}()

	log.Info("starting server", "addr", cfg.Address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("could not start server", "err", err)
	}

	logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer logoutCancel()
	if err := cli.Logout(logoutCtx); err != nil {
		log.Error("could not log out", "err", err)
	}
}
