package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/andy6609/linechat/internal/chat"
)

func main() {
	opts := registerFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := chat.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	applyFlags(flag.CommandLine, &cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := chat.NewLogger(os.Stdout, cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	srv := chat.NewServer(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	srv.Stop()
}

type options struct {
	configPath  string
	addr        string
	wsAddr      string
	metricsAddr string
	logLevel    string
}

func registerFlags(fs *flag.FlagSet) *options {
	o := &options{}
	fs.StringVar(&o.configPath, "config", "chat.toml", "path to TOML config file")
	fs.StringVar(&o.addr, "addr", "", "chat listen address (overrides config)")
	fs.StringVar(&o.wsAddr, "ws-addr", "", "websocket listen address (overrides config)")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "metrics listen address (overrides config)")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	return o
}

// applyFlags lets explicitly set flags win over file and environment. A
// flag left unset keeps whatever the config already holds, even when its
// default is empty.
func applyFlags(fs *flag.FlagSet, cfg *chat.Config, o *options) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["addr"] {
		cfg.Server.Addr = o.addr
	}
	if set["ws-addr"] {
		cfg.Server.WSAddr = o.wsAddr
	}
	if set["metrics-addr"] {
		cfg.Server.MetricsAddr = o.metricsAddr
	}
	if set["log-level"] {
		cfg.Log.Level = o.logLevel
	}
}
