package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/cinesync/internal/adapter"
	"github.com/mmcdole/cinesync/internal/api"
	"github.com/mmcdole/cinesync/internal/catalog"
	"github.com/mmcdole/cinesync/internal/gateway"
	"github.com/mmcdole/cinesync/internal/notify"
	"github.com/mmcdole/cinesync/internal/session"
	"github.com/mmcdole/cinesync/internal/store"
	"github.com/mmcdole/cinesync/internal/tui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

type flags struct {
	server      string
	metricsAddr string
	logout      bool
}

func main() {
	var (
		showVersion bool
		f           flags
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&f.server, "server", "", "backend URL (saved to the config file)")
	flag.StringVar(&f.metricsAddr, "metrics", "", "serve Prometheus metrics on this address, e.g. localhost:9090")
	flag.BoolVar(&f.logout, "logout", false, "forget the stored session and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("cinesync %s\n", Version)
		return
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Info("starting cinesync", "version", Version)

	if f.server != "" {
		cfg.Server.URL = strings.TrimRight(f.server, "/")
		if err := adapter.SaveConfig(cfg); err != nil {
			return err
		}
	}
	if !cfg.IsConfigured() {
		return errors.New("no backend configured; run with -server <url>")
	}

	st, err := store.Open(cfg.Cache.Dir, cfg.Server.URL)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer st.Close()

	if f.logout {
		if err := st.ClearToken(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	}

	bus := notify.NewBus(cfg.Messages.TTL, logger)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	if f.metricsAddr != "" {
		go serveMetrics(f.metricsAddr, reg, logger)
	}

	var logout notify.LogoutRegistry
	events := tui.NewEvents()
	events.WatchBus(bus)

	gw := gateway.New(gateway.Options{
		BaseURL:           cfg.Server.URL,
		Timeout:           cfg.Server.Timeout,
		Tokens:            st,
		Session:           &logout,
		Navigator:         events.Navigator(),
		Notifier:          bus,
		RequestsPerSecond: cfg.Gateway.RequestsPerSecond,
		Burst:             cfg.Gateway.Burst,
		BreakerFailures:   cfg.Gateway.BreakerFailures,
		BreakerTimeout:    cfg.Gateway.BreakerTimeout,
		Registerer:        reg,
		Logger:            logger,
	})
	client := api.NewClient(gw, logger)
	catalogSvc := catalog.NewService(client, st, cfg.Catalog.PageSize, logger)
	sess := session.NewStore(client, st, bus, &logout, logger)

	for {
		if token, _ := st.Token(); token == "" {
			if err := promptLogin(sess); err != nil {
				return err
			}
		}

		events.Drain()
		model := tui.NewModel(tui.Options{
			Catalog:         catalogSvc,
			Session:         sess,
			Events:          events,
			ScarceThreshold: cfg.Catalog.ScarceThreshold,
			Logger:          logger,
		})

		logger.Info("starting TUI")
		final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
		model.Close()
		if err != nil {
			logger.Error("TUI error", "error", err)
			return fmt.Errorf("TUI error: %w", err)
		}

		if m, ok := final.(tui.Model); !ok || !m.LoginRequired {
			break
		}
		fmt.Println("Your session has expired. Please log in again.")
	}

	logger.Info("shutting down")
	return nil
}

// promptLogin asks for credentials until the backend accepts them.
func promptLogin(sess *session.Store) error {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Email: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		email := strings.TrimSpace(input)
		if email == "" {
			continue
		}

		fmt.Print("Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		user, err := sess.Login(ctx, email, string(pw))
		cancel()
		if err == nil {
			fmt.Printf("✓ Signed in as %s\n", user.Name)
			return nil
		}

		var gwErr *gateway.Error
		if errors.As(err, &gwErr) && gwErr.Kind == gateway.KindValidation {
			for field, msg := range gwErr.FieldErrors() {
				fmt.Printf("✗ %s: %s\n", field, msg)
			}
			continue
		}
		fmt.Printf("✗ %v\n", err)
		if gateway.IsNetwork(err) {
			return err
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "addr", addr, "error", err)
	}
}
