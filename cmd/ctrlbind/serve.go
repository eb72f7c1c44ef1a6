package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vango-dev/ctrlbind/internal/config"
	"github.com/vango-dev/ctrlbind/internal/demo"
	"github.com/vango-dev/ctrlbind/internal/errors"
	"github.com/vango-dev/ctrlbind/pkg/controller"
	"github.com/vango-dev/ctrlbind/pkg/middleware"
	"github.com/vango-dev/ctrlbind/pkg/remote"
	"github.com/vango-dev/ctrlbind/pkg/view"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		sample     string
		users      []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a sample tree over WebSocket",
		Long: `Serve a sample element tree over WebSocket.

Each connection gets its own tree with controllers attached by the
type of its data context. Frames load, unload, set properties and
raise events; every reply carries the tree snapshot.

Examples:
  ctrlbind serve
  ctrlbind serve --sample=login --user=ada:lovelace
  ctrlbind serve --config=./ctrlbind.yaml --addr=0.0.0.0:7070`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			s, err := demo.Lookup(sample)
			if err != nil {
				return errors.New("C200").Wrap(err).
					WithSuggestion("Available samples: " + strings.Join(demo.Names(), ", "))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			host := newHost(cfg, s, users)
			printBanner()
			success("Serving %s on ws://%s%s", s.Name, cfg.Server.Addr, cfg.Server.WSPath)
			if cfg.Metrics.Enabled {
				info("Metrics on http://%s%s", cfg.Server.Addr, cfg.Metrics.Path)
			}
			if err := host.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				return errors.New("C201").Wrap(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file or directory (default: current directory)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&sample, "sample", "todo", "Sample to serve")
	cmd.Flags().StringSliceVar(&users, "user", []string{"admin:admin"}, "Login sample credentials as user:password")

	return cmd
}

// loadConfig reads path, a file or a directory. A directory without a
// config file yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = "."
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.New("C101").Wrap(err)
	}
	if !fi.IsDir() {
		return config.LoadFile(path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		if ce, ok := err.(*errors.CtrlError); ok && ce.Code == "C100" {
			return config.New(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// newEngine builds the engine described by cfg.
func newEngine(cfg *config.Config, deps controller.Dependencies) *controller.Engine {
	reg := controller.NewRegistry()
	demo.Register(reg, cfg.ControllerDisabled)

	ecfg := controller.Config{
		Registry:     reg,
		Dependencies: deps,
		Logger:       cfg.Logger(os.Stderr),
	}
	if cfg.Metrics.Enabled {
		m := middleware.Prometheus(middleware.WithNamespace(cfg.Metrics.Namespace))
		ecfg.Observers = append(ecfg.Observers, m)
		ecfg.Extensions = append(ecfg.Extensions, m)
	}
	if cfg.Tracing.Enabled {
		ecfg.Observers = append(ecfg.Observers,
			middleware.OpenTelemetry(middleware.WithTracerName(cfg.Tracing.TracerName)))
	}
	return controller.New(ecfg)
}

func newHost(cfg *config.Config, s demo.Sample, users []string) *remote.Host {
	auth := demo.StaticAuthenticator{}
	for _, u := range users {
		name, pass, _ := strings.Cut(u, ":")
		auth[name] = pass
	}
	engine := newEngine(cfg, controller.NewServices(demo.Authenticator(auth)))

	rcfg := remote.Config{
		Engine:      engine,
		WSPath:      cfg.Server.WSPath,
		ReadTimeout: cfg.ReadTimeout(),
		Tree: func(*http.Request) (*view.Node, error) {
			return s.Tree(), nil
		},
	}
	if cfg.Metrics.Enabled {
		rcfg.MetricsPath = cfg.Metrics.Path
	}
	return remote.New(rcfg)
}
