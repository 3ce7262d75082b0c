package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/chiufan/tidescan/internal/app"
	"github.com/chiufan/tidescan/internal/config"
	"github.com/chiufan/tidescan/internal/evaluator"
	"github.com/chiufan/tidescan/internal/logger"
	"github.com/chiufan/tidescan/internal/metrics"
	"github.com/chiufan/tidescan/internal/notifier"
	"github.com/chiufan/tidescan/internal/notifier/email"
	"github.com/chiufan/tidescan/internal/notifier/webhook"
	"github.com/chiufan/tidescan/internal/provider/twse"
	"github.com/chiufan/tidescan/internal/provider/yahoo"
	"github.com/chiufan/tidescan/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var forceCommit bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a full batch: refresh ledger, scan universe, archive matches",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&forceCommit, "force-commit", false, "commit matches even during the session")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if forceCommit {
		cfg.Session.ForceCommit = true
	}

	a, reg, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics, reg, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func buildApp(cfg *config.Config, log *zap.Logger) (*app.App, *metrics.Registry, error) {
	store, err := buildStore(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	engine := evaluator.NewEngine(log)
	for _, ev := range []evaluator.Evaluator{
		evaluator.NewPullbackSetup(),
		evaluator.NewStrictVCP(),
		evaluator.NewNShapePivot(),
	} {
		ec, ok := cfg.Evaluators[ev.Name()]
		if ok && !ec.Enabled {
			continue
		}
		if err := ev.Init(evaluator.Config{Enabled: true, Params: ec.Params}); err != nil {
			return nil, nil, fmt.Errorf("initializing evaluator %s: %w", ev.Name(), err)
		}
		engine.Register(ev)
	}

	notifiers, err := buildNotifiers(cfg.Notifiers)
	if err != nil {
		return nil, nil, err
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	exchange := twse.New()
	a := app.New(cfg, app.Deps{
		Bars:       yahoo.New(),
		Universe:   exchange,
		Classifier: exchange,
		Engine:     engine,
		Notifiers:  notifiers,
		Documents:  storage.NewDocuments(store),
		Metrics:    reg,
	}, log)
	return a, reg, nil
}

func buildStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "s3":
		return storage.NewS3(storage.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return storage.NewLocalFS(cfg.Path)
	}
}

func buildNotifiers(cfgs map[string]config.NotifierConfig) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for name, nc := range cfgs {
		if !nc.Enabled {
			continue
		}
		switch name {
		case "email":
			n := email.New(nc.Host, nc.Port, nc.Username, nc.Password, nc.From, nc.To)
			if err := reg.Register(n); err != nil {
				return nil, err
			}
		case "webhook":
			n := webhook.New(nc.URL, nc.Headers)
			if err := reg.Register(n); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown notifier %q", name)
		}
	}
	return reg, nil
}

func serveMetrics(cfg config.MetricsConfig, reg *metrics.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("metrics listener starting", zap.String("addr", cfg.Listen))
	if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
		log.Warn("metrics listener stopped", zap.Error(err))
	}
}
