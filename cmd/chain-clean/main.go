package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contactkeval/chain-clean/internal/api"
	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/config"
	"github.com/contactkeval/chain-clean/internal/data"
	"github.com/contactkeval/chain-clean/internal/logger"
	"github.com/contactkeval/chain-clean/internal/metrics"
	"github.com/contactkeval/chain-clean/internal/report"
	"github.com/contactkeval/chain-clean/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default: chain-clean.yaml or configs/chain-clean.yaml)")
	rest := flag.Bool("rest", false, "run as REST server (accept cleaning jobs)")
	port := flag.Int("port", 0, "REST server port, overrides server.port")
	verbosity := flag.String("v", "", "log verbosity: error, info, debug, trace")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *rest, *port, *verbosity); err != nil {
		logger.Errorf("event=exit err=%v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, rest bool, port int, verbosity string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbosity != "" {
		cfg.Log.Verbosity = verbosity
	}
	level, err := logger.ParseVerbosity(cfg.Log.Verbosity)
	if err != nil {
		return err
	}
	logger.SetVerbosity(int(level))

	var runs *store.Store
	if cfg.Store.Path != "" {
		if runs, err = store.Open(cfg.Store.Path); err != nil {
			return err
		}
		defer runs.Close()
		logger.Infof("event=store_open path=%s", cfg.Store.Path)
	}

	m := metrics.New()
	opts := cfg.CleanerOptions()
	opts.Observer = m

	if rest {
		if port > 0 {
			cfg.Server.Port = port
		}
		var rs api.RunStore
		if runs != nil {
			rs = runs
		}
		return api.New(cfg.Server, opts, rs, m).Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	}

	return runBatch(ctx, cfg, opts, runs, m)
}

// runBatch loads every configured chain, cleans them as one batch and
// writes the report files.
func runBatch(ctx context.Context, cfg *config.Config, opts arb.Options, runs *store.Store, m *metrics.Metrics) error {
	if len(cfg.Chains) == 0 {
		return errors.New("no chains configured")
	}

	pc, err := cfg.PricingContext()
	if err != nil {
		return err
	}
	provOpts := cfg.ProviderOptions(pc)

	start := time.Now()
	tables := make([]chain.Table, len(cfg.Chains))
	sides := make([]chain.Side, len(cfg.Chains))
	for i, cc := range cfg.Chains {
		req, err := cc.Request()
		if err != nil {
			return fmt.Errorf("chain %q: %w", cc.Name, err)
		}
		prov, err := cc.Provider(provOpts)
		if err != nil {
			return fmt.Errorf("chain %q: %w", cc.Name, err)
		}
		if tables[i], err = data.FetchChain(ctx, prov, req); err != nil {
			return fmt.Errorf("chain %q: %w", cc.Name, err)
		}
		sides[i] = req.Side
		logger.Infof("event=chain_loaded name=%s side=%s quotes=%d", cc.Name, req.Side, tables[i].Len())
	}

	cleaned, rep, err := arb.CleanAll(ctx, tables, sides, pc, opts)
	if err != nil {
		return err
	}
	m.ObserveRun(rep)

	if err := report.WriteAll(rep, cleaned, cfg.Report.Dir); err != nil {
		return err
	}
	if runs != nil {
		if err := runs.SaveRun(ctx, rep); err != nil {
			logger.Warnf("event=save_run_failed run_id=%s err=%v", rep.RunID, err)
		}
	}

	for i, tr := range rep.Tables {
		logger.Infof("event=table_result index=%d name=%s state=%s removed=%d kinds=%v",
			i, tr.Name, tr.State, tr.Removed, tr.Kinds)
	}
	logger.Infof("event=done run_id=%s duration=%s removed=%d dir=%s",
		rep.RunID, time.Since(start), rep.TotalRemoved, cfg.Report.Dir)
	return nil
}
