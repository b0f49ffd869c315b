// Command trackctl inspects and verifies a trackcore record store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trackcore/internal/core"
	"trackcore/internal/history"
	"trackcore/internal/infra/config"
	"trackcore/internal/infra/logger"
	"trackcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitFunc(1)
		return
	}
	exitFunc(0)
}

type options struct {
	configPath string
	json       bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "trackctl",
		Short:         "Inspect and verify a trackcore record store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./trackcore.{yaml,toml,json})")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON")
	root.AddCommand(newInspectCmd(opts), newVerifyCmd(opts))
	return root
}

// workspace is a session over the configured store whose registry knows
// every stored category.
type workspace struct {
	session *core.Session
	records []domain.Record
	log     *zap.Logger
}

func openWorkspace(ctx context.Context, opts *options) (*workspace, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	store, err := core.OpenPersistentStore(ctx, cfg.StorageConfig(), log)
	if err != nil {
		return nil, err
	}
	records, err := store.LoadRecords(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load records: %w", err)
	}
	registry := domain.NewRegistry()
	for _, rec := range records {
		registry.RegisterGeneric(rec.Category)
	}
	hist := history.New(history.WithTracking(cfg.History.Tracking), history.WithMaxDepth(cfg.History.MaxDepth), history.WithLogger(log))
	session := core.NewSession(store, registry,
		core.WithLogger(log),
		core.WithHistory(hist),
		core.WithIDStrategy(core.IDStrategy(cfg.Session.IDStrategy)),
	)
	return &workspace{session: session, records: records, log: log}, nil
}

func (w *workspace) Close() error {
	_ = w.log.Sync()
	return w.session.Close()
}
