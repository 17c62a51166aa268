package main

import (
	"fmt"
	"log/slog"

	"github.com/seia/seia-translator/internal/config"
	"github.com/seia/seia-translator/internal/db"
	"github.com/seia/seia-translator/internal/project"
)

// openRepository opens the configured project backend. The returned
// close func is never nil, even on error.
func openRepository(cfg *config.Config, logger *slog.Logger) (project.Repository, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		database, err := db.New(cfg.DBPath(), logger)
		if err != nil {
			return nil, noClose, fmt.Errorf("open database: %w", err)
		}
		return project.NewSQLiteRepository(database.Conn()), database.Close, nil
	default:
		repo, err := project.NewFileRepository(cfg.LedgerPath())
		if err != nil {
			return nil, noClose, fmt.Errorf("open ledger: %w", err)
		}
		return repo, noClose, nil
	}
}

func openService(cfg *config.Config, logger *slog.Logger, opts ...project.Option) (*project.Service, func() error, error) {
	repo, closeFn, err := openRepository(cfg, logger)
	if err != nil {
		return nil, closeFn, err
	}
	opts = append([]project.Option{
		project.WithDefaultLanguages(cfg.Project.SourceLanguage, cfg.Project.TargetLanguage),
	}, opts...)
	return project.NewService(repo, logger, opts...), closeFn, nil
}

func noClose() error { return nil }
