package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/kirillkom/document-sorter/internal/adapters/cli"
	"github.com/kirillkom/document-sorter/internal/bootstrap"
	"github.com/kirillkom/document-sorter/internal/config"
	"github.com/kirillkom/document-sorter/internal/core/ports"
	"github.com/kirillkom/document-sorter/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "sorter", cfg.LogLevel)

	var db *sql.DB
	openDB := func() (*sql.DB, error) {
		if db != nil {
			return db, nil
		}
		var err error
		db, err = bootstrap.OpenCacheDB(context.Background(), cfg)
		return db, err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	root := cli.NewRootCommand(cli.Deps{
		Pipeline: func() (ports.Organizer, cli.Assembler, error) {
			db, err := openDB()
			if err != nil {
				return nil, nil, err
			}
			pipeline, err := bootstrap.NewPipeline(cfg, bootstrap.PipelineDeps{Logger: logger, DB: db})
			if err != nil {
				return nil, nil, err
			}
			return pipeline.Organizer, pipeline.Packager, nil
		},
		Caches: func() (cli.CacheResetter, error) {
			db, err := openDB()
			if err != nil {
				return nil, err
			}
			caches, err := bootstrap.NewCaches(cfg, db, logger)
			if err != nil {
				return nil, err
			}
			return caches, nil
		},
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if db != nil {
			_ = db.Close()
		}
		os.Exit(1)
	}
}
