package main

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"github.com/PhucNguyen204/query_translator/internal/config"
	srv "github.com/PhucNguyen204/query_translator/internal/server"
	"github.com/PhucNguyen204/query_translator/pkg/translator"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	reg, err := translator.DefaultRegistry(cfg.Mappings())
	if err != nil {
		logger.Fatalw("load platforms", "error", err)
	}
	tr := translator.New(reg, cfg.Translator(), logger)

	// Lịch sử dịch là tùy chọn
	var history *srv.HistoryStore
	if cfg.DatabaseDSN != "" {
		db, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			logger.Fatalw("open db", "error", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.Ping(); err != nil {
			logger.Fatalw("ping db", "error", err)
		}
		history = srv.NewHistoryStore(db)
		if err := history.InitSchema(cfg.MigrationsPath); err != nil {
			logger.Fatalw("init schema", "error", err)
		}
	}

	server := srv.NewAppServer(tr, history, logger)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	logger.Infow("translator server listening", "addr", cfg.Addr, "parsers", reg.Parsers(), "renderers", reg.Renderers(), "history", history != nil)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		logger.Fatalw("listen", "error", err)
	}
}
