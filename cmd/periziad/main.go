// Command periziad runs the perizia backend HTTP server.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/periziapp/perizia"
	periziagorm "github.com/periziapp/perizia/stores/gorm"
)

func main() {
	cfg, err := perizia.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// TranslateError turns Postgres unique violations into
	// gorm.ErrDuplicatedKey, which the stores map to domain errors.
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	if err := periziagorm.AutoMigrate(db); err != nil {
		slog.Error("migration failed", "err", err)
		os.Exit(1)
	}

	server, err := perizia.NewServer(cfg, periziagorm.NewUserStore(db), periziagorm.NewPeriziaStore(db))
	if err != nil {
		slog.Error("failed to build server", "err", err)
		os.Exit(1)
	}

	slog.Info("perizia backend listening", "addr", cfg.Addr, "sessionTTL", server.Tokens.SessionTTL())
	if err := http.ListenAndServe(cfg.Addr, server.Handler()); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
