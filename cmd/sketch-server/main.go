package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"

	"github.com/sketchlab/streamsketch/pkg/api"
	"github.com/sketchlab/streamsketch/pkg/keeper"
	"github.com/sketchlab/streamsketch/pkg/storage"
)

func main() {
	// Snapshot database path (SQLite). Uses local file sketches.sqlite.
	dbPath := os.Getenv("SKETCH_DB_PATH")
	if dbPath == "" {
		dbPath = "sketches.sqlite"
	}

	log.Printf("Using database path: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("failed to open sqlite db: %v", err)
	}
	defer db.Close()

	// Pragmas for better performance
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")

	if err := storage.EnsureMetaTables(context.Background(), db); err != nil {
		log.Fatalf("failed to ensure meta tables: %v", err)
	}
	store, err := storage.NewStore(db)
	if err != nil {
		log.Fatalf("failed to create snapshot store: %v", err)
	}

	registry := keeper.NewRegistry()
	defer registry.CloseAll()

	r := mux.NewRouter()
	api.RegisterRoutes(r, registry, store)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("sketch server listening on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	log.Println("server stopped")
}
