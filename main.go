package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/rewindfm/rewind/config"
	"github.com/rewindfm/rewind/db"
	"github.com/rewindfm/rewind/ingest"
	"github.com/rewindfm/rewind/session"
	"github.com/rewindfm/rewind/spotify"
)

type application struct {
	cfg      *config.Config
	db       *db.DB
	sessions *session.Manager
	spotify  *spotify.Service
	ingest   *ingest.Processor
	logger   *log.Logger
}

func main() {
	cfg := config.Load()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Error creating upload directory: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		log.Fatalf("Error migrating database: %v", err)
	}

	app := &application{
		cfg:      cfg,
		db:       database,
		sessions: session.NewManager(database),
		spotify: spotify.NewService(spotify.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RedirectURI:  cfg.SpotifyRedirectURI,
			Scopes:       cfg.SpotifyScopes,
		}),
		ingest: ingest.NewProcessor(database),
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}

	serverAddr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	fmt.Printf("Server running at: http://%s\n", serverAddr)
	log.Fatal(http.ListenAndServe(serverAddr, app.routes()))
}
