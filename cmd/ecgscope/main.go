// Command ecgscope serves the ECG analysis API.
//
// Usage:
//
//	ecgscope [flags]
//
// Flags:
//
//	-listen          Listen address (default: :8080)
//	-config          Analyzer config JSON (default: built-in defaults)
//	-db              SQLite path; "none" disables history
//	-classifier-url  Remote classifier base URL
//	-dev             Preload a synthetic recording into a session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/ecgscope/internal/api"
	"github.com/banshee-data/ecgscope/internal/config"
	"github.com/banshee-data/ecgscope/internal/db"
	"github.com/banshee-data/ecgscope/internal/ecgclient"
	"github.com/banshee-data/ecgscope/internal/httputil"
	"github.com/banshee-data/ecgscope/internal/version"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	configPath    = flag.String("config", "", "Analyzer config JSON file")
	dbPath        = flag.String("db", "", "SQLite database path (overrides config; \"none\" disables history)")
	classifierURL = flag.String("classifier-url", "", "Remote classifier base URL (overrides config)")
	chartAssets   = flag.String("chart-assets", "", "Host serving echarts assets for debug charts")
	devMode       = flag.Bool("dev", false, "Run in dev mode")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		v := version.Current()
		fmt.Printf("ecgscope %s (%s, built %s)\n", v.Version, v.GitSHA, v.BuildTime)
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *classifierURL != "" {
		cfg.ClassifierURL = classifierURL
	}

	opts := []api.Option{api.WithChartAssets(*chartAssets)}

	if path := cfg.GetDBPath(); path != "none" {
		store, err := db.Open(path)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()
		opts = append(opts, api.WithStore(store))
		log.Printf("recording history in %s", store.Path())
	}

	if url := cfg.GetClassifierURL(); url != "" {
		client := ecgclient.New(url, httputil.NewStandardClient(cfg.GetClassifierTimeout()))
		opts = append(opts, api.WithClassifier(client))
		log.Printf("forwarding classification to %s", url)
	} else {
		log.Print("no classifier configured, using rule-based classification")
	}

	server := api.NewServer(cfg, opts...)
	defer server.Close()

	if *devMode {
		if err := preloadSynthetic(server); err != nil {
			log.Fatalf("failed to preload synthetic recording: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              *listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("ecgscope %s listening on %s", version.Version, *listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("failed to start server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// preloadSynthetic opens one analysed session over a generated recording so
// the playback routes have data without an upload.
func preloadSynthetic(server *api.Server) error {
	w, err := waveform.Synthesize(waveform.SynthOptions{Rate: 360, Seconds: 30, HeartRate: 72, NoiseLevel: 0.02})
	if err != nil {
		return err
	}
	sess := server.Sessions().Create()
	if err := sess.Load("synthetic", w); err != nil {
		return err
	}
	if _, err := sess.Analyze(); err != nil {
		return err
	}
	log.Printf("dev mode: synthetic session %s", sess.ID)
	return nil
}
