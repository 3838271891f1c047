// Command ecg-analyse runs beat detection over a recording offline and
// prints the report as JSON.
//
// Usage:
//
//	go run ./cmd/tools/ecg-analyse [flags] [recording.csv]
//
// Without a file argument a synthetic recording is generated. With -parser-url
// the file is decoded by a remote upload service instead of locally. With
// -chart the chosen view is also rendered to a standalone HTML page.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/ecgscope/internal/chart"
	"github.com/banshee-data/ecgscope/internal/config"
	"github.com/banshee-data/ecgscope/internal/ecgclient"
	"github.com/banshee-data/ecgscope/internal/httputil"
	"github.com/banshee-data/ecgscope/internal/playback"
	"github.com/banshee-data/ecgscope/internal/security"
	"github.com/banshee-data/ecgscope/internal/session"
	"github.com/banshee-data/ecgscope/internal/timeutil"
	"github.com/banshee-data/ecgscope/internal/view"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

// Config holds the tool's options.
type Config struct {
	Input      string
	Rate       int
	ConfigPath string
	ParserURL  string
	HTTPClient httputil.HTTPClient // nil uses a client with the configured timeout

	SynthSeconds float64
	SynthBPM     float64
	SynthNoise   float64

	ChartPath  string
	ChartTheme string
	View       string // view wire form, e.g. {"mode":"polar","polar":{"lead":1,"mode":"cumulative"}}
	StartTime  float64

	Compact bool
}

func main() {
	cfg := Config{}
	flag.IntVar(&cfg.Rate, "rate", 0, "Sampling rate in Hz (default from config)")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Analyzer config JSON file")
	flag.StringVar(&cfg.ParserURL, "parser-url", "", "Decode the file with a remote upload service at this base URL")
	flag.Float64Var(&cfg.SynthSeconds, "seconds", 10, "Synthetic recording length when no file is given")
	flag.Float64Var(&cfg.SynthBPM, "bpm", 72, "Synthetic heart rate")
	flag.Float64Var(&cfg.SynthNoise, "noise", 0.01, "Synthetic noise amplitude")
	flag.StringVar(&cfg.ChartPath, "chart", "", "Write an HTML chart of the view to this path")
	flag.StringVar(&cfg.ChartTheme, "theme", "", "echarts theme for -chart")
	flag.StringVar(&cfg.View, "view", `{"mode":"continuous"}`, "View config JSON for -chart")
	flag.Float64Var(&cfg.StartTime, "t", 0, "Playback time in seconds for windowed views")
	flag.BoolVar(&cfg.Compact, "compact", false, "Print the report without indentation")
	flag.Parse()
	if flag.NArg() > 0 {
		cfg.Input = flag.Arg(0)
	}

	if err := run(cfg, os.Stdout); err != nil {
		log.Fatalf("ecg-analyse: %v", err)
	}
}

func run(cfg Config, out io.Writer) error {
	if cfg.ChartPath != "" {
		if err := security.ValidateOutputPath(cfg.ChartPath); err != nil {
			return err
		}
	}
	ac := config.EmptyConfig()
	if cfg.ConfigPath != "" {
		var err error
		if ac, err = config.Load(cfg.ConfigPath); err != nil {
			return err
		}
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = ac.GetDefaultSamplingRate()
	}

	w, err := loadWaveform(cfg, ac, rate)
	if err != nil {
		return err
	}

	rep, _, err := session.Analyze(w, ac, timeutil.RealClock{}.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if !cfg.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if cfg.ChartPath != "" {
		if err := writeChart(cfg, ac, w); err != nil {
			return err
		}
		log.Printf("wrote chart to %s", cfg.ChartPath)
	}
	return nil
}

func loadWaveform(cfg Config, ac *config.AnalyzerConfig, rate int) (*waveform.Waveform, error) {
	if cfg.Input == "" {
		return waveform.Synthesize(waveform.SynthOptions{
			Rate:       rate,
			Seconds:    cfg.SynthSeconds,
			HeartRate:  cfg.SynthBPM,
			NoiseLevel: cfg.SynthNoise,
		})
	}
	f, err := os.Open(cfg.Input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if cfg.ParserURL == "" {
		return waveform.ParseCSV(f, rate)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httputil.NewStandardClient(ac.GetClassifierTimeout())
	}
	data, err := ecgclient.New(cfg.ParserURL, hc).Upload(context.Background(), filepath.Base(cfg.Input), f, rate)
	if err != nil {
		return nil, err
	}
	return data.Waveform()
}

func writeChart(cfg Config, ac *config.AnalyzerConfig, w *waveform.Waveform) error {
	vc, err := view.DecodeConfig([]byte(cfg.View))
	if err != nil {
		return err
	}
	if err := vc.Validate(w.LeadCount()); err != nil {
		return err
	}
	if rc, ok := vc.(view.RecurrenceConfig); ok && rc.Bins == 0 {
		rc.Bins = ac.GetDensityBins()
		vc = rc
	}

	st := playback.State{
		CurrentTime:   cfg.StartTime,
		WindowSeconds: ac.GetWindowSeconds(),
		Duration:      w.Duration(),
	}
	res := view.Render(w, st, vc, view.AllLeads(w.LeadCount()))

	f, err := os.Create(cfg.ChartPath)
	if err != nil {
		return err
	}
	if err := chart.Render(f, res, chart.Options{Theme: cfg.ChartTheme, Subtitle: cfg.Input}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
