// Package session ties one loaded recording to its analysis, playback clock
// and current view. A Session replaces the process-wide analyzer state of a
// single-user viewer, so several recordings can be inspected at once.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ecgscope/internal/beats"
	"github.com/banshee-data/ecgscope/internal/config"
	"github.com/banshee-data/ecgscope/internal/ecgclient"
	"github.com/banshee-data/ecgscope/internal/metrics"
	"github.com/banshee-data/ecgscope/internal/monitoring"
	"github.com/banshee-data/ecgscope/internal/playback"
	"github.com/banshee-data/ecgscope/internal/timeutil"
	"github.com/banshee-data/ecgscope/internal/view"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

// ErrNoWaveform is returned by operations that need a loaded recording.
var ErrNoWaveform = fmt.Errorf("no waveform loaded: %w", waveform.ErrInvalidInput)

var logger = monitoring.Component("session")

// Report is the result of one full analysis pass.
type Report struct {
	RunID         string    `json:"run_id"`
	Lead          int       `json:"lead"`
	LeadName      string    `json:"lead_name"`
	SamplingRate  int       `json:"sampling_rate"`
	DataPoints    int       `json:"data_points"`
	Duration      float64   `json:"duration_seconds"`
	SignalQuality int       `json:"signal_quality"`
	AnalyzedAt    time.Time `json:"analyzed_at"`
	beats.Stats

	Analysis *beats.Analysis `json:"pqrst_points"`
}

// Frame is the most recent render plus its window statistics.
type Frame struct {
	State   playback.State  `json:"playback"`
	View    view.Result     `json:"view"`
	Summary metrics.Summary `json:"summary"`
	Seq     uint64          `json:"seq"`
}

// Info is a listing entry.
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Loaded    bool      `json:"loaded"`
	Duration  float64   `json:"duration_seconds"`
	Mode      view.Mode `json:"mode"`
	Playing   bool      `json:"is_playing"`
}

// Session is safe for concurrent use. Playback notifications re-render the
// frame on the controller's goroutine.
type Session struct {
	ID        string
	CreatedAt time.Time

	cfg    *config.AnalyzerConfig
	clock  timeutil.Clock
	player *playback.Controller

	// renderMu serialises renders so frames are stored in order.
	renderMu sync.Mutex

	mu             sync.RWMutex
	name           string
	wave           *waveform.Waveform
	analysis       *beats.Analysis
	report         *Report
	viewCfg        view.Config
	leads          view.LeadSet
	classification *ecgclient.Classification
	frame          Frame
}

// New creates an empty session. An empty id generates one; nil clock and
// config select the real clock and built-in defaults.
func New(id string, clock timeutil.Clock, cfg *config.AnalyzerConfig) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	s := &Session{
		ID:        id,
		CreatedAt: clock.Now(),
		cfg:       cfg,
		clock:     clock,
		viewCfg:   view.ContinuousConfig{},
		leads:     view.AllLeads(waveform.LeadCount),
	}
	s.player = playback.NewController(clock, 0,
		playback.WithWindow(cfg.GetWindowSeconds()),
		playback.WithStep(cfg.GetStepSeconds()),
		playback.WithSpeed(cfg.GetSpeed()),
	)
	s.player.Subscribe(s.render)
	s.render(s.player.State())
	return s
}

// Load replaces the recording. Marks, report and classification are cleared
// and playback rewinds to zero, stopped.
func (s *Session) Load(name string, w *waveform.Waveform) error {
	if w == nil || w.Len() == 0 {
		return fmt.Errorf("load: %w", waveform.ErrInvalidInput)
	}
	s.mu.Lock()
	s.name = name
	s.wave = w
	s.analysis = nil
	s.report = nil
	s.classification = nil
	s.mu.Unlock()

	logger.Printf("%s: loaded %q (%d leads, %d samples, %d Hz)", s.ID, name, w.LeadCount(), w.Len(), w.Rate())
	s.player.Reset(w.Duration())
	return nil
}

// Reset drops the recording and everything derived from it.
func (s *Session) Reset() {
	s.mu.Lock()
	s.name = ""
	s.wave = nil
	s.analysis = nil
	s.report = nil
	s.classification = nil
	s.mu.Unlock()

	s.player.Reset(0)
}

// Analyze runs beat detection on the configured reference lead, falling back
// to lead I for recordings with a single lead.
func (s *Session) Analyze() (*Report, error) {
	s.mu.RLock()
	w := s.wave
	s.mu.RUnlock()
	if w == nil {
		return nil, ErrNoWaveform
	}

	rep, a, err := Analyze(w, s.cfg, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.wave != w {
		// A newer recording was loaded while this one was analysed.
		s.mu.Unlock()
		return nil, fmt.Errorf("analyze: recording replaced: %w", waveform.ErrInvalidInput)
	}
	s.analysis = a
	s.report = rep
	s.mu.Unlock()

	logger.Printf("%s: %d beats, %d bpm, quality %d", s.ID, rep.TotalBeats, rep.HeartRate, rep.SignalQuality)
	s.Refresh()
	return rep, nil
}

// Analyze is the stateless analysis used by sessions and one-shot requests.
func Analyze(w *waveform.Waveform, cfg *config.AnalyzerConfig, now time.Time) (*Report, *beats.Analysis, error) {
	if w == nil || w.Len() == 0 {
		return nil, nil, ErrNoWaveform
	}
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	lead := ReferenceLead(w, cfg.GetReferenceLead())

	a, err := beats.Detect(w, lead, beats.Options{
		Threshold:           beats.Threshold(cfg.GetThresholdMV()),
		RefractorySeconds:   cfg.GetRefractorySeconds(),
		NeighborhoodSamples: cfg.GetNeighborhoodSamples(),
	})
	if err != nil {
		return nil, nil, err
	}
	samples, _ := w.Lead(lead)
	rep := &Report{
		RunID:         uuid.NewString(),
		Lead:          lead,
		LeadName:      waveform.LeadName(lead),
		SamplingRate:  w.Rate(),
		DataPoints:    len(samples),
		Duration:      float64(len(samples)) / float64(w.Rate()),
		SignalQuality: metrics.RecordQuality(w),
		AnalyzedAt:    now.UTC(),
		Stats:         a.Stats(),
		Analysis:      a,
	}
	return rep, a, nil
}

// ReferenceLead returns preferred when w has it, else lead 0.
func ReferenceLead(w *waveform.Waveform, preferred int) int {
	if preferred >= 0 && preferred < w.LeadCount() {
		return preferred
	}
	return 0
}

// SetView validates and applies a visualization config. Cumulative views
// loop over the whole recording; windowed views stop a window short.
func (s *Session) SetView(cfg view.Config) error {
	if cfg == nil {
		return fmt.Errorf("view config: %w", waveform.ErrInvalidInput)
	}
	s.mu.Lock()
	leadCount := waveform.LeadCount
	if s.wave != nil {
		leadCount = s.wave.LeadCount()
	}
	if err := cfg.Validate(leadCount); err != nil {
		s.mu.Unlock()
		return err
	}
	if rc, ok := cfg.(view.RecurrenceConfig); ok && rc.Mode == view.RecurrenceDensity && rc.Bins == 0 {
		rc.Bins = s.cfg.GetDensityBins()
		cfg = rc
	}
	s.viewCfg = cfg
	s.mu.Unlock()

	s.player.SetLoopMode(loopModeFor(cfg))
	s.Refresh()
	return nil
}

func loopModeFor(cfg view.Config) playback.LoopMode {
	switch c := cfg.(type) {
	case view.ContinuousConfig:
		return playback.LoopWindow
	case view.PolarConfig:
		if c.Mode == view.PolarRolling {
			return playback.LoopWindow
		}
	}
	return playback.LoopFull
}

// View returns the active visualization config.
func (s *Session) View() view.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewCfg
}

// SelectLeads sets the leads drawn in continuous mode.
func (s *Session) SelectLeads(set view.LeadSet) {
	cp := make(view.LeadSet, len(set))
	for l := range set {
		cp[l] = struct{}{}
	}
	s.mu.Lock()
	s.leads = cp
	s.mu.Unlock()
	s.Refresh()
}

// SelectedLeads returns the continuous-mode lead selection in ascending order.
func (s *Session) SelectedLeads() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leads.Sorted()
}

// Player exposes the playback controller.
func (s *Session) Player() *playback.Controller {
	return s.player
}

// Waveform returns the loaded recording, or nil.
func (s *Session) Waveform() *waveform.Waveform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wave
}

// Name returns the source name of the loaded recording.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Report returns the latest analysis report, or nil.
func (s *Session) Report() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// SetClassification stores a classifier reply for display.
func (s *Session) SetClassification(c *ecgclient.Classification) {
	s.mu.Lock()
	s.classification = c
	s.mu.Unlock()
}

// Classification returns the stored classifier reply, or nil.
func (s *Session) Classification() *ecgclient.Classification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classification
}

// Frame returns the latest render.
func (s *Session) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Refresh re-renders with the current playback state.
func (s *Session) Refresh() {
	s.render(s.player.State())
}

// Info summarises the session for listings.
func (s *Session) Info() Info {
	st := s.player.State()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:        s.ID,
		Name:      s.name,
		CreatedAt: s.CreatedAt,
		Loaded:    s.wave != nil,
		Duration:  st.Duration,
		Mode:      s.viewCfg.ViewMode(),
		Playing:   st.Playing,
	}
}

// Close stops playback.
func (s *Session) Close() {
	s.player.Stop()
}

func (s *Session) render(st playback.State) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.RLock()
	w := s.wave
	cfg := s.viewCfg
	leads := s.leads
	a := s.analysis
	seq := s.frame.Seq
	last := s.frame.State.Seq
	s.mu.RUnlock()

	if st.Seq < last {
		// A tick delivered after a seek or pause.
		return
	}

	f := Frame{State: st, Seq: seq + 1}
	f.View = view.Render(w, st, cfg, leads)
	if w != nil {
		lead := ReferenceLead(w, s.cfg.GetReferenceLead())
		if a != nil {
			lead = a.Lead
		}
		samples, _ := w.Lead(lead)
		win := playback.VisibleRange(st, w.Rate(), len(samples))
		f.Summary = metrics.Summarize(w, lead, a, win)
	}

	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
}
