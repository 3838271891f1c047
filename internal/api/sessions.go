package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/ecgscope/internal/chart"
	"github.com/banshee-data/ecgscope/internal/httputil"
	"github.com/banshee-data/ecgscope/internal/playback"
	"github.com/banshee-data/ecgscope/internal/security"
	"github.com/banshee-data/ecgscope/internal/session"
	"github.com/banshee-data/ecgscope/internal/view"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

// SessionDetail is the reply to GET /api/sessions/{id}.
type SessionDetail struct {
	session.Info
	Playback       playback.State  `json:"playback"`
	View           json.RawMessage `json:"view"`
	Leads          []int           `json:"leads"`
	Report         *session.Report `json:"report,omitempty"`
	Classification json.RawMessage `json:"classification,omitempty"`
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("session %q: %w", r.PathValue("id"), err))
		return nil, false
	}
	return sess, true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	httputil.WriteJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	viewJSON, err := view.EncodeConfig(sess.View())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d := SessionDetail{
		Info:     sess.Info(),
		Playback: sess.Player().State(),
		View:     viewJSON,
		Leads:    sess.SelectedLeads(),
		Report:   sess.Report(),
	}
	if c := sess.Classification(); c != nil {
		d.Classification = c.Raw
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type loadRequest struct {
	Name string `json:"name"`
	ecgRequest
}

// loadSession replaces a session's recording with {ecg_data, sampling_rate}.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req loadRequest
	if err := httputil.DecodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	wave, err := s.waveformFrom(req.ecgRequest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := "inline"
	if req.Name != "" {
		name = security.SafeName(req.Name)
	}
	if err := sess.Load(name, wave); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.persistRecording(r.Context(), sess.ID, name, wave)
	httputil.WriteJSON(w, http.StatusOK, sess.Info())
}

// PlaybackRequest changes playback parameters and then applies Action.
type PlaybackRequest struct {
	Action        string   `json:"action,omitempty"` // play, pause, stop, seek or reset
	Time          *float64 `json:"time,omitempty"`
	WindowSeconds *float64 `json:"window_seconds,omitempty"`
	StepSeconds   *float64 `json:"step_seconds,omitempty"`
	SpeedMillis   *int64   `json:"speed_ms,omitempty"`
	Loop          string   `json:"loop,omitempty"` // window or full
}

func (p PlaybackRequest) validate() error {
	positive := func(name string, v *float64) error {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive: %w", name, waveform.ErrInvalidInput)
		}
		return nil
	}
	if err := positive("window_seconds", p.WindowSeconds); err != nil {
		return err
	}
	if err := positive("step_seconds", p.StepSeconds); err != nil {
		return err
	}
	if p.SpeedMillis != nil && *p.SpeedMillis <= 0 {
		return fmt.Errorf("speed_ms must be positive: %w", waveform.ErrInvalidInput)
	}
	switch p.Loop {
	case "", playback.LoopWindow.String(), playback.LoopFull.String():
	default:
		return fmt.Errorf("unknown loop mode %q: %w", p.Loop, waveform.ErrInvalidInput)
	}
	switch p.Action {
	case "", "play", "pause", "stop", "reset":
	case "seek":
		if p.Time == nil {
			return fmt.Errorf("seek requires time: %w", waveform.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown playback action %q: %w", p.Action, waveform.ErrInvalidInput)
	}
	return nil
}

func (s *Server) playbackSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req PlaybackRequest
	if err := httputil.DecodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Action == "play" && sess.Waveform() == nil {
		s.writeError(w, r, session.ErrNoWaveform)
		return
	}

	p := sess.Player()
	if req.WindowSeconds != nil {
		p.SetWindow(*req.WindowSeconds)
	}
	if req.StepSeconds != nil {
		p.SetStep(*req.StepSeconds)
	}
	if req.SpeedMillis != nil {
		p.SetSpeed(time.Duration(*req.SpeedMillis) * time.Millisecond)
	}
	switch req.Loop {
	case playback.LoopWindow.String():
		p.SetLoopMode(playback.LoopWindow)
	case playback.LoopFull.String():
		p.SetLoopMode(playback.LoopFull)
	}

	switch req.Action {
	case "play":
		p.Play()
	case "pause":
		p.Pause()
	case "stop":
		p.Stop()
	case "seek":
		p.Seek(*req.Time)
	case "reset":
		p.Seek(0)
	default:
		sess.Refresh()
	}
	httputil.WriteJSON(w, http.StatusOK, p.State())
}

// ViewRequest sets the visualization. Config uses the view wire form; a nil
// Leads keeps the current continuous-mode selection.
type ViewRequest struct {
	Config json.RawMessage `json:"config,omitempty"`
	Leads  []int           `json:"leads,omitempty"`
}

func (s *Server) viewSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req ViewRequest
	if err := httputil.DecodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Leads != nil {
		for _, l := range req.Leads {
			if l < 0 || l >= waveform.LeadCount {
				s.writeError(w, r, fmt.Errorf("lead %d out of range: %w", l, waveform.ErrInvalidInput))
				return
			}
		}
	}
	if len(req.Config) > 0 {
		cfg, err := view.DecodeConfig(req.Config)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := sess.SetView(cfg); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.Leads != nil {
		sess.SelectLeads(view.NewLeadSet(req.Leads...))
	}
	httputil.WriteJSON(w, http.StatusOK, sess.Frame())
}

func (s *Server) frameSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.Frame())
}

func (s *Server) analyzeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	rep, err := sess.Analyze()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.persistRun(r.Context(), sess.ID, rep)
	httputil.WriteJSON(w, http.StatusOK, rep)
}

func (s *Server) classifySession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	wave := sess.Waveform()
	if wave == nil {
		s.writeError(w, r, session.ErrNoWaveform)
		return
	}
	c, err := s.classify(r.Context(), wave)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.SetClassification(c)
	s.persistClassification(r.Context(), sess.ID, c)
	writeRaw(w, c.Raw)
}

// chartSession renders the current frame as an echarts page.
func (s *Server) chartSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	f := sess.Frame()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chart.Render(w, f.View, chart.Options{AssetsHost: s.chartHost, Theme: r.URL.Query().Get("theme")}); err != nil {
		logger.Printf("render chart for %s: %v", sess.ID, err)
	}
}
