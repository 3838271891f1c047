package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/ecgscope/internal/db"
	"github.com/banshee-data/ecgscope/internal/ecgclient"
	"github.com/banshee-data/ecgscope/internal/httputil"
	"github.com/banshee-data/ecgscope/internal/security"
	"github.com/banshee-data/ecgscope/internal/session"
	"github.com/banshee-data/ecgscope/internal/version"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

// RecordingData is the parsed-recording payload of an upload reply.
type RecordingData struct {
	Leads          [][]float64 `json:"leads"`
	Duration       float64     `json:"duration"`
	SamplingRate   int         `json:"sampling_rate"`
	LeadNames      []string    `json:"lead_names"`
	SamplesPerLead int         `json:"samples_per_lead"`
}

func recordingData(w *waveform.Waveform) RecordingData {
	return RecordingData{
		Leads:          w.Leads(),
		Duration:       w.Duration(),
		SamplingRate:   w.Rate(),
		LeadNames:      w.Names(),
		SamplesPerLead: w.Len(),
	}
}

// BasicAnalysis is the summary returned with an upload.
type BasicAnalysis struct {
	HeartRate     int            `json:"heart_rate"`
	RRms          int            `json:"rr_interval"`
	HRVms         int            `json:"hrv"`
	QTms          int            `json:"qt_interval"`
	SignalQuality int            `json:"signal_quality"`
	TotalBeats    int            `json:"total_beats"`
	AbnormalBeats int            `json:"abnormal_beats"`
	PQRSTPoints   map[string]int `json:"pqrst_points"`
}

func basicAnalysis(rep *session.Report) BasicAnalysis {
	a := rep.Analysis
	return BasicAnalysis{
		HeartRate:     rep.HeartRate,
		RRms:          rep.RRms,
		HRVms:         rep.HRVms,
		QTms:          rep.QTms,
		SignalQuality: rep.SignalQuality,
		TotalBeats:    rep.TotalBeats,
		AbnormalBeats: rep.AbnormalBeats,
		PQRSTPoints: map[string]int{
			"P": len(a.P), "Q": len(a.Q), "R": len(a.R), "S": len(a.S), "T": len(a.T),
		},
	}
}

// UploadResponse is the reply to POST /api/upload-ecg.
type UploadResponse struct {
	Message   string        `json:"message"`
	SessionID string        `json:"session_id"`
	Data      RecordingData `json:"data"`
	Analysis  BasicAnalysis `json:"analysis"`
}

// ecgRequest is the body of analyze and classify requests.
type ecgRequest struct {
	ECGData      [][]float64 `json:"ecg_data"`
	SamplingRate int         `json:"sampling_rate"`
}

func (s *Server) waveformFrom(req ecgRequest) (*waveform.Waveform, error) {
	if len(req.ECGData) == 0 {
		return nil, fmt.Errorf("no ECG data provided: %w", waveform.ErrInvalidInput)
	}
	rate := req.SamplingRate
	if rate == 0 {
		rate = s.cfg.GetDefaultSamplingRate()
	}
	return waveform.New(rate, req.ECGData)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	method := "remote"
	if !s.classifier.Configured() {
		method = "rule_based"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":                "healthy",
		"message":               "ECG Analyzer API is running!",
		"version":               version.Current(),
		"classification_method": method,
		"persistence":           s.store != nil,
		"sessions":              s.sessions.Len(),
		"endpoints": map[string]string{
			"upload_ecg":   "POST /api/upload-ecg",
			"analyze_ecg":  "POST /api/analyze-ecg",
			"classify_ecg": "POST /api/classify-ecg",
			"sessions":     "GET /api/sessions",
			"recordings":   "GET /api/recordings",
		},
	})
}

var allowedExtensions = map[string]bool{".csv": true, ".txt": true}

// handleUpload parses a CSV/TXT recording, opens a session for it and
// returns the recording with a first analysis.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.GetMaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	file, header, err := r.FormFile("ecg_file")
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid file type. Please upload CSV or TXT.")
		return
	}

	rate := s.cfg.GetDefaultSamplingRate()
	if v := r.FormValue("sampling_rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid sampling_rate %q", v))
			return
		}
		rate = n
	}

	wave, err := waveform.ParseCSV(file, rate)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse ECG file: %v", err))
		return
	}

	name := security.SafeName(header.Filename)
	sess := s.sessions.Create()
	if err := sess.Load(name, wave); err != nil {
		s.sessions.Delete(sess.ID)
		s.writeError(w, r, err)
		return
	}
	rep, err := sess.Analyze()
	if err != nil {
		s.sessions.Delete(sess.ID)
		s.writeError(w, r, err)
		return
	}
	s.persistRecording(r.Context(), sess.ID, name, wave)
	s.persistRun(r.Context(), sess.ID, rep)

	logger.Printf("upload %s: %d Hz, %d samples, %d bpm, quality %d%%",
		name, wave.Rate(), wave.Len(), rep.HeartRate, rep.SignalQuality)

	httputil.WriteJSON(w, http.StatusOK, UploadResponse{
		Message:   "ECG file processed successfully!",
		SessionID: sess.ID,
		Data:      recordingData(wave),
		Analysis:  basicAnalysis(rep),
	})
}

// handleAnalyze runs a stateless analysis of {ecg_data, sampling_rate}.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req ecgRequest
	if err := httputil.DecodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	wave, err := s.waveformFrom(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, _, err := session.Analyze(wave, s.cfg, s.clock.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rep)
}

// classify labels a 12-lead recording with the remote classifier when one is
// configured, else with the built-in rules.
func (s *Server) classify(ctx context.Context, wave *waveform.Waveform) (*ecgclient.Classification, error) {
	if wave.LeadCount() != waveform.LeadCount {
		return nil, fmt.Errorf("expected %d leads of ECG data, got %d: %w", waveform.LeadCount, wave.LeadCount(), waveform.ErrInvalidInput)
	}
	if s.classifier.Configured() {
		return s.classifier.Classify(ctx, wave)
	}
	return s.rules.Classify(ctx, wave)
}

// handleClassify labels {ecg_data, sampling_rate}. A remote reply is relayed
// unchanged.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ecgRequest
	if err := httputil.DecodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	wave, err := s.waveformFrom(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.classify(r.Context(), wave)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, c.Raw)
}

func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// Persistence is best effort: failures are logged, never surfaced.

func (s *Server) persistRecording(ctx context.Context, id, name string, wave *waveform.Waveform) {
	if s.store == nil {
		return
	}
	err := s.store.InsertRecording(ctx, &db.Recording{
		ID:             id,
		Name:           name,
		SamplingRate:   wave.Rate(),
		LeadCount:      wave.LeadCount(),
		SamplesPerLead: wave.Len(),
		Duration:       wave.Duration(),
		CreatedAt:      s.clock.Now(),
	})
	if err != nil {
		logger.Printf("persist recording %s: %v", id, err)
	}
}

func (s *Server) persistRun(ctx context.Context, recordingID string, rep *session.Report) {
	if s.store == nil {
		return
	}
	params, _ := json.Marshal(map[string]any{
		"threshold_mv":         s.cfg.GetThresholdMV(),
		"refractory_seconds":   s.cfg.GetRefractorySeconds(),
		"neighborhood_samples": s.cfg.GetNeighborhoodSamples(),
	})
	err := s.store.InsertAnalysisRun(ctx, &db.AnalysisRun{
		RunID:         rep.RunID,
		RecordingID:   recordingID,
		Lead:          rep.Lead,
		TotalBeats:    rep.TotalBeats,
		HeartRate:     rep.HeartRate,
		RRms:          rep.RRms,
		HRVms:         rep.HRVms,
		QTms:          rep.QTms,
		AbnormalBeats: rep.AbnormalBeats,
		SignalQuality: rep.SignalQuality,
		ParamsJSON:    string(params),
		CreatedAt:     rep.AnalyzedAt,
	})
	if err != nil {
		logger.Printf("persist run %s: %v", rep.RunID, err)
	}
}

func (s *Server) persistClassification(ctx context.Context, recordingID string, c *ecgclient.Classification) {
	if s.store == nil {
		return
	}
	err := s.store.InsertClassification(ctx, &db.Classification{
		ID:               uuid.NewString(),
		RecordingID:      recordingID,
		PrimaryDiagnosis: c.PrimaryDiagnosis,
		IsAbnormal:       c.IsAbnormal,
		ResultJSON:       string(c.Raw),
		CreatedAt:        s.clock.Now(),
	})
	if err != nil {
		logger.Printf("persist classification for %s: %v", recordingID, err)
	}
}
