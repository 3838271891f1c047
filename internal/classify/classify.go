// Package classify labels a recording from its heart rate and RR variability
// with a fixed rule set. It stands in for the remote model when none is
// configured.
package classify

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/banshee-data/ecgscope/internal/beats"
	"github.com/banshee-data/ecgscope/internal/config"
	"github.com/banshee-data/ecgscope/internal/ecgclient"
	"github.com/banshee-data/ecgscope/internal/monitoring"
	"github.com/banshee-data/ecgscope/internal/session"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

const (
	NormalSinusRhythm  = "Normal Sinus Rhythm"
	SinusTachycardia   = "Sinus Tachycardia"
	SinusBradycardia   = "Sinus Bradycardia"
	AtrialFibrillation = "Atrial Fibrillation"
	OtherAbnormalities = "Other Abnormalities"
)

var logger = monitoring.Component("classify")

// Features are the measurements the rules read.
type Features struct {
	HeartRate int `json:"heart_rate"`
	HRVms     int `json:"hrv"`
	RRms      int `json:"rr_interval"`
}

// Result has the remote classifier's reply shape plus the features used.
type Result struct {
	Predictions      []ecgclient.Prediction `json:"predictions"`
	PrimaryDiagnosis string                 `json:"primary_diagnosis"`
	IsAbnormal       bool                   `json:"is_abnormal"`
	ModelUsed        bool                   `json:"model_used"`
	Features         Features               `json:"features"`
}

// Rules ranks the five conditions for f, highest probability first. Ties keep
// their listed order.
func Rules(f Features) Result {
	hr := f.HeartRate

	normal := 0.7
	switch {
	case hr >= 60 && hr <= 100 && f.HRVms < 50:
		normal = 0.85
	case hr < 60 || hr > 100:
		normal = 0.5
	}
	tachy := 0.1
	if hr > 100 {
		tachy = 0.6
	}
	brady := 0.1
	if hr < 60 {
		brady = 0.6
	}
	afib := 0.05
	if f.HRVms > 100 {
		afib = 0.4
	}

	preds := []ecgclient.Prediction{
		{Condition: NormalSinusRhythm, Probability: normal, Confidence: level(normal, 0.7, "High", "Medium")},
		{Condition: SinusTachycardia, Probability: tachy, Confidence: level(tachy, 0.5, "High", "Low")},
		{Condition: SinusBradycardia, Probability: brady, Confidence: level(brady, 0.5, "High", "Low")},
		{Condition: AtrialFibrillation, Probability: afib, Confidence: level(afib, 0.3, "Medium", "Low")},
		{Condition: OtherAbnormalities, Probability: 0.1, Confidence: "Low"},
	}
	slices.SortStableFunc(preds, func(a, b ecgclient.Prediction) int {
		return cmp.Compare(b.Probability, a.Probability)
	})

	return Result{
		Predictions:      preds,
		PrimaryDiagnosis: preds[0].Condition,
		IsAbnormal:       preds[0].Condition != NormalSinusRhythm,
		Features:         f,
	}
}

func level(p, above float64, high, low string) string {
	if p > above {
		return high
	}
	return low
}

// Classifier measures features with the analyzer's detection settings and
// applies Rules.
type Classifier struct {
	cfg *config.AnalyzerConfig
}

// New returns a rule-based classifier. A nil config uses built-in defaults.
func New(cfg *config.AnalyzerConfig) *Classifier {
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	return &Classifier{cfg: cfg}
}

// Features detects beats on the reference lead of w and summarises them.
func (c *Classifier) Features(w *waveform.Waveform) (Features, error) {
	if w == nil || w.Len() == 0 {
		return Features{}, fmt.Errorf("classify: %w", waveform.ErrInvalidInput)
	}
	lead := session.ReferenceLead(w, c.cfg.GetReferenceLead())
	a, err := beats.Detect(w, lead, beats.Options{
		Threshold:           beats.Threshold(c.cfg.GetThresholdMV()),
		RefractorySeconds:   c.cfg.GetRefractorySeconds(),
		NeighborhoodSamples: c.cfg.GetNeighborhoodSamples(),
	})
	if err != nil {
		return Features{}, fmt.Errorf("classify: %w", err)
	}
	st := a.Stats()
	return Features{HeartRate: st.HeartRate, HRVms: st.HRVms, RRms: st.RRms}, nil
}

// Classify labels w. The reply's Raw body is the encoded Result.
func (c *Classifier) Classify(ctx context.Context, w *waveform.Waveform) (*ecgclient.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := c.Features(w)
	if err != nil {
		return nil, err
	}
	res := Rules(f)
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode classification: %w", err)
	}
	logger.Printf("classified by rules: %q (hr=%d hrv=%dms)", res.PrimaryDiagnosis, f.HeartRate, f.HRVms)
	return &ecgclient.Classification{
		PrimaryDiagnosis: res.PrimaryDiagnosis,
		Predictions:      res.Predictions,
		IsAbnormal:       res.IsAbnormal,
		ModelUsed:        json.RawMessage("false"),
		Raw:              raw,
	}, nil
}
