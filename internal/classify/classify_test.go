package classify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/ecgscope/internal/ecgclient"
	"github.com/banshee-data/ecgscope/internal/monitoring"
	"github.com/banshee-data/ecgscope/internal/testutil"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

func init() {
	monitoring.SetLogger(nil)
}

func conditions(preds []ecgclient.Prediction) []string {
	out := make([]string, len(preds))
	for i, p := range preds {
		out[i] = p.Condition
	}
	return out
}

func TestRules(t *testing.T) {
	tests := []struct {
		name     string
		f        Features
		order    []string
		top      ecgclient.Prediction
		abnormal bool
	}{
		{
			name:  "normal rate, low variability",
			f:     Features{HeartRate: 72, HRVms: 20},
			order: []string{NormalSinusRhythm, SinusTachycardia, SinusBradycardia, OtherAbnormalities, AtrialFibrillation},
			top:   ecgclient.Prediction{Condition: NormalSinusRhythm, Probability: 0.85, Confidence: "High"},
		},
		{
			name:  "normal rate, high variability",
			f:     Features{HeartRate: 80, HRVms: 150},
			order: []string{NormalSinusRhythm, AtrialFibrillation, SinusTachycardia, SinusBradycardia, OtherAbnormalities},
			top:   ecgclient.Prediction{Condition: NormalSinusRhythm, Probability: 0.7, Confidence: "Medium"},
		},
		{
			name:     "tachycardia",
			f:        Features{HeartRate: 130, HRVms: 10},
			order:    []string{SinusTachycardia, NormalSinusRhythm, SinusBradycardia, OtherAbnormalities, AtrialFibrillation},
			top:      ecgclient.Prediction{Condition: SinusTachycardia, Probability: 0.6, Confidence: "High"},
			abnormal: true,
		},
		{
			name:     "bradycardia",
			f:        Features{HeartRate: 45, HRVms: 10},
			order:    []string{SinusBradycardia, NormalSinusRhythm, SinusTachycardia, OtherAbnormalities, AtrialFibrillation},
			top:      ecgclient.Prediction{Condition: SinusBradycardia, Probability: 0.6, Confidence: "High"},
			abnormal: true,
		},
		{
			name:     "no beats",
			f:        Features{},
			order:    []string{SinusBradycardia, NormalSinusRhythm, SinusTachycardia, OtherAbnormalities, AtrialFibrillation},
			top:      ecgclient.Prediction{Condition: SinusBradycardia, Probability: 0.6, Confidence: "High"},
			abnormal: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Rules(tt.f)
			if diff := cmp.Diff(tt.order, conditions(res.Predictions)); diff != "" {
				t.Errorf("prediction order mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.top, res.Predictions[0]); diff != "" {
				t.Errorf("top prediction mismatch (-want +got):\n%s", diff)
			}
			if res.PrimaryDiagnosis != tt.top.Condition {
				t.Errorf("PrimaryDiagnosis = %q, want %q", res.PrimaryDiagnosis, tt.top.Condition)
			}
			if res.IsAbnormal != tt.abnormal {
				t.Errorf("IsAbnormal = %v, want %v", res.IsAbnormal, tt.abnormal)
			}
			if res.ModelUsed {
				t.Error("ModelUsed = true, want false")
			}
			if res.Features != tt.f {
				t.Errorf("Features = %+v, want %+v", res.Features, tt.f)
			}
		})
	}
}

func TestRules_RateBoundaries(t *testing.T) {
	tests := []struct {
		hr      int
		primary string
		prob    float64
	}{
		{60, NormalSinusRhythm, 0.85},
		{100, NormalSinusRhythm, 0.85},
		{101, SinusTachycardia, 0.6},
		{59, SinusBradycardia, 0.6},
	}
	for _, tt := range tests {
		res := Rules(Features{HeartRate: tt.hr})
		if res.PrimaryDiagnosis != tt.primary || res.Predictions[0].Probability != tt.prob {
			t.Errorf("HR %d: got %q %.2f, want %q %.2f",
				tt.hr, res.PrimaryDiagnosis, res.Predictions[0].Probability, tt.primary, tt.prob)
		}
	}
}

func TestClassifier_Classify(t *testing.T) {
	got, err := New(nil).Classify(context.Background(), testutil.SpikeRecording(t, 100, 1000, 50, 100))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.PrimaryDiagnosis != NormalSinusRhythm || got.IsAbnormal {
		t.Errorf("got %q abnormal=%v, want %q normal", got.PrimaryDiagnosis, got.IsAbnormal, NormalSinusRhythm)
	}
	if string(got.ModelUsed) != "false" {
		t.Errorf("ModelUsed = %s, want false", got.ModelUsed)
	}

	var body Result
	if err := json.Unmarshal(got.Raw, &body); err != nil {
		t.Fatalf("decode raw reply: %v", err)
	}
	if want := (Features{HeartRate: 60, HRVms: 0, RRms: 1000}); body.Features != want {
		t.Errorf("Features = %+v, want %+v", body.Features, want)
	}
	if diff := cmp.Diff(got.Predictions, body.Predictions); diff != "" {
		t.Errorf("raw predictions differ (-typed +raw):\n%s", diff)
	}
}

func TestClassifier_Bradycardia(t *testing.T) {
	got, err := New(nil).Classify(context.Background(), testutil.SpikeRecording(t, 100, 1000, 50, 150))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.PrimaryDiagnosis != SinusBradycardia || !got.IsAbnormal {
		t.Errorf("got %q abnormal=%v, want %q abnormal", got.PrimaryDiagnosis, got.IsAbnormal, SinusBradycardia)
	}
}

func TestClassifier_Errors(t *testing.T) {
	c := New(nil)

	if _, err := c.Classify(context.Background(), nil); !errors.Is(err, waveform.ErrInvalidInput) {
		t.Errorf("nil waveform: %v, want ErrInvalidInput", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Classify(ctx, testutil.SpikeRecording(t, 100, 1000, 50, 100)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: %v, want context.Canceled", err)
	}
}
