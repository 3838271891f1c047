package view

import (
	"errors"
	"slices"
	"testing"

	"github.com/banshee-data/ecgscope/internal/waveform"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"continuous", ContinuousConfig{}, true},
		{"chunk ok", ChunkConfig{Lead: 1, ChunkSize: 100, Display: ChunkOverlay}, true},
		{"chunk zero size", ChunkConfig{Lead: 1, ChunkSize: 0, Display: ChunkOverlay}, false},
		{"chunk bad display", ChunkConfig{Lead: 1, ChunkSize: 10, Display: "stacked"}, false},
		{"chunk bad lead", ChunkConfig{Lead: 12, ChunkSize: 10, Display: ChunkDifference}, false},
		{"polar ok", PolarConfig{Lead: 0, Mode: PolarCumulative}, true},
		{"polar bad mode", PolarConfig{Lead: 0, Mode: "spiral"}, false},
		{"polar negative window", PolarConfig{Lead: 0, Mode: PolarRolling, WindowSize: -1}, false},
		{"recurrence ok", RecurrenceConfig{LeadX: 0, LeadY: 11, Mode: RecurrenceDensity}, true},
		{"recurrence self", RecurrenceConfig{LeadX: 3, LeadY: 3, Mode: RecurrenceScatter}, true},
		{"recurrence bad lead", RecurrenceConfig{LeadX: -1, LeadY: 0, Mode: RecurrenceScatter}, false},
		{"recurrence bad mode", RecurrenceConfig{LeadX: 0, LeadY: 1, Mode: "hexbin"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(waveform.LeadCount)
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, waveform.ErrInvalidInput) {
				t.Errorf("Validate() = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLeadSet(t *testing.T) {
	s := NewLeadSet(5, 1, 5, 3)
	if got := s.Sorted(); !slices.Equal(got, []int{1, 3, 5}) {
		t.Errorf("Sorted() = %v, want [1 3 5]", got)
	}
	if !s.Has(3) || s.Has(2) {
		t.Errorf("Has(3)=%v Has(2)=%v, want true false", s.Has(3), s.Has(2))
	}
	if n := len(AllLeads(12)); n != 12 {
		t.Errorf("len(AllLeads(12)) = %d, want 12", n)
	}
}

func TestConfigViewMode(t *testing.T) {
	polar := PolarConfig{Lead: 1, Mode: PolarRolling}
	rec := RecurrenceConfig{LeadX: 0, LeadY: 1, Mode: RecurrenceDensity}

	tests := []struct {
		cfg  Config
		want Mode
	}{
		{ContinuousConfig{}, ModeContinuous},
		{ChunkConfig{}, ModeChunk},
		{polar, ModePolar},
		{rec, ModeRecurrence},
	}
	for _, tt := range tests {
		if got := tt.cfg.ViewMode(); got != tt.want {
			t.Errorf("%T.ViewMode() = %q, want %q", tt.cfg, got, tt.want)
		}
	}
	if polar.Mode != PolarRolling {
		t.Errorf("polar.Mode = %q, want %q", polar.Mode, PolarRolling)
	}
	if rec.Mode != RecurrenceDensity {
		t.Errorf("rec.Mode = %q, want %q", rec.Mode, RecurrenceDensity)
	}
}
