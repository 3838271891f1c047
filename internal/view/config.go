package view

import (
	"fmt"
	"sort"

	"github.com/banshee-data/ecgscope/internal/waveform"
)

// Mode names a visualization family.
type Mode string

const (
	ModeContinuous Mode = "continuous"
	ModeChunk      Mode = "chunk"
	ModePolar      Mode = "polar"
	ModeRecurrence Mode = "recurrence"
)

// Config is the per-mode parameter set. Each mode has its own concrete type;
// the unexported method keeps the set closed.
type Config interface {
	ViewMode() Mode
	// Validate checks the parameters against a waveform with leadCount leads.
	Validate(leadCount int) error
	isConfig()
}

// ContinuousConfig renders the selected leads over the playback window. The
// window length itself lives in the playback state.
type ContinuousConfig struct{}

// ChunkDisplay selects overlay or difference rendering of chunks.
type ChunkDisplay string

const (
	ChunkOverlay    ChunkDisplay = "overlay"
	ChunkDifference ChunkDisplay = "difference"
)

// ChunkConfig partitions one lead into fixed-size chunks.
type ChunkConfig struct {
	Lead      int          `json:"lead"`
	ChunkSize int          `json:"chunk_size"`
	Display   ChunkDisplay `json:"display"`
}

// PolarMode selects the rolling window or the whole decimated lead.
type PolarMode string

const (
	PolarRolling    PolarMode = "rolling"
	PolarCumulative PolarMode = "cumulative"
)

// PolarConfig maps one lead to (angle, radius).
type PolarConfig struct {
	Lead int       `json:"lead"`
	Mode PolarMode `json:"mode"`
	// WindowSize is the rolling window in samples. Zero follows the
	// playback window.
	WindowSize int `json:"window_size"`
}

// RecurrenceMode selects paired scatter or 2-D density binning.
type RecurrenceMode string

const (
	RecurrenceScatter RecurrenceMode = "scatter"
	RecurrenceDensity RecurrenceMode = "density"
)

// DefaultDensityBins is the per-axis bin count for density mode.
const DefaultDensityBins = 50

// RecurrenceConfig pairs two leads sample by sample.
type RecurrenceConfig struct {
	LeadX    int            `json:"lead_x"`
	LeadY    int            `json:"lead_y"`
	Mode     RecurrenceMode `json:"mode"`
	Colormap string         `json:"colormap"`
	Bins     int            `json:"bins"`
}

func (ContinuousConfig) ViewMode() Mode { return ModeContinuous }
func (ChunkConfig) ViewMode() Mode      { return ModeChunk }
func (PolarConfig) ViewMode() Mode      { return ModePolar }
func (RecurrenceConfig) ViewMode() Mode { return ModeRecurrence }

func (ContinuousConfig) isConfig() {}
func (ChunkConfig) isConfig()      {}
func (PolarConfig) isConfig()      {}
func (RecurrenceConfig) isConfig() {}

func (ContinuousConfig) Validate(int) error { return nil }

func (c ChunkConfig) Validate(leadCount int) error {
	if err := checkLead(c.Lead, leadCount); err != nil {
		return err
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d: %w", c.ChunkSize, waveform.ErrInvalidInput)
	}
	if c.Display != ChunkOverlay && c.Display != ChunkDifference {
		return fmt.Errorf("unknown chunk display %q: %w", c.Display, waveform.ErrInvalidInput)
	}
	return nil
}

func (c PolarConfig) Validate(leadCount int) error {
	if err := checkLead(c.Lead, leadCount); err != nil {
		return err
	}
	if c.Mode != PolarRolling && c.Mode != PolarCumulative {
		return fmt.Errorf("unknown polar mode %q: %w", c.Mode, waveform.ErrInvalidInput)
	}
	if c.WindowSize < 0 {
		return fmt.Errorf("polar window must not be negative: %w", waveform.ErrInvalidInput)
	}
	return nil
}

func (c RecurrenceConfig) Validate(leadCount int) error {
	if err := checkLead(c.LeadX, leadCount); err != nil {
		return err
	}
	if err := checkLead(c.LeadY, leadCount); err != nil {
		return err
	}
	if c.Mode != RecurrenceScatter && c.Mode != RecurrenceDensity {
		return fmt.Errorf("unknown recurrence mode %q: %w", c.Mode, waveform.ErrInvalidInput)
	}
	if c.Bins < 0 {
		return fmt.Errorf("bins must not be negative: %w", waveform.ErrInvalidInput)
	}
	return nil
}

func checkLead(lead, leadCount int) error {
	if lead < 0 || lead >= leadCount {
		return fmt.Errorf("lead %d out of range [0,%d): %w", lead, leadCount, waveform.ErrInvalidInput)
	}
	return nil
}

// LeadSet is an unordered set of lead indices.
type LeadSet map[int]struct{}

// NewLeadSet builds a set from indices.
func NewLeadSet(leads ...int) LeadSet {
	s := make(LeadSet, len(leads))
	for _, l := range leads {
		s[l] = struct{}{}
	}
	return s
}

// AllLeads returns the set {0..n-1}.
func AllLeads(n int) LeadSet {
	s := make(LeadSet, n)
	for i := 0; i < n; i++ {
		s[i] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s LeadSet) Has(lead int) bool {
	_, ok := s[lead]
	return ok
}

// Sorted returns the members in ascending order.
func (s LeadSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}
