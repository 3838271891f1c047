package view

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/ecgscope/internal/waveform"
)

// envelope is the wire form of a Config: the mode plus the parameters of
// that mode under its own key, e.g.
//
//	{"mode": "polar", "polar": {"lead": 1, "mode": "rolling"}}
type envelope struct {
	Mode       Mode              `json:"mode"`
	Chunk      *ChunkConfig      `json:"chunk,omitempty"`
	Polar      *PolarConfig      `json:"polar,omitempty"`
	Recurrence *RecurrenceConfig `json:"recurrence,omitempty"`
}

// DecodeConfig parses the wire form of a Config. Missing parameter objects
// decode as zero values and are left for Validate to reject.
func DecodeConfig(data []byte) (Config, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode view config: %v: %w", err, waveform.ErrInvalidInput)
	}
	switch env.Mode {
	case ModeContinuous:
		return ContinuousConfig{}, nil
	case ModeChunk:
		if env.Chunk == nil {
			return ChunkConfig{}, nil
		}
		return *env.Chunk, nil
	case ModePolar:
		if env.Polar == nil {
			return PolarConfig{}, nil
		}
		return *env.Polar, nil
	case ModeRecurrence:
		if env.Recurrence == nil {
			return RecurrenceConfig{}, nil
		}
		return *env.Recurrence, nil
	default:
		return nil, fmt.Errorf("unknown view mode %q: %w", env.Mode, waveform.ErrInvalidInput)
	}
}

// EncodeConfig returns the wire form of cfg.
func EncodeConfig(cfg Config) ([]byte, error) {
	env := envelope{}
	switch c := cfg.(type) {
	case ContinuousConfig:
		env.Mode = ModeContinuous
	case ChunkConfig:
		env.Mode, env.Chunk = ModeChunk, &c
	case PolarConfig:
		env.Mode, env.Polar = ModePolar, &c
	case RecurrenceConfig:
		env.Mode, env.Recurrence = ModeRecurrence, &c
	default:
		return nil, fmt.Errorf("unknown view config %T: %w", cfg, waveform.ErrInvalidInput)
	}
	return json.Marshal(env)
}
