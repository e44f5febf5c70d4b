package reflow

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SolderType selects a profile. The zero value is leaded.
type SolderType uint8

const (
	Leaded SolderType = iota
	LeadFree
)

func (s SolderType) String() string {
	if s == LeadFree {
		return "lead-free"
	}
	return "leaded"
}

func (s SolderType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Toggle flips between the two solder types.
func (s SolderType) Toggle() SolderType {
	if s == Leaded {
		return LeadFree
	}
	return Leaded
}

// Profile holds the set-points and timing of one solder alloy. Values are
// copied into the sequencer at run start and never mutated.
type Profile struct {
	Label           string        `yaml:"label"`
	SoakMin         float64       `yaml:"soak_min"`
	SoakMax         float64       `yaml:"soak_max"`
	SoakStep        float64       `yaml:"soak_step"`
	SoakMicroPeriod time.Duration `yaml:"soak_micro_period"`
	ReflowMax       float64       `yaml:"reflow_max"`
	CoolMin         float64       `yaml:"cool_min"`
	SamplingPeriod  time.Duration `yaml:"sampling_period"`
}

// ProfileTable maps the solder selector to its profile.
type ProfileTable struct {
	Leaded   Profile `yaml:"leaded"`
	LeadFree Profile `yaml:"lead_free"`
}

// DefaultProfiles returns the built-in table.
func DefaultProfiles() ProfileTable {
	return ProfileTable{
		Leaded: Profile{
			Label:           "leaded",
			SoakMin:         135,
			SoakMax:         180,
			SoakStep:        6,
			SoakMicroPeriod: 10 * time.Second,
			ReflowMax:       225,
			CoolMin:         50,
			SamplingPeriod:  time.Second,
		},
		LeadFree: Profile{
			Label:           "lead-free",
			SoakMin:         150,
			SoakMax:         200,
			SoakStep:        5,
			SoakMicroPeriod: 9 * time.Second,
			ReflowMax:       250,
			CoolMin:         50,
			SamplingPeriod:  time.Second,
		},
	}
}

// Select returns the profile for the given solder type.
func (t ProfileTable) Select(s SolderType) Profile {
	if s == LeadFree {
		return t.LeadFree
	}
	return t.Leaded
}

// Validate checks the ordering constraints a run relies on.
func (p Profile) Validate() error {
	switch {
	case p.SoakMin <= 0:
		return fmt.Errorf("profile %q: soak_min must be positive", p.Label)
	case p.SoakMax <= p.SoakMin:
		return fmt.Errorf("profile %q: soak_max %.1f must exceed soak_min %.1f", p.Label, p.SoakMax, p.SoakMin)
	case p.ReflowMax <= p.SoakMax:
		return fmt.Errorf("profile %q: reflow_max %.1f must exceed soak_max %.1f", p.Label, p.ReflowMax, p.SoakMax)
	case p.SoakStep <= 0:
		return fmt.Errorf("profile %q: soak_step must be positive", p.Label)
	case p.SoakMicroPeriod <= 0 || p.SamplingPeriod <= 0:
		return fmt.Errorf("profile %q: periods must be positive", p.Label)
	case p.CoolMin >= p.SoakMin:
		return fmt.Errorf("profile %q: cool_min %.1f must be below soak_min", p.Label, p.CoolMin)
	}
	return nil
}

// Validate checks both profiles.
func (t ProfileTable) Validate() error {
	if err := t.Leaded.Validate(); err != nil {
		return err
	}
	return t.LeadFree.Validate()
}

// LoadProfiles reads a YAML profile table from path. A missing file yields
// the defaults; fields absent from the file keep their default values.
func LoadProfiles(path string) (ProfileTable, error) {
	if path == "" {
		return DefaultProfiles(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultProfiles(), nil
		}
		return ProfileTable{}, fmt.Errorf("open profiles %q: %w", path, err)
	}
	defer f.Close()
	return DecodeProfiles(f)
}

// DecodeProfiles decodes a YAML profile table over the defaults.
func DecodeProfiles(r io.Reader) (ProfileTable, error) {
	t := DefaultProfiles()
	if err := yaml.NewDecoder(r).Decode(&t); err != nil && err != io.EOF {
		return ProfileTable{}, fmt.Errorf("decode profiles: %w", err)
	}
	if err := t.Validate(); err != nil {
		return ProfileTable{}, err
	}
	return t, nil
}

// EncodeProfiles writes the table as YAML.
func EncodeProfiles(w io.Writer, t ProfileTable) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	return enc.Close()
}

// Tuning is a PID constant triple.
type Tuning struct {
	Kp float64 `mapstructure:"kp" yaml:"kp"`
	Ki float64 `mapstructure:"ki" yaml:"ki"`
	Kd float64 `mapstructure:"kd" yaml:"kd"`
}

// Tunings holds the per-phase constants.
type Tunings struct {
	Preheat Tuning `mapstructure:"preheat" yaml:"preheat"`
	Soak    Tuning `mapstructure:"soak" yaml:"soak"`
	Reflow  Tuning `mapstructure:"reflow" yaml:"reflow"`
}

// DefaultTunings returns the built-in PID constants.
func DefaultTunings() Tunings {
	return Tunings{
		Preheat: Tuning{Kp: 100, Ki: 0.025, Kd: 20},
		Soak:    Tuning{Kp: 300, Ki: 0.05, Kd: 250},
		Reflow:  Tuning{Kp: 300, Ki: 0.05, Kd: 350},
	}
}
