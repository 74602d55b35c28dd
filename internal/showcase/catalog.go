package showcase

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Preset is a named showcase configuration from the catalog file.
type Preset struct {
	Name                      string      `yaml:"name" json:"name"`
	PrimaryURL                string      `yaml:"primary_url" json:"primary_url"`
	SecondaryURL              string      `yaml:"secondary_url,omitempty" json:"secondary_url,omitempty"`
	StartPolicy               StartPolicy `yaml:"start_policy" json:"start_policy"`
	PipTransitionDelaySeconds float64     `yaml:"pip_transition_delay_seconds,omitempty" json:"pip_transition_delay_seconds,omitempty"`
	FullscreenSupported       bool        `yaml:"fullscreen_supported" json:"fullscreen_supported"`
}

// Props converts the preset into controller props.
func (p Preset) Props() Props {
	return Props{
		PrimarySourceURL:   p.PrimaryURL,
		SecondarySourceURL: p.SecondaryURL,
		StartPolicy:        p.StartPolicy,
		PipTransitionDelay: time.Duration(p.PipTransitionDelaySeconds * float64(time.Second)),
	}
}

// maxDelaySeconds keeps the converted time.Duration from overflowing.
var maxDelaySeconds = float64(math.MaxInt64) / float64(time.Second)

func (p Preset) validateDelay() error {
	d := p.PipTransitionDelaySeconds
	if math.IsNaN(d) || math.IsInf(d, 0) || d > maxDelaySeconds {
		return fmt.Errorf("pip_transition_delay_seconds must be finite, got %v", d)
	}
	if d < 0 {
		return fmt.Errorf("pip_transition_delay_seconds must be >= 0, got %v", d)
	}
	return nil
}

type catalogFile struct {
	Showcases []Preset `yaml:"showcases"`
}

// Catalog is the read-only set of presets a host may mount by name.
type Catalog struct {
	presets map[string]Preset
}

// NewCatalog builds a catalog from presets, validating each. Configuration
// hazards are logged but do not reject the preset.
func NewCatalog(presets []Preset, opts Options, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Catalog{presets: make(map[string]Preset, len(presets))}
	for i, p := range presets {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("showcase %d: name is required", i)
		}
		if _, dup := c.presets[name]; dup {
			return nil, fmt.Errorf("showcase %q: duplicate name", name)
		}
		if err := p.validateDelay(); err != nil {
			return nil, fmt.Errorf("showcase %q: %w", name, err)
		}
		props := p.Props()
		if err := props.Validate(); err != nil {
			return nil, fmt.Errorf("showcase %q: %w", name, err)
		}
		for _, h := range props.Hazards(opts) {
			log.Warn("showcase configuration hazard", slog.String("showcase", name), slog.String("hazard", h))
		}
		p.Name = name
		c.presets[name] = p
	}
	return c, nil
}

// ParseCatalog decodes a catalog document. Unknown fields are rejected.
func ParseCatalog(r io.Reader, opts Options, log *slog.Logger) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return NewCatalog(nil, opts, log)
		}
		return nil, fmt.Errorf("parse showcase catalog: %w", err)
	}
	return NewCatalog(f.Showcases, opts, log)
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string, opts Options, log *slog.Logger) (*Catalog, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported catalog format: %s (only YAML supported)", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(bytes.NewReader(data), opts, log)
}

// Lookup returns the preset with the given name.
func (c *Catalog) Lookup(name string) (Preset, error) {
	p, ok := c.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return p, nil
}

// Names returns the preset names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.presets))
	for name := range c.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets returns every preset sorted by name.
func (c *Catalog) Presets() []Preset {
	out := make([]Preset, 0, len(c.presets))
	for _, name := range c.Names() {
		out = append(out, c.presets[name])
	}
	return out
}
