// Package config loads and saves graphlink settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-hclog"

	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/layout"
)

// Curve styles for link segments.
const (
	CurveSpline   = "spline"
	CurveStraight = "straight"
)

// Config holds persistent settings shared by the CLI and the editor.
type Config struct {
	Layout LayoutConfig `yaml:"layout"`
	Graph  GraphConfig  `yaml:"graph"`
	Log    LogConfig    `yaml:"log"`
	// Actor is stamped on every layout operation. Empty means a generated id.
	Actor string `yaml:"actor,omitempty"`
}

// LayoutConfig holds hit-test tolerances.
type LayoutConfig struct {
	SlotSize            float64 `yaml:"slot_size" validate:"gt=0"`
	SlotHitTolerance    float64 `yaml:"slot_hit_tolerance" validate:"gt=0"`
	RerouteRadius       float64 `yaml:"reroute_radius" validate:"gt=0"`
	RerouteSearchWindow float64 `yaml:"reroute_search_window" validate:"gtefield=RerouteRadius"`
	LinkStrokeWidth     float64 `yaml:"link_stroke_width" validate:"gt=0"`
	LinkHitPadding      float64 `yaml:"link_hit_padding" validate:"gte=0"`
	Curve               string  `yaml:"curve" validate:"oneof=spline straight"`
}

// GraphConfig holds slot metrics and the slot-type rule.
type GraphConfig struct {
	TitleHeight  float64 `yaml:"title_height" validate:"gte=0"`
	SlotHeight   float64 `yaml:"slot_height" validate:"gt=0"`
	SlotCenter   float64 `yaml:"slot_center" validate:"gte=0,lte=1"`
	SlotInset    float64 `yaml:"slot_inset" validate:"gte=0"`
	SlotHitWidth float64 `yaml:"slot_hit_width" validate:"gt=0"`
	WidgetHeight float64 `yaml:"widget_height" validate:"gt=0"`
	// TypeRule is an expression over from and to. Empty uses the default
	// wildcard matching.
	TypeRule string `yaml:"type_rule,omitempty"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error off"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file,omitempty"`
}

// Default returns the built-in settings for a pixel canvas.
func Default() Config {
	lc := layout.DefaultConfig()
	m := graph.DefaultMetrics()
	return Config{
		Layout: LayoutConfig{
			SlotSize:            lc.SlotSize,
			SlotHitTolerance:    lc.SlotHitTolerance,
			RerouteRadius:       lc.RerouteRadius,
			RerouteSearchWindow: lc.RerouteSearchWindow,
			LinkStrokeWidth:     lc.LinkStrokeWidth,
			LinkHitPadding:      lc.LinkHitPadding,
			Curve:               CurveSpline,
		},
		Graph: GraphConfig{
			TitleHeight:  m.TitleHeight,
			SlotHeight:   m.SlotHeight,
			SlotCenter:   m.SlotCenter,
			SlotInset:    m.SlotInset,
			SlotHitWidth: m.SlotHitWidth,
			WidgetHeight: m.WidgetHeight,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Path returns the default config file location.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".graphlink.yaml"
	}
	return filepath.Join(home, ".graphlink.yaml")
}

// Load reads path over the defaults. A missing or empty file yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, cfg)
}

// Parse decodes YAML over base and validates the result. A document with
// no content, such as an empty or comment-only file, leaves base as is.
func Parse(data []byte, base Config) (Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("decode config: %w", err)
	}
	if doc == nil {
		return base, base.Validate()
	}
	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(data), yaml.Validator(validator.New()))
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	content := append([]byte("# graphlink configuration\n"), data...)
	return os.WriteFile(path, content, 0644)
}

// Validate checks field constraints and compiles the type rule.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Matcher(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// StoreConfig returns the layout store settings.
func (c Config) StoreConfig() layout.Config {
	return layout.Config{
		NodeTitleHeight:     c.Graph.TitleHeight,
		SlotSize:            c.Layout.SlotSize,
		SlotHitTolerance:    c.Layout.SlotHitTolerance,
		RerouteRadius:       c.Layout.RerouteRadius,
		RerouteSearchWindow: c.Layout.RerouteSearchWindow,
		LinkStrokeWidth:     c.Layout.LinkStrokeWidth,
		LinkHitPadding:      c.Layout.LinkHitPadding,
		StraightLinks:       c.Layout.Curve == CurveStraight,
	}
}

// Metrics returns the graph slot metrics.
func (c Config) Metrics() graph.Metrics {
	g := c.Graph
	return graph.Metrics{
		TitleHeight:  g.TitleHeight,
		SlotHeight:   g.SlotHeight,
		SlotCenter:   g.SlotCenter,
		SlotInset:    g.SlotInset,
		SlotHitWidth: g.SlotHitWidth,
		WidgetHeight: g.WidgetHeight,
	}
}

// Matcher returns the slot-type matcher for the configured rule.
func (c Config) Matcher() (graph.TypeMatcher, error) {
	if c.Graph.TypeRule == "" {
		return graph.DefaultMatcher{}, nil
	}
	m, err := graph.NewExprMatcher(c.Graph.TypeRule)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GraphOptions returns the graph options for these settings.
func (c Config) GraphOptions() ([]graph.Option, error) {
	m, err := c.Matcher()
	if err != nil {
		return nil, err
	}
	return []graph.Option{graph.WithMetrics(c.Metrics()), graph.WithTypeMatcher(m)}, nil
}

// NewLogger builds the root logger. Output goes to the configured file when
// set, else to w. The returned closer releases the file.
func (c LogConfig) NewLogger(name string, w io.Writer) (hclog.Logger, io.Closer, error) {
	var closer io.Closer = nopCloser{}
	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(c.Level),
		Output:     w,
		JSONFormat: c.JSON,
	}), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
