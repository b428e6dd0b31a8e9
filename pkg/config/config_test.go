package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/layout"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, layout.DefaultConfig(), cfg.StoreConfig())
	assert.Equal(t, graph.DefaultMetrics(), cfg.Metrics())

	m, err := cfg.Matcher()
	require.NoError(t, err)
	assert.IsType(t, graph.DefaultMatcher{}, m)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadCommentOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comments.yaml")
	require.NoError(t, os.WriteFile(path, []byte("# graphlink configuration\n\n# actor: alice\n"), 0644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	base := Default()
	base.Actor = "bob"
	cfg, err = Parse([]byte("---\n"), base)
	require.NoError(t, err)
	assert.Equal(t, base, cfg, "null document keeps the base")
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
layout:
  curve: straight
  link_stroke_width: 6
graph:
  type_rule: 'from == to || to == "ANY"'
log:
  level: debug
actor: alice
`)
	cfg, err := Parse(data, Default())
	require.NoError(t, err)

	assert.Equal(t, CurveStraight, cfg.Layout.Curve)
	assert.Equal(t, 6.0, cfg.Layout.LinkStrokeWidth)
	assert.Equal(t, Default().Layout.RerouteRadius, cfg.Layout.RerouteRadius, "unset fields keep defaults")
	assert.Equal(t, "alice", cfg.Actor)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.StoreConfig().StraightLinks)

	m, err := cfg.Matcher()
	require.NoError(t, err)
	assert.True(t, m.Match("INT", "ANY"))
	assert.False(t, m.Match("INT", "FLOAT"))
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown curve", "layout:\n  curve: wiggly\n"},
		{"negative stroke", "layout:\n  link_stroke_width: -1\n"},
		{"search window below radius", "layout:\n  reroute_radius: 30\n  reroute_search_window: 10\n"},
		{"slot centre out of range", "graph:\n  slot_center: 1.5\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad type rule", "graph:\n  type_rule: 'from ==='\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml), Default())
			assert.Error(t, err)
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "graphlink.yaml")
	cfg := Default()
	cfg.Actor = "bob"
	cfg.Graph.TypeRule = `from == to`
	cfg.Layout.Curve = CurveStraight

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "chatty"
	path := filepath.Join(t.TempDir(), "c.yaml")
	assert.Error(t, Save(path, cfg))
	assert.NoFileExists(t, path)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, closer, err := LogConfig{Level: "warn"}.NewLogger("graphlink", &buf)
	require.NoError(t, err)
	defer closer.Close()
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	path := filepath.Join(t.TempDir(), "graphlink.log")
	l, closer, err = LogConfig{Level: "info", File: path, JSON: true}.NewLogger("graphlink", &buf)
	require.NoError(t, err)
	l.Named("sync").Info("to file")
	require.NoError(t, closer.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"@module":"graphlink.sync"`)
	assert.Equal(t, hclog.Info, l.GetLevel())
}
