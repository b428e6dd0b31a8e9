package main

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/ha1tch/graphlink/pkg/config"
	"github.com/ha1tch/graphlink/pkg/connector"
	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/layout"
	"github.com/ha1tch/graphlink/pkg/layoutsync"
	"github.com/ha1tch/graphlink/pkg/scene"
)

// workspace is a scene loaded into a graph, a layout store and a
// connector, all wired together.
type workspace struct {
	cfg    config.Config
	logger hclog.Logger
	closer io.Closer

	scene     *scene.Scene
	graph     *graph.Graph
	store     *layout.Store
	mirror    *layoutsync.Mirror
	connector *connector.Connector
}

func openWorkspace(path string, o options, logOut io.Writer) (*workspace, error) {
	cfgPath := o.config
	if cfgPath == "" {
		cfgPath = config.Path()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return newWorkspace(path, cfg, logOut)
}

func newWorkspace(path string, cfg config.Config, logOut io.Writer) (*workspace, error) {
	logger, closer, err := cfg.Log.NewLogger("graphlink", logOut)
	if err != nil {
		return nil, err
	}
	w := &workspace{cfg: cfg, logger: logger, closer: closer}

	w.scene, err = scene.Load(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	gopts, err := cfg.GraphOptions()
	if err != nil {
		w.Close()
		return nil, err
	}
	w.graph, err = w.scene.Build(gopts...)
	if err != nil {
		w.Close()
		return nil, err
	}

	sopts := []layout.Option{layout.WithConfig(cfg.StoreConfig()), layout.WithLogger(logger)}
	if cfg.Actor != "" {
		sopts = append(sopts, layout.WithProvenance(layout.SourceExternal, cfg.Actor))
	}
	w.store = layout.New(sopts...)
	w.mirror, err = layoutsync.Attach(w.graph, w.store, layoutsync.WithLogger(logger))
	if err != nil {
		w.Close()
		return nil, err
	}
	w.store.Flush()
	w.connector = connector.New(w.graph, connector.WithLogger(logger))
	logger.Debug("workspace ready", "scene", path, "nodes", len(w.graph.Nodes()), "links", len(w.graph.Links()))
	return w, nil
}

// Close detaches the mirror and closes the log file, if any.
func (w *workspace) Close() {
	if w.mirror != nil {
		w.mirror.Detach()
	}
	if w.closer != nil {
		w.closer.Close()
	}
}

func openFromArgs(args []string, want int, usageLine string) (*workspace, options, error) {
	o, err := parseArgs(args)
	if err != nil {
		return nil, o, err
	}
	if len(o.positional) < want {
		return nil, o, usageError(usageLine)
	}
	w, err := openWorkspace(o.positional[0], o, os.Stderr)
	return w, o, err
}
