// Command graphedit is a terminal editor for dragging links between the
// nodes of a scene.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/ha1tch/graphlink/pkg/config"
	"github.com/ha1tch/graphlink/pkg/connector"
	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/ident"
	"github.com/ha1tch/graphlink/pkg/layout"
	"github.com/ha1tch/graphlink/pkg/layoutsync"
	"github.com/ha1tch/graphlink/pkg/scene"
	"github.com/ha1tch/graphlink/pkg/snapshot"
)

// MessageType for status messages
type MessageType int

const (
	MsgInfo    MessageType = iota // Informative, no flash
	MsgError                      // Errors, flash
	MsgSuccess                    // State changes, flash
	MsgWarning                    // Warnings, flash
)

const oplogWidth = 44

// Editor holds all editor state
type Editor struct {
	screen   tcell.Screen
	filename string
	cfg      config.Config
	logger   hclog.Logger
	closer   io.Closer

	graph     *graph.Graph
	store     *layout.Store
	mirror    *layoutsync.Mirror
	connector *connector.Connector
	// overflow holds store broadcasts the screen's event queue refused.
	overflow layout.Queue

	view       view
	showOplog  bool
	pointer    geom.Point
	leftDown   bool
	nodeDrag   *nodeDrag
	panFrom    *[2]int
	gesture    layoutsync.Gesture
	lastEvents []string

	message           string
	messageType       MessageType
	messageFlashStart atomic.Int64 // Unix milliseconds when message was shown
}

type nodeDrag struct {
	id   ident.NodeID
	grab geom.Point // pointer offset from the node position
}

func main() {
	var cfgPath, scenePath string
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--config":
			if i+1 < len(args) {
				cfgPath = args[i+1]
				i++
			}
		case "-h", "--help":
			fmt.Println("Usage: graphedit [-c config.yaml] <scene.yaml>")
			return
		default:
			scenePath = args[i]
		}
	}
	if scenePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: graphedit [-c config.yaml] <scene.yaml>")
		os.Exit(1)
	}
	if cfgPath == "" {
		cfgPath = config.Path()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Initialize screen
	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing screen: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to tcell, so logs only go to the configured file.
	ed, err := newEditor(screen, scenePath, cfg, io.Discard)
	if err != nil {
		screen.Fini()
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", scenePath, err)
		os.Exit(1)
	}
	screen.EnableMouse()
	screen.Clear()

	ed.run()

	screen.Fini()
	ed.Close()
}

func newEditor(screen tcell.Screen, path string, cfg config.Config, logOut io.Writer) (*Editor, error) {
	logger, closer, err := cfg.Log.NewLogger("graphedit", logOut)
	if err != nil {
		return nil, err
	}
	ed := &Editor{
		screen:   screen,
		filename: path,
		cfg:      cfg,
		logger:   logger,
		closer:   closer,
		view:     newView(cfg.Metrics()),
	}
	if err := ed.load(path); err != nil {
		closer.Close()
		return nil, err
	}
	return ed, nil
}

func (ed *Editor) load(path string) error {
	sc, err := scene.Load(path)
	if err != nil {
		return err
	}
	gopts, err := ed.cfg.GraphOptions()
	if err != nil {
		return err
	}
	g, err := sc.Build(gopts...)
	if err != nil {
		return err
	}

	actor := ed.cfg.Actor
	if actor == "" {
		actor = "graphedit"
	}
	ed.graph = g
	ed.store = layout.New(
		layout.WithConfig(ed.cfg.StoreConfig()),
		layout.WithLogger(ed.logger),
		layout.WithProvenance(layout.SourceUI, actor),
		layout.WithScheduler(layout.SchedulerFunc(ed.post)),
	)
	ed.mirror, err = layoutsync.Attach(g, ed.store, layoutsync.WithLogger(ed.logger))
	if err != nil {
		return err
	}
	ed.connector = connector.New(g, connector.WithLogger(ed.logger))
	ed.watchEvents()
	ed.fitView()
	return nil
}

// post hands a store broadcast to the event loop.
func (ed *Editor) post(fn func()) {
	if err := ed.screen.PostEvent(tcell.NewEventInterrupt(fn)); err != nil {
		ed.overflow.Schedule(fn)
	}
}

// watchEvents keeps the last few connector events for the status line.
func (ed *Editor) watchEvents() {
	for _, kind := range []connector.EventKind{
		connector.DroppedOnNode, connector.DroppedOnReroute, connector.DroppedOnCanvas,
		connector.DroppedOnWidget, connector.InputMoved, connector.OutputMoved,
		connector.LinkCreated, connector.SessionReset,
	} {
		ed.connector.Events().On(kind, func(ev *connector.Event) {
			ed.lastEvents = append(ed.lastEvents, string(ev.Kind))
			if len(ed.lastEvents) > 4 {
				ed.lastEvents = ed.lastEvents[1:]
			}
		})
	}
}

func (ed *Editor) fitView() {
	var b geom.Bounds
	for i, n := range ed.store.Nodes() {
		if i == 0 {
			b = n.Bounds
			continue
		}
		b = b.Union(n.Bounds)
	}
	for _, r := range ed.store.Reroutes() {
		b = b.Union(r.Bounds)
	}
	ed.view.fit(b)
}

// Close detaches the mirror and closes the log file.
func (ed *Editor) Close() {
	if ed.mirror != nil {
		ed.mirror.Detach()
	}
	if ed.closer != nil {
		ed.closer.Close()
	}
}

func (ed *Editor) run() {
	// Periodic refresh while a message is flashing
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				start := ed.messageFlashStart.Load()
				if elapsed := time.Now().UnixMilli() - start; start > 0 && elapsed >= 0 && elapsed < 700 {
					ed.screen.PostEvent(tcell.NewEventInterrupt(nil))
				}
			}
		}
	}()

	for {
		ed.draw()
		ed.screen.Show()

		if ed.handleEvent(ed.screen.PollEvent()) {
			return
		}
	}
}

// handleEvent processes one screen event and reports whether to quit.
func (ed *Editor) handleEvent(ev tcell.Event) bool {
	defer ed.overflow.Drain()
	switch ev := ev.(type) {
	case *tcell.EventResize:
		ed.screen.Sync()
	case *tcell.EventKey:
		return ed.handleKey(ev)
	case *tcell.EventMouse:
		ed.handleMouse(ev)
	case *tcell.EventInterrupt:
		if fn, ok := ev.Data().(func()); ok {
			fn()
		}
	case nil:
		return true
	}
	return false
}

func (ed *Editor) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyEscape:
		if ed.connector.IsConnecting() {
			ed.connector.Reset(true)
			ed.leftDown = false
			ed.showMessage("Drag cancelled", MsgWarning)
		}
		ed.nodeDrag = nil
		return false
	case tcell.KeyLeft:
		ed.view.offX -= 4
	case tcell.KeyRight:
		ed.view.offX += 4
	case tcell.KeyUp:
		ed.view.offY -= 2
	case tcell.KeyDown:
		ed.view.offY += 2
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'o':
			ed.showOplog = !ed.showOplog
		case 'f':
			ed.fitView()
		case 'p':
			ed.writeSnapshot()
		}
	}
	return false
}

func (ed *Editor) writeSnapshot() {
	out := strings.TrimSuffix(ed.filename, filepath.Ext(ed.filename)) + ".png"
	f, err := os.Create(out)
	if err != nil {
		ed.showMessage(err.Error(), MsgError)
		return
	}
	opts := snapshot.DefaultOptions()
	opts.Marks = []geom.Point{ed.pointer}
	err = snapshot.Render(ed.store, f, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		ed.showMessage("Snapshot failed: "+err.Error(), MsgError)
		return
	}
	ed.showMessage("Written "+out, MsgSuccess)
}

func (ed *Editor) showMessage(msg string, msgType MessageType) {
	ed.message = msg
	ed.messageType = msgType
	ed.messageFlashStart.Store(time.Now().UnixMilli())
}
