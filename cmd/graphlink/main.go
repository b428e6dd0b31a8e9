// Command graphlink inspects node graph scenes and replays link drags
// against them.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/ha1tch/graphlink/pkg/geom"
)

const usage = `graphlink - node graph link toolkit

Usage:
  graphlink <command> <scene.yaml> [options]

Commands:
  info       Show graph and layout index counts
  hit        Run every hit-test at a point
  drag       Replay a link drag and print events and operations
  oplog      Print the layout operation log after loading
  snapshot   Render the layout to PNG or SVG, or the links to DOT

Options:
  -c, --config <file>   Configuration file (default ~/.graphlink.yaml)
  --from x,y            Pointer-down position (drag)
  --to x,y              Pointer-up position (drag)
  --shift --ctrl --alt  Modifier keys held during the drag
  -o, --output <file>   Output file, format from .png .svg .dot (snapshot)
  --zoom <factor>       Pixels per canvas unit (snapshot)
  --mark x,y            Draw a crosshair, may repeat (snapshot)

Examples:
  graphlink info demo.yaml
  graphlink hit demo.yaml 200 150
  graphlink drag demo.yaml --from 100,45 --to 300,45
  graphlink snapshot demo.yaml -o demo.png --mark 200,150
  graphlink snapshot demo.yaml -o demo.dot
`

func main() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "info":
		err = cmdInfo(args)
	case "hit":
		err = cmdHit(args)
	case "drag":
		err = cmdDrag(args)
	case "oplog":
		err = cmdOplog(args)
	case "snapshot":
		err = cmdSnapshot(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", colorError().Sprint("Error:"), err)
		os.Exit(1)
	}
}

// options holds every flag any command accepts.
type options struct {
	config     string
	output     string
	from, to   *geom.Point
	marks      []geom.Point
	zoom       float64
	shift      bool
	ctrl       bool
	alt        bool
	positional []string
}

func parseArgs(args []string) (options, error) {
	var o options
	value := func(i int, name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s needs a value", name)
		}
		return args[i+1], nil
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-c", "--config", "-o", "--output", "--from", "--to", "--mark", "--zoom":
			v, err := value(i, arg)
			if err != nil {
				return o, err
			}
			i++
			switch arg {
			case "-c", "--config":
				o.config = v
			case "-o", "--output":
				o.output = v
			case "--zoom":
				z, err := strconv.ParseFloat(v, 64)
				if err != nil || z <= 0 {
					return o, fmt.Errorf("bad zoom %q", v)
				}
				o.zoom = z
			default:
				p, err := parsePoint(v)
				if err != nil {
					return o, err
				}
				switch arg {
				case "--from":
					o.from = &p
				case "--to":
					o.to = &p
				default:
					o.marks = append(o.marks, p)
				}
			}
		case "--shift":
			o.shift = true
		case "--ctrl":
			o.ctrl = true
		case "--alt":
			o.alt = true
		default:
			if strings.HasPrefix(arg, "--") {
				return o, fmt.Errorf("unknown option %s", arg)
			}
			o.positional = append(o.positional, arg)
		}
	}
	return o, nil
}

// parsePoint reads "x,y".
func parsePoint(s string) (geom.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geom.Point{}, fmt.Errorf("bad point %q, want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("bad point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("bad point %q: %w", s, err)
	}
	return geom.Point{X: x, Y: y}, nil
}
