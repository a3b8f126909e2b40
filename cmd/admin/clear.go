package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caterpillar-1/CShapeZ/internal/persistence/snapshot"
	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/grid"
	"github.com/caterpillar-1/CShapeZ/internal/sim/io/savecodec"
)

// clearCmd removes every device touching a rectangle from a snapshot and
// writes the result next to it. The server loads it only when given
// explicitly with -snapshot.
func clearCmd(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot to edit (optional; defaults to latest)")
	rect := fs.String("rect", "", "cells to clear: x1,y1:x2,y2 (required)")
	stalledOnly := fs.Bool("stalled_only", false, "only remove stalled devices")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	min, max, err := parseRect(*rect)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -rect:", err)
		os.Exit(2)
	}
	h, st, path, err := loadSave(*dataDir, *worldID, *snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}

	removed, err := clearRect(st.Grid, min, max, *stalledOnly)
	if err != nil {
		fmt.Fprintln(os.Stderr, "clear:", err)
		os.Exit(1)
	}
	payload, err := savecodec.Marshal(st)
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}
	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(filepath.Dir(path), fmt.Sprintf("%d.clear.snap.zst", h.Tick))
	}
	h.Devices = st.Grid.Len()
	h.Stalled = 0
	for _, d := range st.Grid.Devices() {
		if d.Stalled() {
			h.Stalled++
		}
	}
	if _, err := snapshot.Write(*outPath, h, payload); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("clear ok: snapshot=%s tick=%d rect=%s removed=%d out=%s\n",
		filepath.Base(path), h.Tick, *rect, removed, *outPath)
}

// clearRect removes the devices with at least one cell inside [min,max].
// The center is never removed.
func clearRect(g *grid.Grid, min, max geom.Pos, stalledOnly bool) (int, error) {
	var victims []device.Device
	for _, d := range g.Devices() {
		if d.Kind() == device.KindCenter || (stalledOnly && !d.Stalled()) {
			continue
		}
		base, rot := d.Placement()
		for _, off := range d.Footprint() {
			p := geom.MapToGrid(off, base, rot)
			if p.X >= min.X && p.X <= max.X && p.Y >= min.Y && p.Y <= max.Y {
				victims = append(victims, d)
				break
			}
		}
	}
	for _, d := range victims {
		if err := g.Remove(d); err != nil {
			return 0, err
		}
	}
	return len(victims), nil
}

func parseRect(s string) (min, max geom.Pos, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1:x2,y2")
	}
	a, err := parseVec2(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec2(parts[1])
	if err != nil {
		return min, max, err
	}
	if a.X > b.X {
		a.X, b.X = b.X, a.X
	}
	if a.Y > b.Y {
		a.Y, b.Y = b.Y, a.Y
	}
	return a, b, nil
}

func parseVec2(s string) (geom.Pos, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geom.Pos{}, fmt.Errorf("expected x,y")
	}
	var v [2]int
	for i := range v {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return geom.Pos{}, err
		}
		v[i] = n
	}
	return geom.Pos{X: v[0], Y: v[1]}, nil
}
