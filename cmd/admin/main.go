package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "github.com/caterpillar-1/CShapeZ/internal/persistence/log"
	"github.com/caterpillar-1/CShapeZ/internal/persistence/snapshot"
	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/grid"
	"github.com/caterpillar-1/CShapeZ/internal/sim/io/savecodec"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "clear":
			clearCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			httpCmd("state", http.MethodGet, "/admin/v1/state", os.Args[2:])
			return
		case "snapshot":
			httpCmd("snapshot", http.MethodPost, "/admin/v1/snapshot", os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional; lists its snapshots)")
	_ = fs.Parse(args)

	if *worldID == "" {
		entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if e.IsDir() {
				fmt.Println(e.Name())
			}
		}
		return
	}
	list, err := snapshot.List(filepath.Join(*dataDir, "worlds", *worldID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, e := range list {
		fmt.Printf("%d\t%s\n", e.Tick, e.Path)
	}
}

// loadSave reads snapPath, or the newest snapshot of the world when empty.
func loadSave(dataDir, worldID, snapPath string) (snapshot.Header, *savecodec.State, string, error) {
	p := strings.TrimSpace(snapPath)
	if p == "" {
		if strings.TrimSpace(worldID) == "" {
			return snapshot.Header{}, nil, "", fmt.Errorf("missing -world or -snapshot")
		}
		p = snapshot.Latest(filepath.Join(dataDir, "worlds", worldID))
	}
	if p == "" {
		return snapshot.Header{}, nil, "", fmt.Errorf("no snapshot found; provide -snapshot or run server until it writes one")
	}
	h, payload, err := snapshot.Read(p)
	if err != nil {
		return h, nil, p, err
	}
	st, err := savecodec.Unmarshal(payload)
	return h, st, p, err
}

type inspectReport struct {
	Path    string          `json:"path"`
	Header  snapshot.Header `json:"header"`
	GridW   int             `json:"grid_w"`
	GridH   int             `json:"grid_h"`
	Kinds   map[string]int  `json:"kinds"`
	Stalled [][2]int        `json:"stalled,omitempty"`
	Ratios  map[string]any  `json:"ratios"`
	Goal    savedGoal       `json:"goal"`
}

type savedGoal struct {
	ProblemSet int     `json:"problem_set"`
	Task       int     `json:"task"`
	Received   int     `json:"received"`
	Money      int64   `json:"money"`
	MoneyRatio float64 `json:"money_ratio"`
	Enhance    int     `json:"enhance"`
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	drawMap := fs.Bool("map", false, "print the grid as text instead of a JSON report")
	_ = fs.Parse(args)

	h, st, path, err := loadSave(*dataDir, *worldID, *snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	if *drawMap {
		fmt.Print(renderMap(st.Grid))
		return
	}
	printJSON(inspect(path, h, st))
}

func inspect(path string, h snapshot.Header, st *savecodec.State) inspectReport {
	w, ht := st.Grid.Size()
	r := inspectReport{
		Path:   path,
		Header: h,
		GridW:  w,
		GridH:  ht,
		Kinds:  map[string]int{},
		Ratios: map[string]any{},
		Goal: savedGoal{
			ProblemSet: st.Goal.ProblemSet,
			Task:       st.Goal.Task,
			Received:   st.Goal.Received,
			Money:      st.Goal.Money,
			MoneyRatio: st.Goal.MoneyRatio,
			Enhance:    st.Goal.Enhance,
		},
	}
	for _, d := range st.Grid.Devices() {
		r.Kinds[d.Kind().String()]++
		if d.Stalled() {
			base, _ := d.Placement()
			r.Stalled = append(r.Stalled, base.ToArray())
		}
	}
	for _, k := range device.Kinds {
		r.Ratios[k.String()] = st.Ratios.Get(k)
	}
	return r
}

// renderMap draws one character per cell: the device kind tag, or the ground
// ('m' mine resource, 't' trait resource, '.' none).
func renderMap(g *grid.Grid) string {
	w, h := g.Size()
	var b strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := geom.Pos{X: x, Y: y}
			if d := g.DeviceAt(p); d != nil {
				b.WriteByte(d.Kind().Tag())
				continue
			}
			switch g.Ground(p).(type) {
			case item.MineResource:
				b.WriteByte('m')
			case item.TraitResource:
				b.WriteByte('t')
			default:
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	action := fs.String("action", "", "action filter (PLACE, REMOVE, STALL, ...)")
	since := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	entries, err := persistlog.ReadAudits(filepath.Join(*dataDir, "worlds", *worldID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Tick < entries[j].Tick })
	want := strings.ToUpper(strings.TrimSpace(*action))
	for _, e := range entries {
		if e.Tick < *since || (want != "" && e.Action != want) {
			continue
		}
		printJSON(e)
	}
}
