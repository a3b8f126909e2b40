package geom

import "fmt"

// Direction is a quarter-turn count in [0,3].
//
// R0 points to +X, R90 to -Y, R180 to -X and R270 to +Y (screen coordinates,
// Y grows downward), so increasing the count turns counter-clockwise.
type Direction uint8

const (
	R0 Direction = iota
	R90
	R180
	R270
)

// Directions lists every direction in ascending order.
var Directions = [4]Direction{R0, R90, R180, R270}

var (
	dx = [4]int{1, 0, -1, 0}
	dy = [4]int{0, -1, 0, 1}
)

// Normalize accepts either quarter-turns or degrees (multiples of 90).
func Normalize(r int) Direction {
	if r%90 == 0 && (r > 3 || r < -3) {
		r = r / 90
	}
	r %= 4
	if r < 0 {
		r += 4
	}
	return Direction(r)
}

func (d Direction) Valid() bool { return d < 4 }

// Add composes two rotations.
func (d Direction) Add(o Direction) Direction { return (d + o) & 3 }

// Sub returns the rotation that maps o onto d.
func (d Direction) Sub(o Direction) Direction { return (d + 4 - (o & 3)) & 3 }

func (d Direction) Opposite() Direction { return (d + 2) & 3 }

// Left turns a quarter counter-clockwise.
func (d Direction) Left() Direction { return (d + 1) & 3 }

// Right turns a quarter clockwise.
func (d Direction) Right() Direction { return (d + 3) & 3 }

func (d Direction) Delta() (int, int) { return dx[d&3], dy[d&3] }

func (d Direction) Degrees() int { return int(d&3) * 90 }

func (d Direction) String() string {
	switch d & 3 {
	case R0:
		return "R0"
	case R90:
		return "R90"
	case R180:
		return "R180"
	default:
		return "R270"
	}
}

// Pos is an absolute grid cell.
type Pos struct {
	X int
	Y int
}

// Offset is a cell relative to a device base, in the device's local frame.
type Offset struct {
	X int
	Y int
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

func (p Pos) Step(d Direction) Pos {
	ddx, ddy := d.Delta()
	return Pos{X: p.X + ddx, Y: p.Y + ddy}
}

func (p Pos) ToArray() [2]int { return [2]int{p.X, p.Y} }

func (o Offset) Step(d Direction) Offset {
	ddx, ddy := d.Delta()
	return Offset{X: o.X + ddx, Y: o.Y + ddy}
}

// DirTo reports the direction from o to an edge-adjacent offset n.
func (o Offset) DirTo(n Offset) (Direction, bool) {
	for _, d := range Directions {
		if o.Step(d) == n {
			return d, true
		}
	}
	return 0, false
}

// MapToGrid rotates off by rot about the base cell and translates it by base.
func MapToGrid(off Offset, base Pos, rot Direction) Pos {
	switch rot & 3 {
	case R0:
		return Pos{X: base.X + off.X, Y: base.Y + off.Y}
	case R90:
		return Pos{X: base.X + off.Y, Y: base.Y - off.X}
	case R180:
		return Pos{X: base.X - off.X, Y: base.Y - off.Y}
	default:
		return Pos{X: base.X - off.Y, Y: base.Y + off.X}
	}
}

// PortDirection maps a local port direction into the grid frame.
func PortDirection(deviceRot, local Direction) Direction { return deviceRot.Add(local) }

func Manhattan(a, b Pos) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
