// Package observerproto defines the JSON messages exchanged with observer and
// control clients over HTTP and websocket.
package observerproto

// Version is the observer protocol version.
const Version = "1.0"

// Message types.
const (
	TypeSubscribe  = "SUBSCRIBE"
	TypeTick       = "TICK"
	TypeResult     = "RESULT"
	TypePlace      = "PLACE"
	TypeRemove     = "REMOVE"
	TypeRatio      = "RATIO"
	TypeUpgrade    = "UPGRADE"
	TypeEnhance    = "ENHANCE"
	TypeMoneyRatio = "MONEY_RATIO"
)

// GroundEncoding names the ground layer encoding: base64 of (palette id,
// run length) uvarint pairs over the cells in row-major order.
const GroundEncoding = "RLE_UVARINT_B64"

// Result codes.
const (
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrInvalidPath   = "E_INVALID_PATH"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrConflict      = "E_CONFLICT"
	ErrNotFound      = "E_NOT_FOUND"
	ErrWorldBusy     = "E_WORLD_BUSY"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:    {},
	ErrInvalidTarget: {},
	ErrInvalidPath:   {},
	ErrNoResource:    {},
	ErrConflict:      {},
	ErrNotFound:      {},
	ErrWorldBusy:     {},
	ErrInternal:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Client -> Server. First message on the websocket; may be re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Devices asks for the full device list in every TICK.
	Devices bool `json:"devices,omitempty"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Ground          GroundLayer `json:"ground"`
	Palette         []string    `json:"palette"`
	Placeable       []string    `json:"placeable"`
}

type WorldParams struct {
	TickRateHz int   `json:"tick_rate_hz"`
	GridW      int   `json:"grid_w"`
	GridH      int   `json:"grid_h"`
	CenterSize int   `json:"center_size"`
	Seed       int64 `json:"seed"`
}

type GroundLayer struct {
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// Client -> Server. Placement and economy commands. Fields not used by a
// command type are ignored.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ID              string `json:"id"`

	Device   string   `json:"device,omitempty"`
	Pos      [2]int   `json:"pos"`
	Rotation int      `json:"rotation,omitempty"` // quarter turns, 0..3
	Path     [][2]int `json:"path,omitempty"`     // offsets from pos, belts only
	Ratio    float64  `json:"ratio,omitempty"`
}

// Server -> Client. Answer to one CommandMsg.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Tick            uint64 `json:"tick"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Fired      int `json:"fired"`
	Deliveries int `json:"deliveries"`
	Matched    int `json:"matched"`

	Goal    GoalState     `json:"goal"`
	Ratios  []KindRatio   `json:"ratios"`
	Devices []DeviceState `json:"devices,omitempty"`
	Events  []GoalEvent   `json:"events,omitempty"`
	Audits  []AuditEntry  `json:"audits,omitempty"`
}

type GoalState struct {
	ProblemSet int     `json:"problem_set"`
	Task       int     `json:"task"`
	Received   int     `json:"received"`
	Required   int     `json:"required"`
	Target     string  `json:"target"`
	Money      int64   `json:"money"`
	MoneyRatio float64 `json:"money_ratio"`
	Enhance    int     `json:"enhance"`
}

type KindRatio struct {
	Kind   string  `json:"kind"`
	Ratio  float64 `json:"ratio"`
	Period int     `json:"period"`
}

type DeviceState struct {
	Kind     string   `json:"kind"`
	Pos      [2]int   `json:"pos"`
	Rotation int      `json:"rotation"`
	Stalled  bool     `json:"stalled,omitempty"`
	Cells    [][2]int `json:"cells"`
	Items    []string `json:"items,omitempty"`
}

type GoalEvent struct {
	Kind       string  `json:"kind"`
	ProblemSet int     `json:"problem_set"`
	Task       int     `json:"task"`
	Credit     int64   `json:"credit,omitempty"`
	Money      int64   `json:"money"`
	Device     string  `json:"device,omitempty"`
	Ratio      float64 `json:"ratio,omitempty"`
}

type AuditEntry struct {
	Tick     uint64 `json:"tick"`
	Action   string `json:"action"`
	Kind     string `json:"kind,omitempty"`
	Pos      [2]int `json:"pos"`
	Rotation int    `json:"rotation"`
	Reason   string `json:"reason,omitempty"`
}
