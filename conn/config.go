package conn

import "time"

// Public configuration keys.
var Config = struct {

	// Number of connection slots in the table.
	MaxConns string

	// Maximum payload carried by a single send command.  Writes are
	// coalesced into segments of exactly this size.
	SegmentSize string

	// Interval between poll events on an active connection.
	PollInterval string

	// Deadlines for blocking submissions, per command kind.
	StartTimeout  string
	SendTimeout   string
	CloseTimeout  string
	StatusTimeout string
}{
	"gsm.conn.max",
	"gsm.conn.segment.size",
	"gsm.conn.poll.interval",
	"gsm.conn.start.timeout",
	"gsm.conn.send.timeout",
	"gsm.conn.close.timeout",
	"gsm.conn.status.timeout",
}

var (
	defaultMaxConns      = 6
	defaultSegmentSize   = 1460
	defaultPollInterval  = 500 * time.Millisecond
	defaultStartTimeout  = 60 * time.Second
	defaultSendTimeout   = 60 * time.Second
	defaultCloseTimeout  = time.Second
	defaultStatusTimeout = time.Second
)
