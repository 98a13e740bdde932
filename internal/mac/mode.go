// Package mac implements the MAC controller state machine (SPEC_FULL §4.7):
// the tagged-sum Mode type and transition function SPEC_FULL §9 calls for,
// replacing the reference stack's bare switch over an atomic int.
package mac

// Mode is one of the controller's six top-level states.
type Mode uint8

const (
	Standby Mode = iota
	Config
	Start
	Idle
	Reconfig
	Stop
)

func (m Mode) String() string {
	switch m {
	case Standby:
		return "Standby"
	case Config:
		return "Config"
	case Start:
		return "Start"
	case Idle:
		return "Idle"
	case Reconfig:
		return "Reconfig"
	case Stop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// SubMode is the cooperative quiescence flag each of Rx, Tx, and Tun
// exposes independently of the top-level Mode.
type SubMode uint8

const (
	Disabled SubMode = iota
	Active
)

// Event drives a Mode transition.
type Event uint8

const (
	EventStartCommand Event = iota
	EventStopCommand
	EventConfigRequestCommand
	EventPHYReady
	EventGuardElapsed
	EventQuiescent
	EventReconfigDone
)

// transitions encodes the state machine's edges; unlisted (mode, event)
// pairs are self-loops (the event is ignored in that state).
var transitions = map[Mode]map[Event]Mode{
	Standby: {EventStartCommand: Config},
	Config:  {EventPHYReady: Start},
	Start:   {EventGuardElapsed: Idle},
	Idle: {
		EventConfigRequestCommand: Reconfig,
		EventStopCommand:          Stop,
	},
	Reconfig: {EventReconfigDone: Idle},
	Stop:     {EventQuiescent: Standby},
}

// transition returns the next Mode for (m, ev), or m itself if the edge is
// undefined (a self-loop).
func transition(m Mode, ev Event) Mode {
	if edges, ok := transitions[m]; ok {
		if next, ok := edges[ev]; ok {
			return next
		}
	}
	return m
}
