package bridge

import (
	"fmt"
	"log"

	"github.com/sarchlab/wbfabric/bus"
)

// ClassicRequest is the request of a classic initiator. It is held
// unchanged until the transfer is acknowledged.
type ClassicRequest struct {
	Cyc bool
	Stb bool
	We  bool
	Adr uint32
	Sel uint8
	Dat uint32
}

// ClassicResponse completes a classic transfer.
type ClassicResponse struct {
	Ack bool
	Err bool
	Dat uint32
}

// Done reports whether the response completes the transfer.
func (r ClassicResponse) Done() bool {
	return r.Ack || r.Err
}

// State is the phase of the classic bridge.
type State int

// Bridge phases.
const (
	// StateIdle waits for the classic initiator to start a cycle.
	StateIdle State = iota
	// StateAddr presents the latched request until the target accepts it.
	StateAddr
	// StateData waits for the target to acknowledge.
	StateData
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAddr:
		return "Addr"
	case StateData:
		return "Data"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Classic bridges a classic (hold until acknowledge) initiator to the
// pipelined bus with an Idle -> Addr -> Data -> Idle state machine.
type Classic struct {
	name    string
	state   State
	latched bus.Request

	in  ClassicRequest
	rsp bus.Response
}

// NewClassic creates a classic bridge in the Idle state.
func NewClassic(name string) *Classic {
	return &Classic{name: name}
}

// Name returns the bridge name.
func (b *Classic) Name() string {
	return b.name
}

// State returns the current phase.
func (b *Classic) State() State {
	return b.state
}

// Drive returns the pipelined request of this cycle. It depends only on the
// registered state; in is sampled for the Idle transition.
func (b *Classic) Drive(in ClassicRequest) bus.Request {
	b.in = in

	switch b.state {
	case StateAddr:
		req := b.latched
		req.Cyc = true
		req.Stb = true
		return req
	case StateData:
		req := b.latched
		req.Cyc = true
		req.Stb = false
		return req
	default:
		return bus.Idle()
	}
}

// Respond converts the pipelined response of this cycle. Completion is
// forwarded only in the Data phase.
func (b *Classic) Respond(rsp bus.Response) ClassicResponse {
	b.rsp = rsp

	if b.state != StateData || !rsp.Done() {
		return ClassicResponse{}
	}

	return ClassicResponse{Ack: rsp.Ack, Err: rsp.Err, Dat: rsp.Dat}
}

// Commit advances the state machine.
func (b *Classic) Commit() {
	if b.state != StateData && b.rsp.Done() {
		log.Panicf("bridge: %s: response in state %s", b.name, b.state)
	}

	switch b.state {
	case StateIdle:
		if b.in.Cyc {
			b.latched = bus.Request{
				We:  b.in.We,
				Adr: b.in.Adr,
				Sel: b.in.Sel,
				Dat: b.in.Dat,
			}
			b.state = StateAddr
		}
	case StateAddr:
		if !b.rsp.Stall {
			b.state = StateData
		}
	case StateData:
		if b.rsp.Done() {
			b.state = StateIdle
		}
	}

	b.in = ClassicRequest{}
	b.rsp = bus.Response{}
}

// Reset returns the bridge to Idle.
func (b *Classic) Reset() {
	b.state = StateIdle
	b.latched = bus.Request{}
	b.in = ClassicRequest{}
	b.rsp = bus.Response{}
}
