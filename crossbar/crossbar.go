// Package crossbar routes pipelined bus requests from N initiators to M
// targets by address and resolves contention with fixed priority.
//
// A target is connected to at most one initiator per cycle. Once a target
// accepts a request it stays locked to that initiator until it answers with
// ack or err, and other initiators addressing it are stalled. When several
// initiators address a free target in the same cycle, the lowest initiator
// index wins. Requests that decode to no permitted target are accepted by
// the crossbar itself and answered with err on the next cycle.
package crossbar

import (
	"fmt"
	"log"

	"github.com/sarchlab/wbfabric/bus"
)

const (
	none     = -1
	unmapped = -2
)

// Statistics holds per-initiator counters.
type Statistics struct {
	// Accepted counts requests taken by a target or by the unmapped
	// responder.
	Accepted uint64
	// StallCycles counts cycles in which a strobed request was stalled.
	StallCycles uint64
	// Acks counts successful completions.
	Acks uint64
	// Errors counts err completions, including unmapped ones.
	Errors uint64
	// Unmapped counts requests that decoded to no target.
	Unmapped uint64
}

// Crossbar is the N x M routing fabric.
type Crossbar struct {
	cfg     Config
	targets []bus.Target

	// owner[t] is the initiator whose transaction target t is serving.
	owner []int
	// pending[i] is the target serving initiator i, unmapped, or none.
	pending []int

	reqs      []bus.Request
	route     []int
	conn      []int
	completes []bool
	tReqs     []bus.Request
	tRsps     []bus.Response
	rsps      []bus.Response

	stats []Statistics
}

// New creates a crossbar for numInitiators initiators. targets must be in
// the order of cfg.Targets.
func New(cfg Config, numInitiators int, targets []bus.Target) (*Crossbar, error) {
	if err := cfg.Validate(numInitiators); err != nil {
		return nil, err
	}
	if len(targets) != len(cfg.Targets) {
		return nil, fmt.Errorf("%w: %d targets configured, %d provided",
			ErrConfig, len(cfg.Targets), len(targets))
	}

	x := &Crossbar{
		cfg:       cfg,
		targets:   targets,
		owner:     make([]int, len(targets)),
		pending:   make([]int, numInitiators),
		reqs:      make([]bus.Request, numInitiators),
		route:     make([]int, numInitiators),
		conn:      make([]int, len(targets)),
		completes: make([]bool, numInitiators),
		tReqs:     make([]bus.Request, len(targets)),
		tRsps:     make([]bus.Response, len(targets)),
		rsps:      make([]bus.Response, numInitiators),
		stats:     make([]Statistics, numInitiators),
	}
	x.Reset()

	return x, nil
}

// NumInitiators returns the number of initiator ports.
func (x *Crossbar) NumInitiators() int {
	return len(x.pending)
}

// NumTargets returns the number of target ports.
func (x *Crossbar) NumTargets() int {
	return len(x.targets)
}

// Decode returns the index of the target initiator i reaches at addr, or
// false when the address is unmapped for that initiator.
func (x *Crossbar) Decode(i int, addr uint32) (int, bool) {
	for t, tc := range x.cfg.Targets {
		if x.cfg.Permitted(i, t) && tc.Region.Contains(addr) {
			return t, true
		}
	}
	return 0, false
}

// Owner returns the initiator that target t is serving, or -1.
func (x *Crossbar) Owner(t int) int {
	return x.owner[t]
}

// Busy reports whether initiator i has a transaction in flight.
func (x *Crossbar) Busy(i int) bool {
	return x.pending[i] != none
}

// Stats returns the counters of initiator i.
func (x *Crossbar) Stats(i int) Statistics {
	return x.stats[i]
}

// TargetRequest returns the request presented to target t in the last
// evaluated cycle.
func (x *Crossbar) TargetRequest(t int) bus.Request {
	return x.tReqs[t]
}

// Eval routes one cycle. reqs holds the request of every initiator; the
// returned slice holds the response of every initiator and is reused by the
// next call.
func (x *Crossbar) Eval(reqs []bus.Request) []bus.Response {
	if len(reqs) != len(x.reqs) {
		log.Panicf("crossbar: %d requests for %d initiators", len(reqs), len(x.reqs))
	}
	copy(x.reqs, reqs)

	x.decodeAll()
	x.evalOwnedTargets()
	x.resolveCompletions()
	x.arbitrateFreeTargets()
	x.buildResponses()

	return x.rsps
}

func (x *Crossbar) decodeAll() {
	for i, req := range x.reqs {
		x.route[i] = none
		if !req.Active() {
			continue
		}

		if t, ok := x.Decode(i, req.Adr); ok {
			x.route[i] = t
		} else {
			x.route[i] = unmapped
		}
	}

	for t := range x.conn {
		x.conn[t] = none
		x.tReqs[t] = bus.Idle()
		x.tRsps[t] = bus.Response{}
	}
}

// evalOwnedTargets connects every locked target to its owner. The owner's
// strobe reaches the target only when it addresses the same target and the
// owned transaction completes in this cycle, so a target can overlap a new
// request with the previous response but never holds two for one initiator.
func (x *Crossbar) evalOwnedTargets() {
	for t, target := range x.targets {
		i := x.owner[t]
		if i == none {
			continue
		}

		x.conn[t] = i
		req := x.reqs[i]
		strobe := req.Stb && x.route[i] == t
		req.Cyc = true
		req.Stb = false

		rsp := target.Eval(req)
		if strobe && rsp.Done() {
			req.Stb = true
			rsp = target.Eval(req)
		}

		x.tReqs[t] = req
		x.tRsps[t] = rsp
	}
}

func (x *Crossbar) resolveCompletions() {
	for i := range x.pending {
		switch p := x.pending[i]; {
		case p == unmapped:
			x.completes[i] = true
		case p >= 0:
			x.completes[i] = x.tRsps[p].Done()
		default:
			x.completes[i] = false
		}
	}

	for t := range x.targets {
		if x.owner[t] == none {
			continue
		}
		if x.tRsps[t].Done() && x.pending[x.owner[t]] != t {
			log.Panicf("crossbar: target %s answered initiator %d with nothing outstanding",
				x.cfg.Targets[t].Name, x.owner[t])
		}
	}
}

// canIssue reports whether initiator i may start a transaction on a target
// it does not own. A transaction still in flight elsewhere blocks it so that
// responses return in request order.
func (x *Crossbar) canIssue(i int) bool {
	return x.pending[i] == none || x.completes[i]
}

func (x *Crossbar) arbitrateFreeTargets() {
	for t, target := range x.targets {
		if x.owner[t] != none {
			continue
		}

		for i := range x.reqs {
			if x.route[i] == t && x.canIssue(i) {
				x.conn[t] = i
				x.tReqs[t] = x.reqs[i]
				break
			}
		}

		x.tRsps[t] = target.Eval(x.tReqs[t])
		if x.conn[t] == none && x.tRsps[t].Done() {
			log.Panicf("crossbar: idle target %s answered", x.cfg.Targets[t].Name)
		}
	}
}

func (x *Crossbar) buildResponses() {
	for i, req := range x.reqs {
		rsp := bus.Response{}

		switch p := x.pending[i]; {
		case p == unmapped:
			rsp.Err = true
		case p >= 0:
			tr := x.tRsps[p]
			rsp.Ack = tr.Ack
			rsp.Err = tr.Err
			rsp.Dat = tr.Dat
		}

		if req.Active() {
			rsp.Stall = x.stalled(i)
		}

		x.rsps[i] = rsp
	}
}

func (x *Crossbar) stalled(i int) bool {
	t := x.route[i]
	if t == unmapped {
		return !x.canIssue(i)
	}
	if x.conn[t] != i || !x.tReqs[t].Stb {
		return true
	}
	return x.tRsps[t].Stall
}

// Commit ends the cycle: ownership and pending state are updated from the
// signals of the evaluated cycle, then every target commits.
func (x *Crossbar) Commit() {
	for i, req := range x.reqs {
		rsp := x.rsps[i]
		st := &x.stats[i]

		if x.completes[i] {
			if rsp.Ack {
				st.Acks++
			}
			if rsp.Err {
				st.Errors++
			}
			if p := x.pending[i]; p >= 0 {
				x.owner[p] = none
			}
			x.pending[i] = none
		}

		if !req.Active() {
			continue
		}
		if rsp.Stall {
			st.StallCycles++
			continue
		}

		if x.pending[i] != none {
			log.Panicf("crossbar: initiator %d accepted a second outstanding request", i)
		}

		st.Accepted++
		t := x.route[i]
		x.pending[i] = t
		if t == unmapped {
			st.Unmapped++
			continue
		}
		x.owner[t] = i
	}

	for _, target := range x.targets {
		target.Commit()
	}

	for i := range x.reqs {
		x.reqs[i] = bus.Request{}
		x.completes[i] = false
	}
}

// Reset releases every lock and drops in-flight transactions. Targets are
// not reset.
func (x *Crossbar) Reset() {
	for t := range x.owner {
		x.owner[t] = none
		x.conn[t] = none
	}
	for i := range x.pending {
		x.pending[i] = none
		x.reqs[i] = bus.Request{}
		x.completes[i] = false
		x.stats[i] = Statistics{}
	}
}
