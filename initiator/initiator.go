// Package initiator provides traffic drivers that play the role of bus
// initiators in each of the supported protocols.
//
// A driver owns a queue of operations. Every cycle the owner calls Drive to
// get the driver's outputs, Observe with the response of that cycle, and
// Commit at the tick boundary. Completed operations are recorded as Results
// in completion order.
package initiator

import "github.com/sarchlab/wbfabric/bus"

// Op is one bus operation.
type Op struct {
	Write bool   `json:"write"`
	Addr  uint32 `json:"addr"`
	Data  uint32 `json:"data,omitempty"`
	// Sel holds the byte enables of a write. Zero selects all lanes.
	Sel uint8 `json:"sel,omitempty"`
}

// Read returns a read operation.
func Read(addr uint32) Op {
	return Op{Addr: addr}
}

// Write returns a full-word write operation.
func Write(addr, data uint32) Op {
	return Op{Write: true, Addr: addr, Data: data}
}

// WriteBytes returns a write operation limited to the selected byte lanes.
func WriteBytes(addr, data uint32, sel uint8) Op {
	return Op{Write: true, Addr: addr, Data: data, Sel: sel}
}

func (o Op) lanes() uint8 {
	if o.Sel == 0 {
		return bus.SelAll
	}
	return o.Sel
}

// Result is a completed operation.
type Result struct {
	Op   Op
	Data uint32
	Ack  bool
	Err  bool

	// Issued is the cycle the operation was first presented.
	Issued uint64
	// Accepted is the cycle the request was taken. A classic initiator only
	// learns this from the acknowledge, so it equals Completed there.
	Accepted uint64
	// Completed is the cycle its response arrived.
	Completed uint64
}

// Latency returns the number of cycles from first presentation to response.
func (r Result) Latency() uint64 {
	return r.Completed - r.Issued
}

// Driver is the protocol-independent view of a traffic driver.
type Driver interface {
	Name() string
	Push(ops ...Op)
	Results() []Result
	Idle() bool
	Reset()
}

type tracker struct {
	name    string
	ops     []Op
	results []Result
	cycle   uint64

	presenting bool
	issued     uint64
	inflight   *Result
}

func (t *tracker) Name() string {
	return t.name
}

// Push appends operations to the queue.
func (t *tracker) Push(ops ...Op) {
	t.ops = append(t.ops, ops...)
}

// Results returns the completed operations.
func (t *tracker) Results() []Result {
	return t.results
}

// Idle reports whether no operation is queued or in flight.
func (t *tracker) Idle() bool {
	return len(t.ops) == 0 && t.inflight == nil
}

// Cycle returns the number of committed cycles.
func (t *tracker) Cycle() uint64 {
	return t.cycle
}

func (t *tracker) head() (Op, bool) {
	if len(t.ops) == 0 {
		return Op{}, false
	}
	return t.ops[0], true
}

func (t *tracker) present() {
	if !t.presenting {
		t.presenting = true
		t.issued = t.cycle
	}
}

func (t *tracker) accept() {
	t.inflight = &Result{Op: t.ops[0], Issued: t.issued, Accepted: t.cycle}
	t.ops = t.ops[1:]
	t.presenting = false
}

func (t *tracker) complete(data uint32, ack, err bool) {
	r := *t.inflight
	if ack && !r.Op.Write {
		r.Data = data
	}
	r.Ack = ack
	r.Err = err
	r.Completed = t.cycle
	t.results = append(t.results, r)
	t.inflight = nil
}

func (t *tracker) reset() {
	t.ops = nil
	t.results = nil
	t.cycle = 0
	t.presenting = false
	t.issued = 0
	t.inflight = nil
}
