package initiator

import (
	"log"

	"github.com/sarchlab/wbfabric/bus"
)

// Pipelined drives the pipelined protocol directly. It presents the next
// operation only when nothing is in flight and holds a stalled strobe
// unchanged.
type Pipelined struct {
	tracker

	req bus.Request
	rsp bus.Response
}

// NewPipelined creates a pipelined driver.
func NewPipelined(name string) *Pipelined {
	return &Pipelined{tracker: tracker{name: name}}
}

// Drive returns the request of this cycle.
func (p *Pipelined) Drive() bus.Request {
	p.req = bus.Request{Cyc: p.inflight != nil}

	if op, ok := p.head(); ok && p.inflight == nil {
		p.present()
		p.req = bus.Request{
			Cyc: true,
			Stb: true,
			We:  op.Write,
			Adr: op.Addr,
			Sel: op.lanes(),
			Dat: op.Data,
		}
	}

	return p.req
}

// Observe records the response of this cycle.
func (p *Pipelined) Observe(rsp bus.Response) {
	p.rsp = rsp
}

// Commit completes and accepts operations.
func (p *Pipelined) Commit() {
	if p.rsp.Done() {
		if p.inflight == nil {
			log.Panicf("initiator: %s: response with nothing in flight", p.name)
		}
		p.complete(p.rsp.Dat, p.rsp.Ack, p.rsp.Err)
	}

	if p.req.Active() && !p.rsp.Stall {
		p.accept()
	}

	p.req = bus.Request{}
	p.rsp = bus.Response{}
	p.cycle++
}

// Reset empties the queue and forgets results.
func (p *Pipelined) Reset() {
	p.reset()
	p.req = bus.Request{}
	p.rsp = bus.Response{}
}
