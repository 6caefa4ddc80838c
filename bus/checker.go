package bus

import "log"

// Checker watches one pipelined port and fails fast on protocol violations.
//
// A strobed request that is stalled must be presented again, unchanged, on
// the next cycle. A response may not carry ack and err together. Neither rule
// has a defined hardware outcome, so a violation panics.
type Checker struct {
	name string

	stalled    bool
	stalledReq Request
	cycle      uint64
}

// NewChecker creates a checker for the port with the given name.
func NewChecker(name string) *Checker {
	return &Checker{name: name}
}

// Check inspects the signals of the current cycle. It must be called once
// per cycle, after the response is known.
func (c *Checker) Check(req Request, rsp Response) {
	if rsp.Ack && rsp.Err {
		log.Panicf("bus: %s: ack and err asserted together in cycle %d",
			c.name, c.cycle)
	}

	if c.stalled {
		if !req.Active() {
			log.Panicf("bus: %s: stalled request to 0x%08X withdrawn in cycle %d",
				c.name, c.stalledReq.Adr, c.cycle)
		}
		if req != c.stalledReq {
			log.Panicf("bus: %s: stalled request to 0x%08X changed in cycle %d",
				c.name, c.stalledReq.Adr, c.cycle)
		}
	}

	c.stalled = req.Active() && rsp.Stall
	c.stalledReq = req
	c.cycle++
}

// Reset forgets any stalled request.
func (c *Checker) Reset() {
	c.stalled = false
	c.stalledReq = Request{}
	c.cycle = 0
}
