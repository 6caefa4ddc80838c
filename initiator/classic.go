package initiator

import "github.com/sarchlab/wbfabric/bridge"

// Classic drives the classic protocol: the request is held until it is
// acknowledged.
type Classic struct {
	tracker

	req bridge.ClassicRequest
	rsp bridge.ClassicResponse
}

// NewClassic creates a classic driver.
func NewClassic(name string) *Classic {
	return &Classic{tracker: tracker{name: name}}
}

// Drive returns the request of this cycle.
func (c *Classic) Drive() bridge.ClassicRequest {
	c.req = bridge.ClassicRequest{}

	if op, ok := c.head(); ok {
		c.present()
		c.req = bridge.ClassicRequest{
			Cyc: true,
			Stb: true,
			We:  op.Write,
			Adr: op.Addr,
			Sel: op.lanes(),
			Dat: op.Data,
		}
	}

	return c.req
}

// Observe records the response of this cycle.
func (c *Classic) Observe(rsp bridge.ClassicResponse) {
	c.rsp = rsp
}

// Commit completes the held operation once it is acknowledged.
func (c *Classic) Commit() {
	if c.rsp.Done() && c.req.Cyc {
		c.accept()
		c.complete(c.rsp.Dat, c.rsp.Ack, c.rsp.Err)
	}

	c.req = bridge.ClassicRequest{}
	c.rsp = bridge.ClassicResponse{}
	c.cycle++
}

// Reset empties the queue and forgets results.
func (c *Classic) Reset() {
	c.reset()
	c.req = bridge.ClassicRequest{}
	c.rsp = bridge.ClassicResponse{}
}
