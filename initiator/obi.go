package initiator

import (
	"log"

	"github.com/sarchlab/wbfabric/bridge"
)

// OBI drives the grant-based protocol. The request is held until granted;
// the next operation may be requested while the previous one awaits its
// response.
type OBI struct {
	tracker

	req bridge.OBIRequest
	rsp bridge.OBIResponse
}

// NewOBI creates an OBI driver.
func NewOBI(name string) *OBI {
	return &OBI{tracker: tracker{name: name}}
}

// Drive returns the request of this cycle.
func (o *OBI) Drive() bridge.OBIRequest {
	o.req = bridge.OBIRequest{}

	if op, ok := o.head(); ok {
		o.present()
		o.req = bridge.OBIRequest{
			Req:   true,
			We:    op.Write,
			Addr:  op.Addr,
			BE:    op.lanes(),
			WData: op.Data,
		}
	}

	return o.req
}

// Observe records the response of this cycle.
func (o *OBI) Observe(rsp bridge.OBIResponse) {
	o.rsp = rsp
}

// Commit completes the outstanding operation and moves a granted one in
// flight.
func (o *OBI) Commit() {
	if o.rsp.RValid {
		if o.inflight == nil {
			log.Panicf("initiator: %s: rvalid with nothing in flight", o.name)
		}
		o.complete(o.rsp.RData, !o.rsp.Err, o.rsp.Err)
	}

	if o.rsp.Gnt {
		if o.inflight != nil {
			log.Panicf("initiator: %s: granted while a request is in flight", o.name)
		}
		o.accept()
	}

	o.req = bridge.OBIRequest{}
	o.rsp = bridge.OBIResponse{}
	o.cycle++
}

// Reset empties the queue and forgets results.
func (o *OBI) Reset() {
	o.reset()
	o.req = bridge.OBIRequest{}
	o.rsp = bridge.OBIResponse{}
}
