// Package bridge converts initiator-side bus protocols into the pipelined
// bus protocol.
//
// Both bridges allow a single outstanding transaction. Each cycle the owner
// calls Drive with the initiator's request to obtain the pipelined request,
// Respond with the pipelined response to obtain the initiator's response,
// and finally Commit at the tick boundary.
package bridge

import (
	"log"

	"github.com/sarchlab/wbfabric/bus"
)

// OBIRequest is the request channel of a grant-based (OBI) initiator.
type OBIRequest struct {
	Req   bool
	We    bool
	Addr  uint32
	BE    uint8
	WData uint32
}

// OBIResponse is the grant and response channel returned to an OBI
// initiator.
type OBIResponse struct {
	// Gnt accepts the request presented this cycle.
	Gnt bool
	// RValid completes the granted request.
	RValid bool
	Err    bool
	RData  uint32
}

// OBI bridges a grant-based initiator to the pipelined bus.
//
// The request is forwarded as stb; cyc stays asserted while a transaction is
// outstanding. The grant is given when the target does not stall and no
// transaction is outstanding, or the outstanding one completes in the same
// cycle.
type OBI struct {
	name        string
	outstanding bool

	req  OBIRequest
	pipe bus.Request
	rsp  bus.Response
}

// NewOBI creates an OBI bridge.
func NewOBI(name string) *OBI {
	return &OBI{name: name}
}

// Name returns the bridge name.
func (b *OBI) Name() string {
	return b.name
}

// Outstanding reports whether a granted transaction awaits its response.
func (b *OBI) Outstanding() bool {
	return b.outstanding
}

// Drive converts the initiator request of this cycle.
func (b *OBI) Drive(req OBIRequest) bus.Request {
	b.req = req
	b.pipe = bus.Request{
		Cyc: req.Req || b.outstanding,
		Stb: req.Req,
		We:  req.We,
		Adr: req.Addr,
		Sel: req.BE,
		Dat: req.WData,
	}
	return b.pipe
}

// Respond converts the pipelined response of this cycle.
func (b *OBI) Respond(rsp bus.Response) OBIResponse {
	b.rsp = rsp
	completing := rsp.Done()

	return OBIResponse{
		Gnt:    b.req.Req && !rsp.Stall && (!b.outstanding || completing),
		RValid: completing,
		Err:    rsp.Err,
		RData:  rsp.Dat,
	}
}

// Commit updates the outstanding state.
func (b *OBI) Commit() {
	accepted := b.pipe.Stb && !b.rsp.Stall
	completing := b.rsp.Done()

	if completing && !b.outstanding {
		log.Panicf("bridge: %s: response without an outstanding request", b.name)
	}
	if accepted && b.outstanding && !completing {
		log.Panicf("bridge: %s: second request accepted while one is outstanding",
			b.name)
	}

	b.outstanding = accepted || (b.outstanding && !completing)

	b.req = OBIRequest{}
	b.pipe = bus.Request{}
	b.rsp = bus.Response{}
}

// Reset clears the outstanding state.
func (b *OBI) Reset() {
	b.outstanding = false
	b.req = OBIRequest{}
	b.pipe = bus.Request{}
	b.rsp = bus.Response{}
}
