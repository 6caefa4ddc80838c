// Package bus defines the pipelined bus signal set shared by every initiator,
// bridge, crossbar and target in the fabric.
//
// A pipelined port carries a request (cyc, stb, we, adr, sel, dat) from the
// initiator and a response (dat, ack, err, stall) from the target. All signals
// describe a single clock cycle.
package bus

// SelAll enables all four byte lanes.
const SelAll uint8 = 0xF

// Request is the initiator-to-target half of a pipelined port.
type Request struct {
	// Cyc marks the bus cycle as active. It stays asserted while any
	// transaction of the initiator is still live.
	Cyc bool
	// Stb strobes a new transfer this cycle.
	Stb bool
	// We selects a write transfer.
	We bool
	// Adr is the byte address of the transfer.
	Adr uint32
	// Sel holds the byte lane enables. Only bits 3:0 are meaningful and only
	// for writes.
	Sel uint8
	// Dat is the write data.
	Dat uint32
}

// Active reports whether the request presents a new transfer this cycle.
func (r Request) Active() bool {
	return r.Cyc && r.Stb
}

// Idle returns a request with every signal deasserted.
func Idle() Request {
	return Request{}
}

// Response is the target-to-initiator half of a pipelined port.
type Response struct {
	// Dat is the read data. Valid only together with Ack.
	Dat uint32
	// Ack completes the outstanding transfer successfully.
	Ack bool
	// Err completes the outstanding transfer with a failure.
	Err bool
	// Stall rejects the transfer strobed this cycle; it must be repeated.
	Stall bool
}

// Done reports whether the response completes a transfer.
func (r Response) Done() bool {
	return r.Ack || r.Err
}

// Target is a pipelined bus target driven in two phases per clock cycle.
//
// Eval computes the target's outputs for the current cycle from its
// registered state and the request it sees this cycle. Ack, Err and Dat must
// depend on registered state only; Stall may depend on the request. Eval may
// be called more than once in a cycle and only the last call counts. Commit
// then advances the registered state to the next cycle using the request
// captured by the last Eval.
type Target interface {
	Eval(req Request) Response
	Commit()
}

// Mask expands the byte lane enables into a 32-bit data mask.
func Mask(sel uint8) uint32 {
	var m uint32
	for lane := 0; lane < 4; lane++ {
		if sel&(1<<lane) != 0 {
			m |= 0xFF << (lane * 8)
		}
	}
	return m
}

// Merge replaces the bytes of old selected by sel with the bytes of data.
func Merge(old, data uint32, sel uint8) uint32 {
	m := Mask(sel)
	return (old &^ m) | (data & m)
}

// Aligned reports whether addr is naturally aligned for a 32-bit access.
func Aligned(addr uint32) bool {
	return addr&0x3 == 0
}
