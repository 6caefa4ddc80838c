// Package simplebus adapts the pipelined bus to a simple register bus.
//
// The simple bus has no handshake: a device sees write enable, read enable,
// address and write data, returns read data in the same tick, and applies
// writes at the tick boundary.
package simplebus

import "github.com/sarchlab/wbfabric/bus"

// Access is one cycle of the simple register bus.
type Access struct {
	WriteEnable bool
	ReadEnable  bool
	Address     uint32
	WriteData   uint32
}

// Device is a register block on the simple bus.
type Device interface {
	// Access performs the access of the current tick and returns the read
	// data. Writes are staged until Commit.
	Access(a Access) uint32
	// Commit applies staged writes and advances the device by one tick.
	Commit()
}

// Adapter is a pipelined bus target in front of a simple-bus device.
//
// The adapter never stalls. A strobed request is turned into one simple-bus
// access in the cycle it is presented, and the response (with the read data
// captured in that cycle) is returned on the next cycle. Unaligned requests
// do not reach the device and complete with err.
type Adapter struct {
	dev    Device
	region bus.Region

	pending    bool
	pendingErr bool
	data       uint32

	accepted   bool
	misaligned bool
	readData   uint32
}

// NewAdapter creates an adapter for dev. Addresses are passed to the device
// as offsets within region.
func NewAdapter(dev Device, region bus.Region) *Adapter {
	return &Adapter{dev: dev, region: region}
}

// Device returns the wrapped device.
func (a *Adapter) Device() Device {
	return a.dev
}

// Eval implements bus.Target.
func (a *Adapter) Eval(req bus.Request) bus.Response {
	rsp := bus.Response{}
	if a.pending {
		rsp.Err = a.pendingErr
		rsp.Ack = !a.pendingErr
		if rsp.Ack {
			rsp.Dat = a.data
		}
	}

	a.accepted = req.Active()
	a.misaligned = false
	a.readData = 0

	if a.accepted {
		if !bus.Aligned(req.Adr) {
			a.misaligned = true
		} else {
			a.readData = a.dev.Access(Access{
				WriteEnable: req.We,
				ReadEnable:  !req.We,
				Address:     a.region.Offset(req.Adr),
				WriteData:   req.Dat,
			})
		}
	}

	return rsp
}

// Commit implements bus.Target.
func (a *Adapter) Commit() {
	a.dev.Commit()

	a.pending = a.accepted
	a.pendingErr = a.misaligned
	a.data = a.readData

	a.accepted = false
}

// Reset drops any pending response.
func (a *Adapter) Reset() {
	a.pending = false
	a.pendingErr = false
	a.data = 0
	a.accepted = false
}
