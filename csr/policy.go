// Package csr models memory-mapped control/status registers.
//
// Each Subregister arbitrates, per clock tick, between a software write
// arriving over the register bus and a hardware update driven by the
// peripheral that owns the register. The on-write policy decides how the
// software write data combines with the value being stored, so hardware
// status bits are never lost to a racing software write.
package csr

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPolicy is returned when a register is configured with a
// policy that is declared but has no implemented semantics.
var ErrUnsupportedPolicy = errors.New("csr: unsupported policy")

// WritePolicy describes how a software write affects the stored value.
type WritePolicy int

// Write policies.
const (
	// WriteNone stores the software write data verbatim.
	WriteNone WritePolicy = iota
	SetOnWriteOne
	ClearOnWriteOne
	ToggleOnWriteOne
	SetOnWriteZero
	ClearOnWriteZero
	ToggleOnWriteZero

	// ClearAllOnWrite and SetAllOnWrite are declared for completeness of the
	// taxonomy. They are rejected at configuration time.
	ClearAllOnWrite
	SetAllOnWrite
)

var writePolicyNames = map[WritePolicy]string{
	WriteNone:         "none",
	SetOnWriteOne:     "w1s",
	ClearOnWriteOne:   "w1c",
	ToggleOnWriteOne:  "w1t",
	SetOnWriteZero:    "w0s",
	ClearOnWriteZero:  "w0c",
	ToggleOnWriteZero: "w0t",
	ClearAllOnWrite:   "wc",
	SetAllOnWrite:     "ws",
}

func (p WritePolicy) String() string {
	if name, ok := writePolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("WritePolicy(%d)", int(p))
}

// Validate returns an error if the policy cannot be used.
func (p WritePolicy) Validate() error {
	switch p {
	case WriteNone, SetOnWriteOne, ClearOnWriteOne, ToggleOnWriteOne,
		SetOnWriteZero, ClearOnWriteZero, ToggleOnWriteZero:
		return nil
	case ClearAllOnWrite, SetAllOnWrite:
		return fmt.Errorf("%w: write policy %s", ErrUnsupportedPolicy, p)
	default:
		return fmt.Errorf("%w: unknown write policy %d", ErrUnsupportedPolicy, int(p))
	}
}

// ReadPolicy describes a side effect of a software read.
type ReadPolicy int

// Read policies. Only ReadNone is implemented.
const (
	ReadNone ReadPolicy = iota
	ClearOnRead
	SetOnRead
)

func (p ReadPolicy) String() string {
	switch p {
	case ReadNone:
		return "none"
	case ClearOnRead:
		return "rc"
	case SetOnRead:
		return "rs"
	default:
		return fmt.Sprintf("ReadPolicy(%d)", int(p))
	}
}

// Validate returns an error if the policy cannot be used.
func (p ReadPolicy) Validate() error {
	if p == ReadNone {
		return nil
	}
	return fmt.Errorf("%w: read policy %s", ErrUnsupportedPolicy, p)
}

// Apply combines software write data with base according to policy. Base is
// the hardware update value when one is present this tick, otherwise the
// current register value.
//
// Apply panics on policies rejected by Validate.
func Apply(policy WritePolicy, base, data uint32) uint32 {
	switch policy {
	case WriteNone:
		return data
	case SetOnWriteOne:
		return base | data
	case ClearOnWriteOne:
		return base &^ data
	case ToggleOnWriteOne:
		return base ^ data
	case SetOnWriteZero:
		return base | ^data
	case ClearOnWriteZero:
		return base & data
	case ToggleOnWriteZero:
		return base ^ ^data
	default:
		panic(fmt.Sprintf("csr: cannot apply write policy %s", policy))
	}
}
