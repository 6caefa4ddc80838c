package csr

import "fmt"

// Access restricts which side of the register bus may use a register.
type Access int

// Software access modes.
const (
	ReadWrite Access = iota
	// ReadOnly registers ignore software writes. Hardware may still update.
	ReadOnly
	// WriteOnly registers read back as zero.
	WriteOnly
)

func (a Access) String() string {
	switch a {
	case ReadWrite:
		return "rw"
	case ReadOnly:
		return "ro"
	case WriteOnly:
		return "wo"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Config describes a register. It is fixed once the register is created.
type Config struct {
	Name   string
	Reset  uint32
	Write  WritePolicy
	Read   ReadPolicy
	Access Access
}

// Subregister is one 32-bit register with write arbitration.
//
// During a tick, software may call Write and Read and hardware may call
// Update. Commit resolves the tick:
//
//   - neither write nor update: the value holds
//   - update only: the update value is stored
//   - write only: Apply(policy, value, data) is stored
//   - both: Apply(policy, update, data) is stored, so the software effect is
//     applied on top of the hardware value instead of replacing it
//
// With WriteNone, Apply returns the write data and software wins.
type Subregister struct {
	cfg   Config
	value *Flop[uint32]

	swWrite bool
	swData  uint32
	hwWrite bool
	hwData  uint32
	swRead  bool

	written   bool
	swWritten bool
	read      bool
}

// New creates a register. Policies without implemented semantics are
// rejected here, before any bus traffic.
func New(cfg Config) (*Subregister, error) {
	if err := cfg.Write.Validate(); err != nil {
		return nil, fmt.Errorf("register %q: %w", cfg.Name, err)
	}
	if err := cfg.Read.Validate(); err != nil {
		return nil, fmt.Errorf("register %q: %w", cfg.Name, err)
	}
	if cfg.Access < ReadWrite || cfg.Access > WriteOnly {
		return nil, fmt.Errorf("register %q: unknown access %s", cfg.Name, cfg.Access)
	}

	return &Subregister{
		cfg:   cfg,
		value: NewFlop(cfg.Reset),
	}, nil
}

// MustNew is like New but panics on configuration errors. It is meant for
// registers whose configuration is fixed in code.
func MustNew(cfg Config) *Subregister {
	r, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the register name.
func (r *Subregister) Name() string {
	return r.cfg.Name
}

// Config returns the register configuration.
func (r *Subregister) Config() Config {
	return r.cfg
}

// Value returns the stored value as seen by hardware.
func (r *Subregister) Value() uint32 {
	return r.value.Q()
}

// Write stages a software write for this tick.
func (r *Subregister) Write(data uint32) {
	if r.cfg.Access == ReadOnly {
		return
	}
	r.swWrite = true
	r.swData = data
}

// Update stages a hardware update for this tick.
func (r *Subregister) Update(data uint32) {
	r.hwWrite = true
	r.hwData = data
}

// Read performs a software read. The data is returned in the same tick.
func (r *Subregister) Read() uint32 {
	r.swRead = true
	if r.cfg.Access == WriteOnly {
		return 0
	}
	return r.value.Q()
}

// Next returns the value Commit would store given what was staged so far.
func (r *Subregister) Next() uint32 {
	switch {
	case r.swWrite && r.hwWrite:
		return Apply(r.cfg.Write, r.hwData, r.swData)
	case r.swWrite:
		return Apply(r.cfg.Write, r.value.Q(), r.swData)
	case r.hwWrite:
		return r.hwData
	default:
		return r.value.Q()
	}
}

// Commit ends the tick.
func (r *Subregister) Commit() {
	if r.swWrite || r.hwWrite {
		r.value.SetD(r.Next())
	}
	r.value.Commit()

	r.written = r.swWrite || r.hwWrite
	r.swWritten = r.swWrite
	r.read = r.swRead

	r.swWrite = false
	r.hwWrite = false
	r.swRead = false
}

// Written reports whether the last committed tick stored a software write or
// a hardware update.
func (r *Subregister) Written() bool {
	return r.written
}

// SoftwareWritten reports whether the last committed tick carried a software
// write.
func (r *Subregister) SoftwareWritten() bool {
	return r.swWritten
}

// WasRead reports whether software read the register in the last committed
// tick.
func (r *Subregister) WasRead() bool {
	return r.read
}

// Reset restores the reset value and clears pulses.
func (r *Subregister) Reset() {
	r.value.Reset()
	r.swWrite = false
	r.hwWrite = false
	r.swRead = false
	r.written = false
	r.swWritten = false
	r.read = false
}
