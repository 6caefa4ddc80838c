package csr

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/wbfabric/simplebus"
)

// ErrRegisterMap is returned for invalid register placements.
var ErrRegisterMap = errors.New("csr: invalid register map")

// Block is a bank of registers addressed by word offset. It is a simple-bus
// device: reads return the register value in the same tick and writes take
// effect when the block commits. Offsets without a register read as zero
// and ignore writes.
type Block struct {
	name    string
	regs    map[uint32]*Subregister
	offsets []uint32
}

// NewBlock creates an empty register block.
func NewBlock(name string) *Block {
	return &Block{
		name: name,
		regs: make(map[uint32]*Subregister),
	}
}

// Name returns the block name.
func (b *Block) Name() string {
	return b.name
}

// Add places r at the given byte offset.
func (b *Block) Add(offset uint32, r *Subregister) error {
	if offset&0x3 != 0 {
		return fmt.Errorf("%w: %s.%s at unaligned offset 0x%X",
			ErrRegisterMap, b.name, r.Name(), offset)
	}
	if prev, ok := b.regs[offset]; ok {
		return fmt.Errorf("%w: %s.%s and %s.%s both at offset 0x%X",
			ErrRegisterMap, b.name, prev.Name(), b.name, r.Name(), offset)
	}

	b.regs[offset] = r
	b.offsets = append(b.offsets, offset)
	sort.Slice(b.offsets, func(i, j int) bool { return b.offsets[i] < b.offsets[j] })

	return nil
}

// Register returns the register at offset, or nil.
func (b *Block) Register(offset uint32) *Subregister {
	return b.regs[offset]
}

// Offsets returns the occupied offsets in ascending order.
func (b *Block) Offsets() []uint32 {
	return append([]uint32(nil), b.offsets...)
}

// Access implements simplebus.Device.
func (b *Block) Access(a simplebus.Access) uint32 {
	r, ok := b.regs[a.Address&^0x3]
	if !ok {
		return 0
	}

	if a.WriteEnable {
		r.Write(a.WriteData)
	}
	if a.ReadEnable {
		return r.Read()
	}
	return 0
}

// Commit implements simplebus.Device.
func (b *Block) Commit() {
	for _, off := range b.offsets {
		b.regs[off].Commit()
	}
}

// Reset resets every register in the block.
func (b *Block) Reset() {
	for _, off := range b.offsets {
		b.regs[off].Reset()
	}
}
