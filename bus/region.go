package bus

import "fmt"

// Region is an address map entry. An address belongs to the region when
// (address & Mask) == (Base & Mask).
type Region struct {
	Base uint32 `json:"base"`
	Mask uint32 `json:"mask"`
}

// RegionOfSize returns the region covering size bytes starting at base.
// Size must be a power of two and base must be aligned to it.
func RegionOfSize(base, size uint32) Region {
	return Region{Base: base, Mask: ^(size - 1)}
}

// Contains reports whether addr decodes to the region.
func (r Region) Contains(addr uint32) bool {
	return addr&r.Mask == r.Base&r.Mask
}

// Offset returns addr relative to the region base.
func (r Region) Offset(addr uint32) uint32 {
	return addr &^ r.Mask
}

// Size returns the number of bytes covered by the region when the mask is a
// contiguous high-bit mask. A zero mask covers the whole 4 GiB space and
// reports 0.
func (r Region) Size() uint32 {
	return ^r.Mask + 1
}

// Overlaps reports whether some address decodes to both regions.
//
// Both regions match an address exactly when the address agrees with each
// base on that region's mask bits, which is satisfiable unless the bases
// disagree on a bit both masks care about.
func (r Region) Overlaps(o Region) bool {
	common := r.Mask & o.Mask
	return r.Base&common == o.Base&common
}

func (r Region) String() string {
	return fmt.Sprintf("0x%08X/0x%08X", r.Base, r.Mask)
}
