package bus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wbfabric/bus"
)

var _ = Describe("Signals", func() {
	It("should treat a request as active only with cyc and stb", func() {
		Expect(bus.Request{Cyc: true, Stb: true}.Active()).To(BeTrue())
		Expect(bus.Request{Cyc: true}.Active()).To(BeFalse())
		Expect(bus.Request{Stb: true}.Active()).To(BeFalse())
		Expect(bus.Idle().Active()).To(BeFalse())
	})

	It("should treat ack or err as completion", func() {
		Expect(bus.Response{Ack: true}.Done()).To(BeTrue())
		Expect(bus.Response{Err: true}.Done()).To(BeTrue())
		Expect(bus.Response{Stall: true}.Done()).To(BeFalse())
	})

	Describe("byte lanes", func() {
		It("should expand byte enables into a mask", func() {
			Expect(bus.Mask(0b0000)).To(Equal(uint32(0)))
			Expect(bus.Mask(0b0010)).To(Equal(uint32(0x0000FF00)))
			Expect(bus.Mask(0b1001)).To(Equal(uint32(0xFF0000FF)))
			Expect(bus.Mask(bus.SelAll)).To(Equal(uint32(0xFFFFFFFF)))
		})

		It("should merge only the selected bytes", func() {
			Expect(bus.Merge(0x12345678, 0x0000FF00, 0b0010)).
				To(Equal(uint32(0x1234FF78)))
			Expect(bus.Merge(0x12345678, 0xAABBCCDD, bus.SelAll)).
				To(Equal(uint32(0xAABBCCDD)))
			Expect(bus.Merge(0x12345678, 0xAABBCCDD, 0)).
				To(Equal(uint32(0x12345678)))
		})
	})

	It("should check word alignment", func() {
		Expect(bus.Aligned(0x1000)).To(BeTrue())
		Expect(bus.Aligned(0x1002)).To(BeFalse())
	})
})

var _ = Describe("Region", func() {
	r := bus.RegionOfSize(0x0001_0000, 0x1_0000)

	It("should decode addresses by base and mask", func() {
		Expect(r.Mask).To(Equal(uint32(0xFFFF_0000)))
		Expect(r.Contains(0x0001_0000)).To(BeTrue())
		Expect(r.Contains(0x0001_FFFF)).To(BeTrue())
		Expect(r.Contains(0x0000_FFFF)).To(BeFalse())
		Expect(r.Contains(0x0002_0000)).To(BeFalse())
	})

	It("should compute offsets and size", func() {
		Expect(r.Offset(0x0001_1234)).To(Equal(uint32(0x1234)))
		Expect(r.Size()).To(Equal(uint32(0x1_0000)))
	})

	It("should detect overlapping regions", func() {
		low := bus.RegionOfSize(0x0000_0000, 0x1_0000)
		inner := bus.RegionOfSize(0x0001_1000, 0x1000)

		Expect(r.Overlaps(low)).To(BeFalse())
		Expect(r.Overlaps(inner)).To(BeTrue())
		Expect(inner.Overlaps(r)).To(BeTrue())
		Expect(r.Overlaps(bus.Region{})).To(BeTrue())
	})
})

var _ = Describe("Checker", func() {
	var c *bus.Checker

	req := bus.Request{Cyc: true, Stb: true, Adr: 0x100, Sel: bus.SelAll}

	BeforeEach(func() {
		c = bus.NewChecker("m0")
	})

	It("should accept a stalled request that is held", func() {
		c.Check(req, bus.Response{Stall: true})
		c.Check(req, bus.Response{Stall: true})
		Expect(func() { c.Check(req, bus.Response{}) }).NotTo(Panic())
	})

	It("should panic when a stalled request is withdrawn", func() {
		c.Check(req, bus.Response{Stall: true})
		Expect(func() { c.Check(bus.Request{Cyc: true}, bus.Response{}) }).
			To(Panic())
	})

	It("should panic when a stalled request changes", func() {
		c.Check(req, bus.Response{Stall: true})
		moved := req
		moved.Adr = 0x104
		Expect(func() { c.Check(moved, bus.Response{}) }).To(Panic())
	})

	It("should panic on ack and err together", func() {
		Expect(func() { c.Check(req, bus.Response{Ack: true, Err: true}) }).
			To(Panic())
	})

	It("should forget the stall on reset", func() {
		c.Check(req, bus.Response{Stall: true})
		c.Reset()
		Expect(func() { c.Check(bus.Idle(), bus.Response{}) }).NotTo(Panic())
	})
})
