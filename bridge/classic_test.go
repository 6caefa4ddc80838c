package bridge_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wbfabric/bridge"
	"github.com/sarchlab/wbfabric/bus"
)

var _ = Describe("Classic bridge", func() {
	var (
		b      *bridge.Classic
		target *scriptedTarget
	)

	step := func(in bridge.ClassicRequest) (bus.Request, bridge.ClassicResponse) {
		pipe := b.Drive(in)
		rsp := b.Respond(target.Eval(pipe))
		b.Commit()
		target.Commit()
		return pipe, rsp
	}

	write := bridge.ClassicRequest{
		Cyc: true, Stb: true, We: true, Adr: 0x100, Sel: 0x1, Dat: 0x42,
	}

	BeforeEach(func() {
		b = bridge.NewClassic("classic0")
		target = newScriptedTarget(0, 1)
	})

	It("should name its states", func() {
		Expect(bridge.StateIdle.String()).To(Equal("Idle"))
		Expect(bridge.StateAddr.String()).To(Equal("Addr"))
		Expect(bridge.StateData.String()).To(Equal("Data"))
	})

	It("should walk Idle, Addr, Data and back to Idle", func() {
		pipe, rsp := step(write)
		Expect(pipe.Cyc).To(BeFalse())
		Expect(rsp.Done()).To(BeFalse())
		Expect(b.State()).To(Equal(bridge.StateAddr))

		pipe, rsp = step(write)
		Expect(pipe).To(Equal(bus.Request{
			Cyc: true, Stb: true, We: true, Adr: 0x100, Sel: 0x1, Dat: 0x42,
		}))
		Expect(rsp.Done()).To(BeFalse())
		Expect(b.State()).To(Equal(bridge.StateData))

		pipe, rsp = step(write)
		Expect(pipe.Cyc).To(BeTrue())
		Expect(pipe.Stb).To(BeFalse())
		Expect(rsp.Ack).To(BeTrue())
		Expect(b.State()).To(Equal(bridge.StateIdle))

		Expect(target.accepted).To(HaveLen(1))
		Expect(target.accepted[0].Dat).To(Equal(uint32(0x42)))
	})

	It("should latch the request when entering Addr", func() {
		step(write)

		changed := write
		changed.Adr = 0x200
		pipe, _ := step(changed)
		Expect(pipe.Adr).To(Equal(uint32(0x100)))
	})

	DescribeTable("should spend n+1 cycles in Addr for n stall cycles",
		func(n int) {
			target = newScriptedTarget(n, 1)
			step(write)
			Expect(b.State()).To(Equal(bridge.StateAddr))

			cycles := 0
			for b.State() == bridge.StateAddr {
				step(write)
				cycles++
				Expect(cycles).To(BeNumerically("<=", n+1))
			}

			Expect(cycles).To(Equal(n + 1))
			Expect(b.State()).To(Equal(bridge.StateData))
		},
		Entry("no stall", 0),
		Entry("one stall", 1),
		Entry("five stalls", 5),
	)

	It("should wait in Data until the response arrives", func() {
		target = newScriptedTarget(0, 4)
		step(write)
		step(write)

		for i := 0; i < 3; i++ {
			_, rsp := step(write)
			Expect(rsp.Done()).To(BeFalse())
			Expect(b.State()).To(Equal(bridge.StateData))
		}

		_, rsp := step(write)
		Expect(rsp.Ack).To(BeTrue())
		Expect(b.State()).To(Equal(bridge.StateIdle))
	})

	It("should forward errors to the classic side", func() {
		target.err = true
		step(write)
		step(write)
		_, rsp := step(write)
		Expect(rsp.Err).To(BeTrue())
		Expect(rsp.Ack).To(BeFalse())
	})

	It("should panic on a response outside the Data phase", func() {
		b.Drive(bridge.ClassicRequest{})
		b.Respond(bus.Response{Ack: true})
		Expect(b.Commit).To(Panic())
	})
})

var _ = Describe("Mux", func() {
	var m *bridge.Mux

	BeforeEach(func() {
		m = bridge.NewMux(2)
	})

	It("should select the highest priority source", func() {
		ins := []bridge.ClassicRequest{
			{Cyc: true, Stb: true, Adr: 0x10},
			{Cyc: true, Stb: true, Adr: 0x20},
		}
		Expect(m.Select(ins).Adr).To(Equal(uint32(0x10)))

		ins[0] = bridge.ClassicRequest{}
		Expect(m.Select(ins).Adr).To(Equal(uint32(0x20)))
	})

	It("should keep the owner until its completion is delivered", func() {
		ins := []bridge.ClassicRequest{{}, {Cyc: true, Stb: true, Adr: 0x20}}
		Expect(m.Select(ins).Adr).To(Equal(uint32(0x20)))
		m.Route(bridge.ClassicResponse{})
		m.Commit()
		Expect(m.Owner()).To(Equal(1))

		ins[0] = bridge.ClassicRequest{Cyc: true, Stb: true, Adr: 0x10}
		Expect(m.Select(ins).Adr).To(Equal(uint32(0x20)))

		rsps := m.Route(bridge.ClassicResponse{Ack: true, Dat: 7})
		Expect(rsps[0].Done()).To(BeFalse())
		Expect(rsps[1].Ack).To(BeTrue())
		Expect(rsps[1].Dat).To(Equal(uint32(7)))
		m.Commit()
		Expect(m.Owner()).To(Equal(-1))

		Expect(m.Select(ins).Adr).To(Equal(uint32(0x10)))
	})

	It("should forward an idle request when nobody asks", func() {
		Expect(m.Select([]bridge.ClassicRequest{{}, {}})).
			To(Equal(bridge.ClassicRequest{}))
		rsps := m.Route(bridge.ClassicResponse{})
		Expect(rsps).To(HaveLen(2))
		m.Commit()
		Expect(m.Owner()).To(Equal(-1))
	})
})
