package soc_test

import (
	"bytes"
	"log"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wbfabric/initiator"
	"github.com/sarchlab/wbfabric/soc"
	"github.com/sarchlab/wbfabric/target"
)

var _ = Describe("System", func() {
	var (
		cfg *soc.Config
		s   *soc.System
	)

	build := func(opts ...soc.Option) {
		var err error
		s, err = soc.New(cfg, opts...)
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		cfg = soc.DefaultConfig()
	})

	It("should refuse an invalid configuration", func() {
		cfg.Targets[0].Latency = 0
		_, err := soc.New(cfg)
		Expect(err).To(HaveOccurred())
	})

	It("should expose its components by name", func() {
		build()

		Expect(s.Initiator("m0")).NotTo(BeNil())
		Expect(s.Initiator("nope")).To(BeNil())
		Expect(s.Target("s1")).To(BeAssignableToTypeOf(&target.Memory{}))
		Expect(s.Memory("s0")).NotTo(BeNil())
		Expect(s.Timer("timer")).NotTo(BeNil())
		Expect(s.SimCtrl("simctrl")).NotTo(BeNil())
		Expect(s.Crossbar().NumTargets()).To(Equal(4))
		Expect(s.Drivers()).To(HaveLen(2))
	})

	It("should start idle", func() {
		build()

		Expect(s.Done()).To(BeTrue())
		Expect(s.RunCycles(10)).To(BeFalse())
		Expect(s.Cycle()).To(BeZero())
	})

	It("should serve both initiators in parallel on different targets", func() {
		build()
		s.Initiator("m0").Push(initiator.Write(0x0000_0010, 0xAAAA0000), initiator.Read(0x0000_0010))
		s.Initiator("m1").Push(initiator.Write(0x0001_0010, 0xBBBB0000), initiator.Read(0x0001_0010))

		Expect(s.Run()).To(Equal(uint64(4)))

		Expect(s.Initiator("m0").Results()[1].Data).To(Equal(uint32(0xAAAA0000)))
		Expect(s.Initiator("m1").Results()[1].Data).To(Equal(uint32(0xBBBB0000)))
		Expect(s.Memory("s1").ReadWord(0x10)).To(Equal(uint32(0xBBBB0000)))
		Expect(s.Stats().Ports[0].StallCycles).To(BeZero())
		Expect(s.Stats().Ports[1].StallCycles).To(BeZero())
	})

	It("should give a contended target to the lower index first", func() {
		build()
		s.Initiator("m0").Push(initiator.Read(0x0))
		s.Initiator("m1").Push(initiator.Read(0x4))

		s.Run()

		m0 := s.Initiator("m0").Results()[0]
		m1 := s.Initiator("m1").Results()[0]
		Expect(m0.Completed).To(Equal(uint64(1)))
		Expect(m1.Issued).To(BeZero())
		Expect(m1.Accepted).To(Equal(uint64(2)))
		Expect(m1.Completed).To(Equal(uint64(3)))
		Expect(s.Stats().Ports[1].StallCycles).To(Equal(uint64(2)))
	})

	It("should answer an unmapped address with err and keep going", func() {
		build()
		s.Initiator("m0").Push(initiator.Read(0xFFFF_FFFF&^0x3), initiator.Write(0x0, 1), initiator.Read(0x0))

		s.Run()

		results := s.Initiator("m0").Results()
		Expect(results).To(HaveLen(3))
		Expect(results[0].Err).To(BeTrue())
		Expect(results[0].Completed).To(Equal(uint64(1)))
		Expect(results[2].Ack).To(BeTrue())
		Expect(results[2].Data).To(Equal(uint32(1)))
		Expect(s.Stats().Ports[0].Unmapped).To(Equal(uint64(1)))
		Expect(s.Stats().Ports[0].Errors).To(Equal(uint64(1)))
	})

	It("should enforce permissions", func() {
		cfg.Permissions = map[string][]string{"m1": {"s1"}}
		build()
		s.Initiator("m1").Push(initiator.Write(0x0, 5), initiator.Write(0x0001_0000, 6))

		s.Run()

		results := s.Initiator("m1").Results()
		Expect(results[0].Err).To(BeTrue())
		Expect(results[1].Ack).To(BeTrue())
		Expect(s.Memory("s0").ReadWord(0x0)).To(BeZero())
		Expect(s.Memory("s1").ReadWord(0x0)).To(Equal(uint32(6)))
	})

	It("should apply byte enables end to end", func() {
		build()
		Expect(s.Memory("s0").WriteWord(0x20, 0x11223344)).To(Succeed())
		s.Initiator("m0").Push(initiator.WriteBytes(0x20, 0xAABBCCDD, 0x6), initiator.Read(0x20))

		s.Run()

		Expect(s.Initiator("m0").Results()[1].Data).To(Equal(uint32(0x11BBCC44)))
	})

	It("should carry classic and OBI initiators through the crossbar", func() {
		cfg.Initiators = []soc.InitiatorConfig{
			{Name: "cpu", Protocol: soc.OBI},
			{Name: "dma", Protocol: soc.Classic, Sources: 2},
		}
		build()

		s.Initiator("cpu").Push(initiator.Write(0x100, 1), initiator.Read(0x100))
		s.Initiator("dma.0").Push(initiator.Write(0x0001_0100, 2), initiator.Read(0x0001_0100))
		s.Initiator("dma.1").Push(initiator.Write(0x0001_0200, 3), initiator.Read(0x0001_0200))

		s.Run()

		Expect(s.Initiator("cpu").Results()[1].Data).To(Equal(uint32(1)))
		Expect(s.Initiator("dma.0").Results()[1].Data).To(Equal(uint32(2)))
		Expect(s.Initiator("dma.1").Results()[1].Data).To(Equal(uint32(3)))
		Expect(s.Stats().Transactions).To(Equal(uint64(6)))
	})

	It("should return the classic bridge to idle after an unmapped access", func() {
		cfg.Initiators = []soc.InitiatorConfig{{Name: "dma", Protocol: soc.Classic}}
		build()
		s.Initiator("dma").Push(initiator.Read(0x2000_0000), initiator.Read(0x0))

		s.Run()

		results := s.Initiator("dma").Results()
		Expect(results[0].Err).To(BeTrue())
		Expect(results[1].Ack).To(BeTrue())
	})

	It("should time a cached memory by hits and misses", func() {
		cache := target.DefaultCacheConfig()
		cfg.Targets[0].Cache = &cache
		build()
		s.Initiator("m0").Push(initiator.Read(0x0), initiator.Read(0x4))

		s.Run()

		results := s.Initiator("m0").Results()
		Expect(results[0].Latency()).To(Equal(uint64(cache.MissLatency)))
		Expect(results[1].Latency()).To(Equal(uint64(cache.HitLatency)))
		Expect(s.Memory("s0").Cache().Stats().Hits).To(Equal(uint64(1)))
	})

	It("should read the free-running timer", func() {
		build()
		for i := 0; i < 5; i++ {
			s.Step()
		}
		s.Initiator("m0").Push(initiator.Read(0x1000_0000 + target.TimerMtime))

		s.Run()

		Expect(s.Initiator("m0").Results()[0].Data).To(Equal(uint32(5)))
	})

	It("should print characters and halt through the control block", func() {
		var out bytes.Buffer
		build(soc.WithOutput(&out))
		s.Initiator("m0").Push(
			initiator.Write(0x1000_1000+target.SimCtrlOut, 'h'),
			initiator.Write(0x1000_1000+target.SimCtrlOut, 'i'),
			initiator.Write(0x1000_1000+target.SimCtrlCtrl, target.SimCtrlHalt),
			initiator.Read(0x0),
		)

		Expect(s.Run()).To(Equal(uint64(5)))

		Expect(out.String()).To(Equal("hi"))
		Expect(s.Halted()).To(BeTrue())
		Expect(s.Initiator("m0").Idle()).To(BeFalse())
	})

	It("should trace completed operations", func() {
		var trace bytes.Buffer
		build(soc.WithLogger(log.New(&trace, "", 0)))
		s.Initiator("m0").Push(initiator.Write(0x8, 0x1234))

		s.Run()

		Expect(trace.String()).To(ContainSubstring("m0"))
		Expect(trace.String()).To(ContainSubstring("W 0x00000008 0x00001234 ack [0..1]"))
	})

	It("should run on the event engine until idle", func() {
		build()
		s.Initiator("m0").Push(initiator.Write(0x0, 1), initiator.Read(0x0))

		Expect(s.Simulate(0)).To(Succeed())

		Expect(s.Idle()).To(BeTrue())
		Expect(s.Cycle()).To(Equal(uint64(4)))
	})

	It("should stop the event engine at the cycle limit", func() {
		build()
		for i := uint32(0); i < 8; i++ {
			s.Initiator("m0").Push(initiator.Read(i * 4))
		}

		Expect(s.Simulate(3)).To(Succeed())

		Expect(s.Cycle()).To(Equal(uint64(3)))
		Expect(s.RunCycles(2)).To(BeTrue())
		Expect(s.Cycle()).To(Equal(uint64(5)))
	})

	It("should reset to a clean state but keep memory", func() {
		build()
		s.Initiator("m0").Push(initiator.Write(0x0, 9), initiator.Read(0x0), initiator.Read(0x4))
		s.RunCycles(3)

		s.Reset()

		Expect(s.Cycle()).To(BeZero())
		Expect(s.Idle()).To(BeTrue())
		Expect(s.Stats().Ports[0].Accepted).To(BeZero())
		Expect(s.Memory("s0").ReadWord(0x0)).To(Equal(uint32(9)))
		Expect(s.Timer("timer").Mtime()).To(BeZero())
	})

	It("should keep every initiator's data intact under heavy backpressure", func() {
		cfg.Initiators = []soc.InitiatorConfig{
			{Name: "cpu", Protocol: soc.Pipelined},
			{Name: "core", Protocol: soc.OBI},
			{Name: "dma", Protocol: soc.Classic, Sources: 2},
		}
		cfg.Targets[0].Latency = 2
		cfg.Targets[0].StallProbability = 0.4
		cfg.Targets[0].Seed = 11
		cfg.Targets[1].Latency = 1
		cfg.Targets[1].StallProbability = 0.3
		cfg.Targets[1].Seed = 12
		build()

		rng := rand.New(rand.NewSource(42))
		want := make(map[string]map[uint32]uint32)
		for k, d := range s.Drivers() {
			want[d.Name()] = make(map[uint32]uint32)
			for j := 0; j < 40; j++ {
				base := uint32(0)
				if rng.Intn(2) == 1 {
					base = 0x0001_0000
				}
				addr := base + uint32(k)*0x400 + uint32(rng.Intn(16))*4
				data := rng.Uint32()
				d.Push(initiator.Write(addr, data))
				want[d.Name()][addr] = data
			}
			for addr := range want[d.Name()] {
				d.Push(initiator.Read(addr))
			}
		}

		Expect(s.RunCycles(100000)).To(BeFalse())

		for _, d := range s.Drivers() {
			for _, r := range d.Results() {
				Expect(r.Ack).To(BeTrue())
				Expect(r.Completed).To(BeNumerically(">", r.Issued))
				if !r.Op.Write {
					Expect(r.Data).To(Equal(want[d.Name()][r.Op.Addr]), d.Name())
				}
			}
		}

		st := s.Stats()
		Expect(st.Transactions).To(Equal(uint64(len(s.Drivers()))*40 + readCount(want)))
		Expect(st.Ports[0].StallCycles + st.Ports[1].StallCycles).To(BeNumerically(">", 0))
	})
})

func readCount(want map[string]map[uint32]uint32) uint64 {
	n := uint64(0)
	for _, addrs := range want {
		n += uint64(len(addrs))
	}
	return n
}
