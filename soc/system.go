// Package soc assembles initiators, protocol bridges, the crossbar and
// targets into a cycle-accurate system.
//
// Every cycle is evaluated in two phases. First all combinational outputs are
// computed in dependency order: initiator drivers, bridges, crossbar with its
// targets, then the responses back through the bridges to the drivers. Then
// every registered element commits.
package soc

import (
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/wbfabric/bridge"
	"github.com/sarchlab/wbfabric/bus"
	"github.com/sarchlab/wbfabric/crossbar"
	"github.com/sarchlab/wbfabric/initiator"
	"github.com/sarchlab/wbfabric/simplebus"
	"github.com/sarchlab/wbfabric/target"
)

// PortStats holds the statistics of one initiator port.
type PortStats struct {
	Name string
	crossbar.Statistics
}

// Stats holds system statistics.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Transactions is the number of completed operations over all drivers.
	Transactions uint64
	// Ports holds per-port crossbar counters in configuration order.
	Ports []PortStats
}

// port is one crossbar initiator port together with the driver and bridge
// logic in front of it.
type port struct {
	cfg     InitiatorConfig
	checker *bus.Checker

	pipelined *initiator.Pipelined

	obiDriver *initiator.OBI
	obi       *bridge.OBI

	sources    []*initiator.Classic
	classicIns []bridge.ClassicRequest
	mux        *bridge.Mux
	classic    *bridge.Classic
}

// drive computes the pipelined request of the port for this cycle.
func (p *port) drive() bus.Request {
	switch {
	case p.pipelined != nil:
		return p.pipelined.Drive()
	case p.obi != nil:
		return p.obi.Drive(p.obiDriver.Drive())
	default:
		for k, src := range p.sources {
			p.classicIns[k] = src.Drive()
		}
		return p.classic.Drive(p.mux.Select(p.classicIns))
	}
}

// respond hands the pipelined response back to the drivers.
func (p *port) respond(rsp bus.Response) {
	switch {
	case p.pipelined != nil:
		p.pipelined.Observe(rsp)
	case p.obi != nil:
		p.obiDriver.Observe(p.obi.Respond(rsp))
	default:
		outs := p.mux.Route(p.classic.Respond(rsp))
		for k, src := range p.sources {
			src.Observe(outs[k])
		}
	}
}

func (p *port) commit() {
	switch {
	case p.pipelined != nil:
		p.pipelined.Commit()
	case p.obi != nil:
		p.obiDriver.Commit()
		p.obi.Commit()
	default:
		for _, src := range p.sources {
			src.Commit()
		}
		p.mux.Commit()
		p.classic.Commit()
	}
}

func (p *port) reset() {
	p.checker.Reset()
	switch {
	case p.pipelined != nil:
		p.pipelined.Reset()
	case p.obi != nil:
		p.obiDriver.Reset()
		p.obi.Reset()
	default:
		for _, src := range p.sources {
			src.Reset()
		}
		p.mux.Reset()
		p.classic.Reset()
	}
}

// System is a complete bus system.
type System struct {
	*sim.TickingComponent

	cfg    *Config
	output io.Writer
	logger *log.Logger

	ports   []*port
	drivers []initiator.Driver
	byName  map[string]initiator.Driver
	logged  []int

	xbar     *crossbar.Crossbar
	targets  map[string]bus.Target
	memories map[string]*target.Memory
	timers   map[string]*target.Timer
	simctrls map[string]*target.SimCtrl

	reqs  []bus.Request
	cycle uint64
	limit uint64

	engine sim.Engine
}

// Option configures a System.
type Option func(*System)

// WithOutput sets the writer that receives characters written to SimCtrl
// targets. Default: io.Discard.
func WithOutput(w io.Writer) Option {
	return func(s *System) {
		s.output = w
	}
}

// WithLogger enables a trace line for every completed operation.
func WithLogger(l *log.Logger) Option {
	return func(s *System) {
		s.logger = l
	}
}

// New builds a system from cfg.
func New(cfg *Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{
		cfg:      cfg.Clone(),
		output:   io.Discard,
		byName:   make(map[string]initiator.Driver),
		targets:  make(map[string]bus.Target),
		memories: make(map[string]*target.Memory),
		timers:   make(map[string]*target.Timer),
		simctrls: make(map[string]*target.SimCtrl),
		reqs:     make([]bus.Request, len(cfg.Initiators)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, ic := range s.cfg.Initiators {
		s.ports = append(s.ports, s.buildPort(ic))
	}
	s.logged = make([]int, len(s.drivers))

	targets := make([]bus.Target, 0, len(s.cfg.Targets))
	for _, tc := range s.cfg.Targets {
		t, err := s.buildTarget(tc)
		if err != nil {
			return nil, err
		}
		s.targets[tc.Name] = t
		targets = append(targets, t)
	}

	xbar, err := crossbar.New(s.cfg.crossbarConfig(), len(s.ports), targets)
	if err != nil {
		return nil, fmt.Errorf("failed to build crossbar: %w", err)
	}
	s.xbar = xbar

	s.engine = sim.NewSerialEngine()
	s.TickingComponent = sim.NewTickingComponent(
		"System", s.engine, sim.Freq(s.cfg.FreqMHz)*sim.MHz, s)

	return s, nil
}

func (s *System) buildPort(ic InitiatorConfig) *port {
	p := &port{cfg: ic, checker: bus.NewChecker(ic.Name)}

	switch ic.Protocol {
	case Pipelined:
		p.pipelined = initiator.NewPipelined(ic.Name)
		s.addDriver(p.pipelined)
	case OBI:
		p.obiDriver = initiator.NewOBI(ic.Name)
		p.obi = bridge.NewOBI(ic.Name)
		s.addDriver(p.obiDriver)
	case Classic:
		n := max(ic.Sources, 1)
		for k := 0; k < n; k++ {
			name := ic.Name
			if n > 1 {
				name = fmt.Sprintf("%s.%d", ic.Name, k)
			}
			src := initiator.NewClassic(name)
			p.sources = append(p.sources, src)
			s.addDriver(src)
		}
		p.classicIns = make([]bridge.ClassicRequest, n)
		p.mux = bridge.NewMux(n)
		p.classic = bridge.NewClassic(ic.Name)
	}

	return p
}

func (s *System) addDriver(d initiator.Driver) {
	s.drivers = append(s.drivers, d)
	s.byName[d.Name()] = d
}

func (s *System) buildTarget(tc TargetConfig) (bus.Target, error) {
	region := tc.Region()

	switch tc.Kind {
	case Memory:
		m, err := target.NewMemory(tc.Name, target.MemoryConfig{
			Region:           region,
			Size:             tc.Size,
			Latency:          tc.Latency,
			StallProbability: tc.StallProbability,
			Seed:             tc.Seed,
			Cache:            tc.Cache,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build target: %w", err)
		}
		s.memories[tc.Name] = m
		return m, nil
	case Timer:
		t := target.NewTimer(tc.Name)
		s.timers[tc.Name] = t
		return simplebus.NewAdapter(t, region), nil
	case SimCtrl:
		c := target.NewSimCtrl(tc.Name, s.output)
		s.simctrls[tc.Name] = c
		return simplebus.NewAdapter(c, region), nil
	default:
		return nil, fmt.Errorf("target %q: unknown kind %q", tc.Name, tc.Kind)
	}
}

// Config returns a copy of the system configuration.
func (s *System) Config() *Config {
	return s.cfg.Clone()
}

// Crossbar returns the routing fabric.
func (s *System) Crossbar() *crossbar.Crossbar {
	return s.xbar
}

// Initiator returns the driver with the given name, or nil. Classic ports
// with several sources name their drivers "<port>.<index>".
func (s *System) Initiator(name string) initiator.Driver {
	return s.byName[name]
}

// Drivers returns every driver in configuration order.
func (s *System) Drivers() []initiator.Driver {
	return s.drivers
}

// Target returns the bus target with the given name, or nil.
func (s *System) Target(name string) bus.Target {
	return s.targets[name]
}

// Memory returns the memory target with the given name, or nil.
func (s *System) Memory(name string) *target.Memory {
	return s.memories[name]
}

// Timer returns the timer target with the given name, or nil.
func (s *System) Timer(name string) *target.Timer {
	return s.timers[name]
}

// SimCtrl returns the simulation control target with the given name, or nil.
func (s *System) SimCtrl(name string) *target.SimCtrl {
	return s.simctrls[name]
}

// Cycle returns the number of simulated cycles.
func (s *System) Cycle() uint64 {
	return s.cycle
}

// Halted reports whether software halted the system through a SimCtrl
// target.
func (s *System) Halted() bool {
	for _, c := range s.simctrls {
		if c.Halted() {
			return true
		}
	}
	return false
}

// Idle reports whether every driver has run out of work.
func (s *System) Idle() bool {
	for _, d := range s.drivers {
		if !d.Idle() {
			return false
		}
	}
	return true
}

// Done reports whether the system halted or went idle.
func (s *System) Done() bool {
	return s.Halted() || s.Idle()
}

// Step simulates exactly one cycle.
func (s *System) Step() {
	for i, p := range s.ports {
		s.reqs[i] = p.drive()
	}

	rsps := s.xbar.Eval(s.reqs)

	for i, p := range s.ports {
		p.checker.Check(s.reqs[i], rsps[i])
		p.respond(rsps[i])
	}

	for _, p := range s.ports {
		p.commit()
	}
	s.xbar.Commit()

	s.trace()
	s.cycle++
}

func (s *System) trace() {
	for k, d := range s.drivers {
		results := d.Results()
		if s.logger != nil {
			for _, r := range results[s.logged[k]:] {
				s.logger.Printf("%8d %-10s %s", s.cycle, d.Name(), FormatResult(r))
			}
		}
		s.logged[k] = len(results)
	}
}

// Tick simulates one cycle and reports whether there is work left. It
// implements sim.Ticker, so the engine keeps scheduling ticks until the
// system halts, goes idle, or reaches the limit given to Simulate.
func (s *System) Tick() bool {
	s.Step()

	if s.limit != 0 && s.cycle >= s.limit {
		return false
	}
	return !s.Done()
}

// Run simulates until the system halts or goes idle and returns the number
// of cycles simulated.
func (s *System) Run() uint64 {
	start := s.cycle
	for !s.Done() {
		s.Step()
	}
	return s.cycle - start
}

// RunCycles simulates at most the given number of cycles. It returns true if
// the system still has work, false if it halted or went idle.
func (s *System) RunCycles(cycles uint64) bool {
	for n := uint64(0); n < cycles && !s.Done(); n++ {
		s.Step()
	}
	return !s.Done()
}

// Simulate runs the system on the event engine at the configured frequency
// for at most maxCycles cycles. Zero means no limit.
func (s *System) Simulate(maxCycles uint64) error {
	if s.Done() {
		return nil
	}

	s.limit = 0
	if maxCycles != 0 {
		s.limit = s.cycle + maxCycles
	}
	defer func() { s.limit = 0 }()

	s.TickLater()

	return s.engine.Run()
}

// Stats returns system statistics.
func (s *System) Stats() Stats {
	st := Stats{Cycles: s.cycle}
	for _, d := range s.drivers {
		st.Transactions += uint64(len(d.Results()))
	}
	for i, p := range s.ports {
		st.Ports = append(st.Ports, PortStats{
			Name:       p.cfg.Name,
			Statistics: s.xbar.Stats(i),
		})
	}
	return st
}

// Reset returns every component to its reset state. Memory contents are
// kept.
func (s *System) Reset() {
	for _, p := range s.ports {
		p.reset()
	}
	s.xbar.Reset()

	for _, t := range s.targets {
		switch t := t.(type) {
		case *target.Memory:
			t.Reset()
		case *simplebus.Adapter:
			t.Reset()
		}
	}
	for _, t := range s.timers {
		t.Reset()
	}
	for _, c := range s.simctrls {
		c.Reset()
	}

	for k := range s.logged {
		s.logged[k] = 0
	}
	s.cycle = 0
	s.limit = 0
}

// FormatResult renders a completed operation as a trace line.
func FormatResult(r initiator.Result) string {
	op := "R"
	if r.Op.Write {
		op = "W"
	}

	status := "ack"
	if r.Err {
		status = "err"
	}

	data := r.Data
	if r.Op.Write {
		data = r.Op.Data
	}

	return fmt.Sprintf("%s 0x%08X 0x%08X %s [%d..%d]",
		op, r.Op.Addr, data, status, r.Issued, r.Completed)
}
