package soc

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/sarchlab/wbfabric/bus"
	"github.com/sarchlab/wbfabric/crossbar"
	"github.com/sarchlab/wbfabric/target"
)

// Protocol is the native protocol of an initiator port.
type Protocol string

// Supported initiator protocols.
const (
	Pipelined Protocol = "pipelined"
	Classic   Protocol = "classic"
	OBI       Protocol = "obi"
)

// Kind is the kind of a target.
type Kind string

// Supported target kinds.
const (
	Memory  Kind = "memory"
	Timer   Kind = "timer"
	SimCtrl Kind = "simctrl"
)

// peripheralSize is the region size used by register targets when no mask is
// configured.
const peripheralSize = 0x1000

// InitiatorConfig describes one crossbar initiator port.
type InitiatorConfig struct {
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`

	// Sources is the number of classic initiators sharing the port through a
	// priority mux. Zero and one both mean a single source.
	Sources int `json:"sources,omitempty"`
}

// TargetConfig describes one crossbar target port.
type TargetConfig struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	Base uint32 `json:"base"`
	// Mask selects the decoded address bits. When zero, the mask is derived
	// from Size (memory) or a 4 KiB register window (peripherals).
	Mask uint32 `json:"mask,omitempty"`

	// Memory parameters.
	Size             uint64  `json:"size,omitempty"`
	Latency          int     `json:"latency,omitempty"`
	StallProbability float64 `json:"stall_probability,omitempty"`
	Seed             int64   `json:"seed,omitempty"`

	// Cache optionally puts a cache in front of a memory. Latency is then
	// taken from the cache.
	Cache *target.CacheConfig `json:"cache,omitempty"`
}

// Region returns the decoded address range of the target.
func (t TargetConfig) Region() bus.Region {
	if t.Mask != 0 {
		return bus.Region{Base: t.Base, Mask: t.Mask}
	}
	if t.Kind == Memory {
		return bus.RegionOfSize(t.Base, uint32(t.Size))
	}
	return bus.RegionOfSize(t.Base, peripheralSize)
}

// Config describes a complete system.
type Config struct {
	// FreqMHz is the bus clock used when the system runs on the event
	// engine. Default: 100 MHz.
	FreqMHz float64 `json:"freq_mhz"`

	Initiators []InitiatorConfig `json:"initiators"`
	Targets    []TargetConfig    `json:"targets"`

	// Permissions lists the targets each initiator may reach. Initiators
	// without an entry reach every target.
	Permissions map[string][]string `json:"permissions,omitempty"`
}

// DefaultConfig returns two pipelined initiators in front of two 64 KiB
// memories, a timer and a simulation control block.
func DefaultConfig() *Config {
	return &Config{
		FreqMHz: 100,
		Initiators: []InitiatorConfig{
			{Name: "m0", Protocol: Pipelined},
			{Name: "m1", Protocol: Pipelined},
		},
		Targets: []TargetConfig{
			{Name: "s0", Kind: Memory, Base: 0x0000_0000, Size: 0x1_0000, Latency: 1},
			{Name: "s1", Kind: Memory, Base: 0x0001_0000, Size: 0x1_0000, Latency: 1},
			{Name: "timer", Kind: Timer, Base: 0x1000_0000},
			{Name: "simctrl", Kind: SimCtrl, Base: 0x1000_1000},
		},
	}
}

// LoadConfig loads a Config from a JSON file. A missing freq_mhz keeps the
// default clock; initiators and targets come only from the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read system config file: %w", err)
	}

	config := &Config{FreqMHz: DefaultConfig().FreqMHz}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse system config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize system config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write system config file: %w", err)
	}

	return nil
}

// Validate checks names, parameters and the address map.
func (c *Config) Validate() error {
	if c.FreqMHz <= 0 {
		return fmt.Errorf("freq_mhz must be > 0")
	}
	if len(c.Initiators) == 0 {
		return fmt.Errorf("at least one initiator is required")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	initiators := make(map[string]bool)
	for _, ic := range c.Initiators {
		if err := ic.validate(); err != nil {
			return err
		}
		if initiators[ic.Name] {
			return fmt.Errorf("duplicate initiator %q", ic.Name)
		}
		initiators[ic.Name] = true
	}

	targets := make(map[string]bool)
	for _, tc := range c.Targets {
		if err := tc.validate(); err != nil {
			return err
		}
		if targets[tc.Name] {
			return fmt.Errorf("duplicate target %q", tc.Name)
		}
		targets[tc.Name] = true
	}

	for name, allowed := range c.Permissions {
		if !initiators[name] {
			return fmt.Errorf("permissions for unknown initiator %q", name)
		}
		for _, t := range allowed {
			if !targets[t] {
				return fmt.Errorf("initiator %q: permission for unknown target %q", name, t)
			}
		}
	}

	if err := c.crossbarConfig().Validate(len(c.Initiators)); err != nil {
		return fmt.Errorf("invalid address map: %w", err)
	}

	return nil
}

func (ic InitiatorConfig) validate() error {
	if ic.Name == "" {
		return fmt.Errorf("initiator name must not be empty")
	}
	switch ic.Protocol {
	case Pipelined, OBI:
		if ic.Sources > 1 {
			return fmt.Errorf("initiator %q: only classic ports take several sources", ic.Name)
		}
	case Classic:
	default:
		return fmt.Errorf("initiator %q: unknown protocol %q", ic.Name, ic.Protocol)
	}
	if ic.Sources < 0 {
		return fmt.Errorf("initiator %q: sources must be >= 0", ic.Name)
	}
	return nil
}

func (tc TargetConfig) validate() error {
	if tc.Name == "" {
		return fmt.Errorf("target name must not be empty")
	}
	switch tc.Kind {
	case Memory:
		if tc.Size == 0 {
			return fmt.Errorf("target %q: size must be > 0", tc.Name)
		}
		if tc.Cache == nil && tc.Latency < 1 {
			return fmt.Errorf("target %q: latency must be >= 1", tc.Name)
		}
		if tc.Cache != nil {
			if err := tc.Cache.Validate(); err != nil {
				return fmt.Errorf("target %q: %w", tc.Name, err)
			}
			if tc.Size%uint64(tc.Cache.BlockSize) != 0 {
				return fmt.Errorf("target %q: size must be a multiple of the cache block size", tc.Name)
			}
		}
		if tc.StallProbability < 0 || tc.StallProbability >= 1 {
			return fmt.Errorf("target %q: stall_probability must be in [0, 1)", tc.Name)
		}
	case Timer, SimCtrl:
		if tc.Cache != nil {
			return fmt.Errorf("target %q: only memories take a cache", tc.Name)
		}
	default:
		return fmt.Errorf("target %q: unknown kind %q", tc.Name, tc.Kind)
	}
	return tc.validateRegion()
}

// validateRegion rejects address windows that would leave part of the
// target unreachable or decode non-contiguous addresses.
func (tc TargetConfig) validateRegion() error {
	if tc.Mask != 0 {
		if inv := ^tc.Mask; inv&(inv+1) != 0 {
			return fmt.Errorf("target %q: mask 0x%08X is not contiguous", tc.Name, tc.Mask)
		}
		if tc.Base&^tc.Mask != 0 {
			return fmt.Errorf("target %q: base 0x%08X is not aligned to mask 0x%08X",
				tc.Name, tc.Base, tc.Mask)
		}
		if tc.Kind == Memory && tc.Size > uint64(^tc.Mask)+1 {
			return fmt.Errorf("target %q: size 0x%X exceeds the window of mask 0x%08X",
				tc.Name, tc.Size, tc.Mask)
		}
		return nil
	}

	size := uint64(peripheralSize)
	if tc.Kind == Memory {
		size = tc.Size
	}
	if size > 1<<32 {
		return fmt.Errorf("target %q: size 0x%X exceeds the 32-bit address space", tc.Name, size)
	}
	if size&(size-1) != 0 {
		return fmt.Errorf("target %q: size 0x%X is not a power of two", tc.Name, size)
	}
	if uint64(tc.Base)&(size-1) != 0 {
		return fmt.Errorf("target %q: base 0x%08X is not aligned to size 0x%X",
			tc.Name, tc.Base, size)
	}
	return nil
}

// crossbarConfig builds the crossbar address map and permission matrix.
func (c *Config) crossbarConfig() crossbar.Config {
	xc := crossbar.Config{}
	for _, tc := range c.Targets {
		xc.Targets = append(xc.Targets, crossbar.TargetConfig{
			Name:   tc.Name,
			Region: tc.Region(),
		})
	}

	if len(c.Permissions) == 0 {
		return xc
	}

	xc.Permissions = make([][]bool, len(c.Initiators))
	for i, ic := range c.Initiators {
		row := make([]bool, len(c.Targets))
		allowed, restricted := c.Permissions[ic.Name]
		for t, tc := range c.Targets {
			row[t] = !restricted || slices.Contains(allowed, tc.Name)
		}
		xc.Permissions[i] = row
	}

	return xc
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := &Config{
		FreqMHz:    c.FreqMHz,
		Initiators: append([]InitiatorConfig(nil), c.Initiators...),
		Targets:    append([]TargetConfig(nil), c.Targets...),
	}

	for i, tc := range clone.Targets {
		if tc.Cache != nil {
			cache := *tc.Cache
			clone.Targets[i].Cache = &cache
		}
	}

	if c.Permissions != nil {
		clone.Permissions = make(map[string][]string, len(c.Permissions))
		for name, allowed := range c.Permissions {
			clone.Permissions[name] = append([]string(nil), allowed...)
		}
	}

	return clone
}
