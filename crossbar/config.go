package crossbar

import (
	"errors"
	"fmt"

	"github.com/sarchlab/wbfabric/bus"
)

var (
	// ErrOverlap is returned when two targets reachable by the same
	// initiator decode a common address.
	ErrOverlap = errors.New("crossbar: overlapping address ranges")
	// ErrConfig is returned for any other malformed configuration.
	ErrConfig = errors.New("crossbar: invalid configuration")
)

// TargetConfig places one target in the address map.
type TargetConfig struct {
	Name   string     `json:"name"`
	Region bus.Region `json:"region"`
}

// Config is the address map and the access permission matrix.
type Config struct {
	// Targets is the decode order. The first matching target wins.
	Targets []TargetConfig `json:"targets"`

	// Permissions[i][t] allows initiator i to reach target t. A nil matrix
	// allows every initiator to reach every target.
	Permissions [][]bool `json:"permissions,omitempty"`
}

// Permitted reports whether initiator i may reach target t.
func (c Config) Permitted(i, t int) bool {
	if c.Permissions == nil {
		return true
	}
	return c.Permissions[i][t]
}

// Validate checks the configuration for numInitiators initiators.
func (c Config) Validate(numInitiators int) error {
	if numInitiators <= 0 {
		return fmt.Errorf("%w: no initiators", ErrConfig)
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: no targets", ErrConfig)
	}

	names := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("%w: target without a name", ErrConfig)
		}
		if names[t.Name] {
			return fmt.Errorf("%w: duplicate target %q", ErrConfig, t.Name)
		}
		names[t.Name] = true
	}

	if c.Permissions != nil {
		if len(c.Permissions) != numInitiators {
			return fmt.Errorf("%w: permission matrix has %d rows for %d initiators",
				ErrConfig, len(c.Permissions), numInitiators)
		}
		for i, row := range c.Permissions {
			if len(row) != len(c.Targets) {
				return fmt.Errorf("%w: permission row %d has %d entries for %d targets",
					ErrConfig, i, len(row), len(c.Targets))
			}
		}
	}

	return c.checkOverlap(numInitiators)
}

func (c Config) checkOverlap(numInitiators int) error {
	for a := 0; a < len(c.Targets); a++ {
		for b := a + 1; b < len(c.Targets); b++ {
			ta, tb := c.Targets[a], c.Targets[b]
			if !ta.Region.Overlaps(tb.Region) {
				continue
			}

			for i := 0; i < numInitiators; i++ {
				if c.Permitted(i, a) && c.Permitted(i, b) {
					return fmt.Errorf("%w: %s %s and %s %s, both reachable by initiator %d",
						ErrOverlap, ta.Name, ta.Region, tb.Name, tb.Region, i)
				}
			}
		}
	}

	return nil
}
