package soc

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sarchlab/wbfabric/initiator"
)

// Script is traffic for a system: the operations each initiator issues, in
// order, keyed by driver name.
type Script map[string][]initiator.Op

// LoadScript loads a Script from a JSON file.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	var script Script
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	return script, nil
}

// Apply queues the script on the drivers of s.
func (sc Script) Apply(s *System) error {
	names := make([]string, 0, len(sc))
	for name := range sc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d := s.Initiator(name)
		if d == nil {
			return fmt.Errorf("script: unknown initiator %q", name)
		}
		d.Push(sc[name]...)
	}

	return nil
}
