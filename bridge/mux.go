package bridge

// Mux lets several classic sources share one classic bridge.
//
// Sources are ordered by priority, index 0 first. The highest-priority
// source asserting cyc is selected, and the selection is kept until its
// transfer completes so that the completion reaches the source that issued
// it.
type Mux struct {
	owner    int
	selected int
	done     bool
	rsps     []ClassicResponse
}

// NewMux creates a mux for n sources.
func NewMux(n int) *Mux {
	return &Mux{
		owner:    -1,
		selected: -1,
		rsps:     make([]ClassicResponse, n),
	}
}

// Owner returns the source holding the bridge, or -1.
func (m *Mux) Owner() int {
	return m.owner
}

// Select returns the request forwarded to the bridge this cycle.
func (m *Mux) Select(ins []ClassicRequest) ClassicRequest {
	m.selected = m.owner
	if m.selected < 0 {
		for i, in := range ins {
			if in.Cyc {
				m.selected = i
				break
			}
		}
	}

	if m.selected < 0 {
		return ClassicRequest{}
	}
	return ins[m.selected]
}

// Route returns the response of each source for this cycle. Only the
// selected source observes the bridge response. The returned slice is reused
// by the next call.
func (m *Mux) Route(rsp ClassicResponse) []ClassicResponse {
	for i := range m.rsps {
		m.rsps[i] = ClassicResponse{}
	}
	if m.selected >= 0 {
		m.rsps[m.selected] = rsp
	}
	m.done = rsp.Done()
	return m.rsps
}

// Commit updates the ownership lock.
func (m *Mux) Commit() {
	switch {
	case m.selected < 0:
		m.owner = -1
	case m.done:
		m.owner = -1
	default:
		m.owner = m.selected
	}
	m.selected = -1
	m.done = false
}

// Reset releases the lock.
func (m *Mux) Reset() {
	m.owner = -1
	m.selected = -1
	m.done = false
}
