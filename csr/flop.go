package csr

// Flop is a clocked storage element. Q holds the value of the current cycle.
// A value loaded with SetD becomes visible after Commit; without a load the
// flop holds.
type Flop[T any] struct {
	q     T
	d     T
	load  bool
	reset T
}

// NewFlop creates a flop holding the reset value.
func NewFlop[T any](reset T) *Flop[T] {
	return &Flop[T]{q: reset, reset: reset}
}

// Q returns the registered value.
func (f *Flop[T]) Q() T {
	return f.q
}

// SetD loads the value to be stored at the next Commit.
func (f *Flop[T]) SetD(v T) {
	f.d = v
	f.load = true
}

// Commit stores the loaded value, if any.
func (f *Flop[T]) Commit() {
	if f.load {
		f.q = f.d
	}
	f.load = false
}

// Reset returns the flop to its reset value and drops any pending load.
func (f *Flop[T]) Reset() {
	f.q = f.reset
	f.load = false
}
