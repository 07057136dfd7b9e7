package arith

// LFSR models the hardware pseudo-random sequence generator: a 32-bit
// Galois linear-feedback shift register producing one word per step.
// The same seed always yields the same sequence, which keeps fault
// injection and triple sampling reproducible across runs.
type LFSR struct {
	state uint32
}

// lfsrTaps is the feedback polynomial x^32 + x^22 + x^2 + x^1 + 1,
// a maximal-length choice for a 32-bit register.
const lfsrTaps uint32 = 0x80200003

// NewLFSR creates a generator from the given seed. A zero seed would
// lock the register, so it is replaced with a fixed nonzero value.
func NewLFSR(seed uint32) *LFSR {
	if seed == 0 {
		seed = 0xACE1ACE1
	}
	return &LFSR{state: seed}
}

// Next steps the register once and returns the new state.
func (l *LFSR) Next() uint32 {
	lsb := l.state & 1
	l.state >>= 1
	if lsb != 0 {
		l.state ^= lfsrTaps
	}
	return l.state
}

// NextBelow returns a value in [0, n) drawn from the sequence.
// n must be positive.
func (l *LFSR) NextBelow(n int) int {
	return int(l.Next() % uint32(n))
}
