package detect

// loudnessRing is a fixed-capacity FIFO of normalized loudness samples.
// Owned solely by its Detector and recreated each recording cycle.
type loudnessRing struct {
	samples []float64
	next    int
	filled  bool
	sum     float64
}

func newLoudnessRing(capacity int) *loudnessRing {
	return &loudnessRing{samples: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample when the ring is full.
func (r *loudnessRing) Push(v float64) {
	if r.filled {
		r.sum -= r.samples[r.next]
	}
	r.samples[r.next] = v
	r.sum += v
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.filled = true
	}
}

// Full reports whether the ring has reached capacity.
func (r *loudnessRing) Full() bool { return r.filled }

// Len returns the number of live samples, never above capacity.
func (r *loudnessRing) Len() int {
	if r.filled {
		return len(r.samples)
	}
	return r.next
}

// Mean returns the average of the live samples, or 0 when empty.
func (r *loudnessRing) Mean() float64 {
	n := r.Len()
	if n == 0 {
		return 0
	}
	return r.sum / float64(n)
}
