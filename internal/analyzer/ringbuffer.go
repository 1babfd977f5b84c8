package analyzer

// ringBuffer stores the two capture channels as parallel fixed-length arrays
// with a shared write cursor. It is not self-synchronizing: the engine's
// buffer mutex covers every call. There is exactly one writer (the capture
// goroutine); readers copy bounded snapshots and never see slots ahead of the
// cursor.
type ringBuffer struct {
	left  []float64
	right []float64
	pos   int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		left:  make([]float64, capacity),
		right: make([]float64, capacity),
	}
}

func (rb *ringBuffer) capacity() int {
	return len(rb.left)
}

// write appends one block of samples to both channels, advancing the cursor
// modulo capacity. left and right must be the same length.
func (rb *ringBuffer) write(left, right []float64) {
	pos := rb.pos
	n := rb.capacity()
	for i := range left {
		rb.left[pos] = left[i]
		rb.right[pos] = right[i]
		pos++
		if pos == n {
			pos = 0
		}
	}
	rb.pos = pos
}

// copyRecent fills dstLeft and dstRight with the most recent len(dst) samples
// in chronological order. Both destinations must be the same length, at most
// the buffer capacity.
func (rb *ringBuffer) copyRecent(dstLeft, dstRight []float64) {
	n := rb.capacity()
	pos := (rb.pos + n - len(dstLeft)) % n
	for i := range dstLeft {
		dstLeft[i] = rb.left[pos]
		dstRight[i] = rb.right[pos]
		pos++
		if pos == n {
			pos = 0
		}
	}
}

// copyRecentChannel fills dst with the most recent len(dst) samples of one
// channel.
func (rb *ringBuffer) copyRecentChannel(dst []float64, ch Channel) {
	src := rb.left
	if ch == Right {
		src = rb.right
	}
	n := rb.capacity()
	pos := (rb.pos + n - len(dst)) % n
	for i := range dst {
		dst[i] = src[pos]
		pos++
		if pos == n {
			pos = 0
		}
	}
}
