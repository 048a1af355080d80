// Package dsp contains the streaming signal processing primitives of the
// detection front end: a sliding-window ring buffer, per-sample signal
// conditioning, window functions and the magnitude spectrum analyser.
//
// Nothing in this package allocates on the per-sample path.
package dsp

import "errors"

var (
	// ErrBufferFull is returned when writing to a full RingBuffer.
	ErrBufferFull = errors.New("dsp: ring buffer full")

	// ErrBufferEmpty is returned when reading from an empty RingBuffer.
	ErrBufferEmpty = errors.New("dsp: ring buffer empty")
)

// RingBuffer is a fixed-capacity circular float32 buffer with independent
// read and write cursors.
//
// One slot of the backing array is kept free so that full and empty can be
// told apart from the cursors alone: the buffer is empty when both cursors
// are equal and full when the write cursor is one slot behind the read cursor.
//
// Sliding windows are built from Rewind and Seek: after a window was filled,
// Rewind makes the whole window readable again and Seek(hop) releases the
// oldest hop values so that exactly hop new values complete the next window.
type RingBuffer struct {
	data []float32
	rpos int
	wpos int
}

// NewRingBuffer returns an empty buffer holding up to capacity values. It
// panics if capacity is not positive.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		panic("dsp: ring buffer capacity must be positive")
	}
	return &RingBuffer{data: make([]float32, capacity+1)}
}

// Capacity returns the maximum number of values the buffer holds.
func (r *RingBuffer) Capacity() int { return len(r.data) - 1 }

// IsEmpty reports whether no value is readable.
func (r *RingBuffer) IsEmpty() bool { return r.rpos == r.wpos }

// IsFull reports whether Capacity values are readable.
func (r *RingBuffer) IsFull() bool { return r.pos(r.wpos+1) == r.rpos }

// Len returns the number of readable values.
func (r *RingBuffer) Len() int { return r.pos(r.wpos - r.rpos) }

// Rewind moves the read cursor back to the oldest retained value, marking
// the buffer full. Contents are not modified, so on a buffer that was never
// filled the values read are the zeros it was allocated with.
func (r *RingBuffer) Rewind() *RingBuffer {
	r.rpos = r.pos(r.wpos + 1)
	return r
}

// Seek moves the read cursor by n positions, wrapping in either direction.
// A positive n discards the n oldest values and frees their slots for
// writing. Seek(n) followed by Seek(-n) restores the previous position.
func (r *RingBuffer) Seek(n int) *RingBuffer {
	r.rpos = r.pos(r.rpos + n)
	return r
}

// Reset empties the buffer without clearing or reallocating its storage.
func (r *RingBuffer) Reset() *RingBuffer {
	r.rpos = r.wpos
	return r
}

// Fill writes v until the buffer is full.
func (r *RingBuffer) Fill(v float32) *RingBuffer {
	for !r.IsFull() {
		r.data[r.wpos] = v
		r.wpos = r.pos(r.wpos + 1)
	}
	return r
}

// Read returns the oldest readable value and advances the read cursor.
func (r *RingBuffer) Read() (float32, error) {
	if r.IsEmpty() {
		return 0, ErrBufferEmpty
	}
	v := r.data[r.rpos]
	r.rpos = r.pos(r.rpos + 1)
	return v, nil
}

// Write appends v and advances the write cursor.
func (r *RingBuffer) Write(v float32) error {
	if r.IsFull() {
		return ErrBufferFull
	}
	r.data[r.wpos] = v
	r.wpos = r.pos(r.wpos + 1)
	return nil
}

// ReadFull reads exactly len(dst) values into dst. It fails without
// consuming anything if fewer values are readable.
func (r *RingBuffer) ReadFull(dst []float32) error {
	if r.Len() < len(dst) {
		return ErrBufferEmpty
	}
	for i := range dst {
		dst[i] = r.data[r.rpos]
		r.rpos = r.pos(r.rpos + 1)
	}
	return nil
}

// WriteAll writes every value of src. It fails without writing anything if
// src does not fit.
func (r *RingBuffer) WriteAll(src []float32) error {
	if r.Capacity()-r.Len() < len(src) {
		return ErrBufferFull
	}
	for _, v := range src {
		r.data[r.wpos] = v
		r.wpos = r.pos(r.wpos + 1)
	}
	return nil
}

func (r *RingBuffer) pos(x int) int {
	n := len(r.data)
	return ((x % n) + n) % n
}
