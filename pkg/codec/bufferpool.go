package codec

import (
	"bytes"
	"sync"
)

// pooledBuffer is a reusable encode/read buffer. Buffers are size-classed so
// a session's dozens of probes and the service's upload reads do not churn
// the GC.
type pooledBuffer struct {
	bytes.Buffer
}

const (
	smallBufSize  = 64 * 1024        // thumbnails, heavily shrunk outputs
	mediumBufSize = 512 * 1024       // typical encoded frame
	largeBufSize  = 10 * 1024 * 1024 // whole uploads
)

var bufferPool = struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}{
	small: sync.Pool{New: func() interface{} {
		b := &pooledBuffer{}
		b.Grow(smallBufSize)
		return b
	}},
	medium: sync.Pool{New: func() interface{} {
		b := &pooledBuffer{}
		b.Grow(mediumBufSize)
		return b
	}},
	large: sync.Pool{New: func() interface{} {
		b := &pooledBuffer{}
		b.Grow(largeBufSize)
		return b
	}},
}

// getBuffer returns a buffer sized for a typical encoded frame.
func getBuffer() *pooledBuffer {
	return bufferPool.medium.Get().(*pooledBuffer)
}

// getBufferSized returns a buffer with at least the given capacity hint.
func getBufferSized(size int) *pooledBuffer {
	switch {
	case size <= smallBufSize:
		return bufferPool.small.Get().(*pooledBuffer)
	case size <= mediumBufSize:
		return bufferPool.medium.Get().(*pooledBuffer)
	default:
		return bufferPool.large.Get().(*pooledBuffer)
	}
}

// putBuffer returns a buffer to its size class. Buffers that grew past the
// large class are left to the GC.
func putBuffer(b *pooledBuffer) {
	if b == nil {
		return
	}
	b.Reset()
	switch {
	case b.Cap() <= smallBufSize:
		bufferPool.small.Put(b)
	case b.Cap() <= mediumBufSize:
		bufferPool.medium.Put(b)
	case b.Cap() <= largeBufSize:
		bufferPool.large.Put(b)
	}
}

// ReadBuffer exposes a pooled buffer for callers outside the package, sized
// for the expected payload. Release returns it to the pool.
type ReadBuffer struct {
	b *pooledBuffer
}

// NewReadBuffer acquires a pooled buffer with the given capacity hint.
func NewReadBuffer(sizeHint int) *ReadBuffer {
	return &ReadBuffer{b: getBufferSized(sizeHint)}
}

// Write appends to the buffer, satisfying io.Writer.
func (rb *ReadBuffer) Write(p []byte) (int, error) { return rb.b.Write(p) }

// Bytes returns the buffered contents. Valid until Release.
func (rb *ReadBuffer) Bytes() []byte { return rb.b.Bytes() }

// Len returns the buffered length.
func (rb *ReadBuffer) Len() int { return rb.b.Len() }

// Release returns the buffer to the pool.
func (rb *ReadBuffer) Release() {
	putBuffer(rb.b)
	rb.b = nil
}
