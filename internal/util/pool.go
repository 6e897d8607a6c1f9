package util

import (
	"sync"
)

// BufferPool hands out fixed-size byte buffers for the streaming layers,
// so hashing and capture loops don't allocate a fresh chunk buffer per
// file. Buffers are zeroed on return: a pooled buffer may have held file
// plaintext, and the next borrower must never see it.
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool creates a pool of size-byte buffers.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Get retrieves a buffer from the pool. Its contents are undefined and
// must be overwritten before use.
func (p *BufferPool) Get() []byte {
	return *p.pool.Get().(*[]byte)
}

// Put zeroes b and returns it to the pool. A buffer of the wrong size is
// dropped rather than pooled.
func (p *BufferPool) Put(b []byte) {
	if len(b) != p.size {
		return
	}
	zeroBytes(b)
	p.pool.Put(&b)
}

// zeroBytes clears a buffer that may have held file plaintext. Key
// material gets the stronger treatment in internal/kdf.SecureZero; pooled
// I/O buffers only need their previous contents gone before reuse.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ChunkPool supplies DefaultChunkSize buffers, the granularity shared by
// the hashing, codec, and AEAD streaming loops.
var ChunkPool = NewBufferPool(DefaultChunkSize)
