package generic

import "sync"

// Pool is a typed sync.Pool. An optional reset hook runs on every value
// handed back, so callers never see a previous user's state.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T) T
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// NewResetPool is NewPool with a hook applied in Put.
func NewResetPool[T any](generate func() T, reset func(T) T) *Pool[T] {
	p := NewPool(generate)
	p.reset = reset
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		value = p.reset(value)
	}
	p.pool.Put(value)
}

// NewBufferPool pools byte slices of at least size capacity. Put truncates
// them to zero length.
func NewBufferPool(size int) *Pool[*[]byte] {
	return NewResetPool(
		func() *[]byte {
			b := make([]byte, 0, size)
			return &b
		},
		func(b *[]byte) *[]byte {
			*b = (*b)[:0]
			return b
		},
	)
}
