package engine

import (
	"sync"

	"github.com/Konsultn-Engineering/stmtbind/bind"
)

// serializerPool recycles call-scoped serializers. A serializer is released
// before it goes back so no bindings outlive their call.
type serializerPool struct {
	pool sync.Pool
}

func newSerializerPool(newFn func() *bind.Serializer) *serializerPool {
	return &serializerPool{
		pool: sync.Pool{
			New: func() interface{} { return newFn() },
		},
	}
}

func (p *serializerPool) Get() *bind.Serializer {
	return p.pool.Get().(*bind.Serializer)
}

func (p *serializerPool) Put(s *bind.Serializer) {
	s.Release()
	p.pool.Put(s)
}
