package slots

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/savestate/internal/core/chunk"
	"github.com/zeusync/savestate/internal/core/observability/log"
	"github.com/zeusync/savestate/pkg/generic"
)

// Persister writes slots in the background so the simulation goroutine only
// pays for a memory copy. Each pending save holds its own copy of the
// snapshot bytes; the caller's chunk can be reused immediately.
//
// Save and Wait must be called from one goroutine.
type Persister struct {
	parent  context.Context
	store   Store
	limit   int
	buffers *generic.Pool[*[]byte]
	logger  log.Log

	group *errgroup.Group
	ctx   context.Context
}

// NewPersister runs at most limit saves at once; limit <= 0 means no limit.
func NewPersister(ctx context.Context, store Store, limit int, logger log.Log) *Persister {
	if logger == nil {
		logger = log.NewNop()
	}
	p := &Persister{
		parent:  ctx,
		store:   store,
		limit:   limit,
		buffers: generic.NewBufferPool(4 << 10),
		logger:  logger.With(log.String("component", "persister")),
	}
	p.arm()
	return p
}

func (p *Persister) arm() {
	p.group, p.ctx = errgroup.WithContext(p.parent)
	if p.limit > 0 {
		p.group.SetLimit(p.limit)
	}
}

// Save queues header plus a copy of c's bytes. Size and checksum are filled
// in from the copy.
func (p *Persister) Save(header Header, c *chunk.Chunk) {
	buf := p.buffers.Get()
	*buf = c.CopyTo(*buf)
	header.Size = len(*buf)
	header.Checksum = Checksum(*buf)

	ctx := p.ctx
	p.group.Go(func() error {
		defer p.buffers.Put(buf)
		if err := p.store.Save(ctx, Slot{Header: header, Data: *buf}); err != nil {
			p.logger.Error("background save failed", log.String("slot", header.Name), log.Error(err))
			return err
		}
		p.logger.Debug("background save done", log.String("slot", header.Name), log.Int("bytes", header.Size))
		return nil
	})
}

// Wait blocks until every queued save finished and returns the first error.
// After a failure the remaining saves see a cancelled context. The Persister
// can be used again after Wait.
func (p *Persister) Wait() error {
	err := p.group.Wait()
	p.arm()
	return err
}
