package lifecycle

import (
	"context"
	"sync"
	"time"

	"postdeck/internal/storage"
	logx "postdeck/pkg/logx"
)

// persister writes serialized values in the background. Writes for the same
// key coalesce (only the latest value matters); keys are written in the order
// they first became dirty.
type persister struct {
	st      storage.Store
	log     logx.Logger
	timeout time.Duration

	mu       sync.Mutex
	pending  map[string][]byte
	order    []string
	seq      uint64
	done     uint64
	progress chan struct{}

	wake    chan struct{}
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newPersister(st storage.Store, timeout time.Duration, log logx.Logger) *persister {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &persister{
		st:       st,
		log:      log,
		timeout:  timeout,
		pending:  map[string][]byte{},
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *persister) enqueue(key string, value []byte) {
	p.mu.Lock()
	if _, ok := p.pending[key]; !ok {
		p.order = append(p.order, key)
	}
	p.pending[key] = value
	p.seq++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) loop() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.writeAll()
		case <-p.quit:
			p.writeAll()
			return
		}
	}
}

func (p *persister) writeAll() {
	for {
		p.mu.Lock()
		if len(p.order) == 0 {
			p.mu.Unlock()
			return
		}
		batch, order, target := p.pending, p.order, p.seq
		p.pending = map[string][]byte{}
		p.order = nil
		p.mu.Unlock()

		for _, key := range order {
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			if err := p.st.Set(ctx, key, batch[key]); err != nil {
				p.log.Error("persist failed", logx.String("key", key), logx.Err(err))
			}
			cancel()
		}

		p.mu.Lock()
		p.done = target
		close(p.progress)
		p.progress = make(chan struct{})
		p.mu.Unlock()
	}
}

// flush waits until everything enqueued before the call has been written.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	target := p.seq
	p.mu.Unlock()
	for {
		p.mu.Lock()
		if p.done >= target {
			p.mu.Unlock()
			return nil
		}
		ch := p.progress
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *persister) close(ctx context.Context) error {
	p.once.Do(func() { close(p.quit) })
	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
