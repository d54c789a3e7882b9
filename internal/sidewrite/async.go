package sidewrite

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"realtime-relay/internal/metrics"
	"realtime-relay/internal/relay"
)

const storeTimeout = 2 * time.Second

// Async feeds a Sink from a bounded queue on its own goroutine.
type Async struct {
	sink    Sink
	queue   chan relay.Packet
	stop    chan struct{}
	closed  atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup
	log     logrus.FieldLogger
	metrics *metrics.SideWrite
}

func NewAsync(sink Sink, size int, log logrus.FieldLogger, m *metrics.SideWrite) *Async {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	a := &Async{
		sink:    sink,
		queue:   make(chan relay.Packet, size),
		stop:    make(chan struct{}),
		log:     log,
		metrics: m,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Write queues p and returns immediately; p is dropped when the queue is full
// or the writer is closed.
func (a *Async) Write(p relay.Packet) {
	if a.closed.Load() {
		a.metrics.Drop()
		return
	}
	select {
	case a.queue <- p:
	default:
		a.metrics.Drop()
		a.log.Warn("side-write queue full, dropping packet")
	}
}

// Close stores whatever is already queued, then stops the worker.
func (a *Async) Close() {
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.stop)
	})
	a.wg.Wait()
}

func (a *Async) run() {
	defer a.wg.Done()
	for {
		select {
		case p := <-a.queue:
			a.store(p)
		case <-a.stop:
			for {
				select {
				case p := <-a.queue:
					a.store(p)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) store(p relay.Packet) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := a.sink.Store(ctx, p); err != nil {
		a.metrics.Fail()
		a.log.WithError(err).Warn("side-write failed")
	}
}
