package eventbus

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
)

// Bus wraps a synchronous EventBus with a small worker pool for
// fire-and-forget publishing from request paths.
type Bus struct {
	bus      evbus.Bus
	workChan chan asyncEvent
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	dropped  atomic.Int64
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// New creates a bus and starts its workers.
func New(workers, queue int) *Bus {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1000
	}
	b := &Bus{
		bus:      evbus.New(),
		workChan: make(chan asyncEvent, queue),
		stopChan: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.workChan:
			b.dispatch(event)
		case <-b.stopChan:
			// Drain what is already queued.
			for {
				select {
				case event := <-b.workChan:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(event asyncEvent) {
	defer func() {
		_ = recover()
	}()
	b.bus.Publish(event.topic, event.args...)
}

// PublishAsync queues the event. It never blocks: when the queue is full
// the event is dropped and false is returned.
func (b *Bus) PublishAsync(topic string, args ...interface{}) bool {
	if b == nil {
		return false
	}
	select {
	case b.workChan <- asyncEvent{topic: topic, args: args}:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Dropped reports how many async events were discarded on a full queue.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Stop drains queued events and waits for the workers to exit.
func (b *Bus) Stop() {
	if b == nil {
		return
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
	b.wg.Wait()
}
