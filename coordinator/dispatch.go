package coordinator

import (
	"slices"
	"sync"

	"github.com/aluiziolira/go-catalog-feed/models"
)

// dispatcher delivers snapshots to observers on its own goroutine, in the
// order they were published. Publishing never blocks.
type dispatcher struct {
	mu        sync.Mutex
	queue     []models.Snapshot
	observers map[int]func(models.Snapshot)
	nextID    int
	closed    bool

	wake chan struct{}
	done chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		observers: make(map[int]func(models.Snapshot)),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(fn func(models.Snapshot)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || fn == nil {
		return func() {}
	}

	id := d.nextID
	d.nextID++
	d.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.observers, id)
			d.mu.Unlock()
		})
	}
}

func (d *dispatcher) publish(s models.Snapshot) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, s)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// close delivers everything already queued, then stops the goroutine.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}

func (d *dispatcher) run() {
	defer close(d.done)
	for range d.wake {
		for {
			snapshot, observers, ok := d.next()
			if !ok {
				break
			}
			for _, fn := range observers {
				fn(snapshot)
			}
		}

		d.mu.Lock()
		finished := d.closed && len(d.queue) == 0
		d.mu.Unlock()
		if finished {
			return
		}
	}
}

func (d *dispatcher) next() (models.Snapshot, []func(models.Snapshot), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return models.Snapshot{}, nil, false
	}

	snapshot := d.queue[0]
	d.queue[0] = models.Snapshot{}
	d.queue = d.queue[1:]

	ids := make([]int, 0, len(d.observers))
	for id := range d.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	observers := make([]func(models.Snapshot), 0, len(ids))
	for _, id := range ids {
		observers = append(observers, d.observers[id])
	}
	return snapshot, observers, true
}
