package store

import (
	"sync"

	"go.uber.org/zap"
)

type notification struct {
	snap      Snapshot
	listeners []Listener
}

// dispatcher entrega notificações numa única goroutine, na ordem em que foram
// enfileiradas (ordem das mudanças de estado). Todos os assinantes de uma
// mudança recebem o mesmo Snapshot antes da próxima ser entregue.
type dispatcher struct {
	log *zap.Logger

	mu     sync.Mutex
	queue  []notification
	closed bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newDispatcher(log *zap.Logger) *dispatcher {
	d := &dispatcher{
		log:     log,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) push(n notification) {
	if len(n.listeners) == 0 {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, n)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case <-d.wake:
			d.drain()
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, n := range batch {
			for _, l := range n.listeners {
				d.deliver(l, n.snap)
			}
		}
	}
}

func (d *dispatcher) deliver(l Listener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("listener panic", zap.Stringer("key", snap.Key), zap.Any("panic", r))
		}
	}()
	l(snap)
}

// close para de aceitar notificações, entrega as pendentes e espera a goroutine
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	<-d.stopped
}
