package fallback

import (
	"sync"

	"go.uber.org/zap"
)

type delivery struct {
	notice    Notice
	listeners []func(Notice)
}

// notifier entrega os Notices numa goroutine própria, fora do caminho da
// requisição que provocou a transição, na ordem em que foram enfileirados.
type notifier struct {
	log *zap.Logger

	mu     sync.Mutex
	queue  []delivery
	closed bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newNotifier(log *zap.Logger) *notifier {
	n := &notifier{
		log:     log,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) push(d delivery) {
	if len(d.listeners) == 0 {
		return
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, d)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	defer close(n.stopped)
	for {
		select {
		case <-n.wake:
			n.drain()
		case <-n.done:
			n.drain()
			return
		}
	}
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		batch := n.queue
		n.queue = nil
		n.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, d := range batch {
			for _, l := range d.listeners {
				n.deliver(l, d.notice)
			}
		}
	}
}

func (n *notifier) deliver(l func(Notice), notice Notice) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("fallback listener panic", zap.Stringer("state", notice.State), zap.Any("panic", r))
		}
	}()
	l(notice)
}

// close entrega o que já está na fila e espera a goroutine terminar
func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	<-n.stopped
}
