package guild

import (
	"context"
	"sync"

	"github.com/igo95862/DiscordBot-lib-sub000/internal/mailbox"
)

// Dispenser publishes state changes to any number of listeners. Emit never
// blocks; each listener drains its own FIFO.
type Dispenser[T any] struct {
	mu        sync.Mutex
	listeners map[*Listener[T]]struct{}

	// onEmpty runs after the last listener leaves, outside mu.
	onEmpty func()
}

// NewDispenser returns a dispenser with no listeners.
func NewDispenser[T any]() *Dispenser[T] {
	return &Dispenser[T]{listeners: make(map[*Listener[T]]struct{})}
}

// Listen registers a listener that lives until Close or ctx ends.
func (d *Dispenser[T]) Listen(ctx context.Context) *Listener[T] {
	l := &Listener[T]{d: d, box: mailbox.New[T]()}
	l.C = l.box.Out()

	d.mu.Lock()
	d.listeners[l] = struct{}{}
	d.mu.Unlock()

	if ctx.Done() != nil {
		l.mu.Lock()
		l.stop = context.AfterFunc(ctx, l.Close)
		l.mu.Unlock()
	}
	return l
}

// Emit queues v for every current listener.
func (d *Dispenser[T]) Emit(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for l := range d.listeners {
		l.box.Push(v)
	}
}

// Len returns the number of open listeners.
func (d *Dispenser[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

func (d *Dispenser[T]) remove(l *Listener[T]) {
	d.mu.Lock()
	delete(d.listeners, l)
	empty := len(d.listeners) == 0
	d.mu.Unlock()
	if empty && d.onEmpty != nil {
		d.onEmpty()
	}
}

// Listener receives a dispenser's changes on C, in emit order. C is closed
// after Close.
type Listener[T any] struct {
	C <-chan T

	d    *Dispenser[T]
	box  *mailbox.Mailbox[T]
	once sync.Once

	mu   sync.Mutex
	stop func() bool
}

// Close detaches the listener. Safe to call more than once.
func (l *Listener[T]) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		stop := l.stop
		l.mu.Unlock()
		if stop != nil {
			stop()
		}
		l.d.remove(l)
		l.box.Close()
	})
}

// keyed holds one dispenser per entity id, created on first Listen and
// dropped when its last listener leaves.
type keyed[T any] struct {
	mu  sync.Mutex
	per map[string]*Dispenser[T]
}

func newKeyed[T any]() *keyed[T] {
	return &keyed[T]{per: make(map[string]*Dispenser[T])}
}

func (k *keyed[T]) listen(ctx context.Context, id string) *Listener[T] {
	k.mu.Lock()
	d, ok := k.per[id]
	if !ok {
		d = NewDispenser[T]()
		d.onEmpty = func() { k.prune(id, d) }
		k.per[id] = d
	}
	// Registering under k.mu keeps prune from dropping d between lookup and Listen.
	l := d.Listen(ctx)
	k.mu.Unlock()
	return l
}

func (k *keyed[T]) emit(id string, v T) {
	k.mu.Lock()
	d := k.per[id]
	k.mu.Unlock()
	if d != nil {
		d.Emit(v)
	}
}

func (k *keyed[T]) prune(id string, d *Dispenser[T]) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.per[id] == d && d.Len() == 0 {
		delete(k.per, id)
	}
}

func (k *keyed[T]) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.per)
}
