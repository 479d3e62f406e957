// Package events fans gateway dispatches out to independent subscribers.
package events

import (
	"context"
	"slices"
	"sync"

	"github.com/igo95862/DiscordBot-lib-sub000/gateway"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/mailbox"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/metrics"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

// All subscribes to every dispatch type.
const All = "*"

// Event is one dispatch as delivered to a subscriber.
type Event struct {
	Type     string
	Data     jsoniter.RawMessage
	Sequence int64
}

// Source produces dispatch envelopes. *gateway.Session implements it.
type Source interface {
	OnDispatch(h gateway.EventHandler)
}

// Router delivers every published envelope to each subscription interested
// in its type, in publish order per subscription. It hooks into its Source
// only while at least one subscription is open.
type Router struct {
	src Source
	log zerolog.Logger

	mu     sync.Mutex
	slots  map[string]map[*Subscription]struct{}
	open   int
	intake *mailbox.Mailbox[gateway.Envelope]
	gen    uint64 // bumped on every activation
}

// NewRouter returns an idle router. src may be nil when envelopes are fed
// through Publish directly.
func NewRouter(src Source, log zerolog.Logger) *Router {
	return &Router{
		src:   src,
		log:   log.With().Str("component", "events").Logger(),
		slots: make(map[string]map[*Subscription]struct{}),
	}
}

// Publish enqueues env for fan-out. It never blocks, and drops env when
// nothing is subscribed.
func (r *Router) Publish(env gateway.Envelope) {
	r.mu.Lock()
	in := r.intake
	r.mu.Unlock()
	if in != nil {
		in.Push(env)
	}
}

// SubscribeOne opens a subscription to a single dispatch type.
func (r *Router) SubscribeOne(ctx context.Context, typ string) *Subscription {
	return r.subscribe(ctx, []string{typ})
}

// SubscribeMany opens a subscription to several dispatch types; Event.Type
// tells them apart. With no types it subscribes to All.
func (r *Router) SubscribeMany(ctx context.Context, types ...string) *Subscription {
	if len(types) == 0 {
		types = []string{All}
	}
	return r.subscribe(ctx, types)
}

// HandleFunc calls fn for every matching event on a dedicated goroutine, in
// order. A panic in fn is recovered and logged; later events still arrive.
func (r *Router) HandleFunc(ctx context.Context, fn func(Event), types ...string) *Subscription {
	sub := r.SubscribeMany(ctx, types...)
	go func() {
		for ev := range sub.C {
			r.invoke(fn, ev)
		}
	}()
	return sub
}

func (r *Router) invoke(fn func(Event), ev Event) {
	defer func() {
		if p := recover(); p != nil {
			metrics.SubscriberPanics.Inc()
			r.log.Error().Interface("panic", p).Str("type", ev.Type).Msg("event handler panicked")
		}
	}()
	fn(ev)
}

// Subscriptions returns the number of open subscriptions.
func (r *Router) Subscriptions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

func (r *Router) subscribe(ctx context.Context, types []string) *Subscription {
	types = slices.Clone(types)
	slices.Sort(types)
	types = slices.Compact(types)

	sub := &Subscription{router: r, types: types, box: mailbox.New[Event]()}
	sub.C = sub.box.Out()

	r.mu.Lock()
	for _, t := range types {
		slot, ok := r.slots[t]
		if !ok {
			slot = make(map[*Subscription]struct{})
			r.slots[t] = slot
		}
		slot[sub] = struct{}{}
	}
	r.open++
	if r.open == 1 {
		r.activateLocked()
	}
	r.mu.Unlock()
	metrics.Subscriptions.Inc()

	if ctx.Done() != nil {
		sub.mu.Lock()
		sub.stop = context.AfterFunc(ctx, sub.Close)
		sub.mu.Unlock()
	}
	return sub
}

func (r *Router) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range sub.types {
		slot := r.slots[t]
		delete(slot, sub)
		if len(slot) == 0 {
			delete(r.slots, t)
		}
	}
	r.open--
	metrics.Subscriptions.Dec()
	if r.open == 0 {
		r.deactivateLocked()
	}
}

func (r *Router) activateLocked() {
	in := mailbox.New[gateway.Envelope]()
	r.intake = in
	r.gen++
	go r.drain(in, r.gen)
	if r.src != nil {
		r.src.OnDispatch(r.Publish)
	}
	r.log.Debug().Msg("router activated")
}

func (r *Router) deactivateLocked() {
	if r.src != nil {
		r.src.OnDispatch(nil)
	}
	r.intake.Close()
	r.intake = nil
	r.log.Debug().Msg("router idle")
}

// drain is the single dispatcher for one activation period.
func (r *Router) drain(in *mailbox.Mailbox[gateway.Envelope], gen uint64) {
	for env := range in.Out() {
		r.fanout(env, gen)
	}
}

// fanout delivers env to the current subscribers unless the activation gen
// it was published in has since ended.
func (r *Router) fanout(env gateway.Envelope, gen uint64) {
	ev := Event{Type: env.Type, Data: env.Data}
	if env.Sequence != nil {
		ev.Sequence = *env.Sequence
	}

	r.mu.Lock()
	if r.gen != gen || r.intake == nil {
		r.mu.Unlock()
		return
	}
	targets := make([]*Subscription, 0, len(r.slots[env.Type])+len(r.slots[All]))
	for sub := range r.slots[env.Type] {
		targets = append(targets, sub)
	}
	for sub := range r.slots[All] {
		if _, dup := r.slots[env.Type][sub]; !dup {
			targets = append(targets, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range targets {
		sub.box.Push(ev)
	}
	if len(targets) > 0 {
		metrics.EventsRouted.WithLabelValues(env.Type).Inc()
	}
}

// Subscription is an open interest in one or more dispatch types. Events
// arrive on C in publish order. C is closed after Close.
type Subscription struct {
	C <-chan Event

	router *Router
	types  []string
	box    *mailbox.Mailbox[Event]
	once   sync.Once

	mu   sync.Mutex
	stop func() bool
}

// Types returns the subscribed dispatch types.
func (s *Subscription) Types() []string {
	return slices.Clone(s.types)
}

// Close releases the subscription. It is idempotent and safe to call from
// any goroutine, including after the subscribing context has ended.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		s.router.remove(s)
		s.box.Close()
	})
}
