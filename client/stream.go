package client

import (
	"context"
	"iter"

	"github.com/igo95862/DiscordBot-lib-sub000/events"
	"github.com/igo95862/DiscordBot-lib-sub000/model"
)

// Stream subscribes to one dispatch type until ctx ends or the
// subscription is closed.
func (c *Client) Stream(ctx context.Context, typ string) *events.Subscription {
	return c.router.SubscribeOne(ctx, typ)
}

// Streams subscribes to several dispatch types; no types means all of them.
func (c *Client) Streams(ctx context.Context, types ...string) *events.Subscription {
	return c.router.SubscribeMany(ctx, types...)
}

// Handle calls fn for every matching dispatch on its own goroutine.
func (c *Client) Handle(ctx context.Context, fn func(events.Event), types ...string) *events.Subscription {
	return c.router.HandleFunc(ctx, fn, types...)
}

// Listen yields decoded payloads of one dispatch type. The subscription is
// open only while the range runs; a payload that fails to decode is yielded
// with its error and the range continues.
func Listen[T any](ctx context.Context, c *Client, typ string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		sub := c.router.SubscribeOne(ctx, typ)
		defer sub.Close()
		for ev := range sub.C {
			v, err := model.Decode[T](ev.Data)
			if !yield(v, err) {
				return
			}
		}
	}
}
