package client

import (
	"context"
	"iter"
	"slices"

	"github.com/igo95862/DiscordBot-lib-sub000/model"
)

// PageFunc fetches the page of items that follow the after cursor.
type PageFunc[T any] func(after string) ([]T, error)

// Paginate lazily walks a cursor-paged listing starting after start: each
// page is requested with the id of the previous page's last item, and the
// walk ends at the first empty page. A fetch error is yielded once and ends
// the walk. Every range over the result starts again from start.
func Paginate[T any](start string, fetch PageFunc[T], idOf func(T) string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		after := start
		for {
			page, err := fetch(after)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if len(page) == 0 {
				return
			}
			for _, item := range page {
				if !yield(item, nil) {
					return
				}
			}
			after = idOf(page[len(page)-1])
		}
	}
}

// GuildMembers walks every member of guildID, step per request.
func (c *Client) GuildMembers(ctx context.Context, guildID string, step int) iter.Seq2[model.Member, error] {
	return Paginate("0", func(after string) ([]model.Member, error) {
		return c.ListGuildMembers(ctx, guildID, after, step)
	}, model.Member.ID)
}

// ChannelMessagesAfter walks the messages of channelID newer than after,
// oldest first, step per request.
func (c *Client) ChannelMessagesAfter(ctx context.Context, channelID, after string, step int) iter.Seq2[model.Message, error] {
	return Paginate(after, func(after string) ([]model.Message, error) {
		page, err := c.GetChannelMessages(ctx, channelID, MessageQuery{After: after, Limit: step})
		if err != nil {
			return nil, err
		}
		slices.SortFunc(page, func(a, b model.Message) int {
			return compareSnowflakes(a.ID, b.ID)
		})
		return page, nil
	}, func(m model.Message) string { return m.ID })
}

// compareSnowflakes orders decimal ids numerically without parsing them.
func compareSnowflakes(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
