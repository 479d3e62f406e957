package guild

import (
	"context"
	"fmt"
	"iter"

	"github.com/igo95862/DiscordBot-lib-sub000/model"
	"golang.org/x/sync/errgroup"
)

// Fetcher reads a guild over REST. *client.Client implements it.
type Fetcher interface {
	GetGuild(ctx context.Context, guildID string) (model.Guild, error)
	GetGuildChannels(ctx context.Context, guildID string) ([]model.Channel, error)
	GuildMembers(ctx context.Context, guildID string, step int) iter.Seq2[model.Member, error]
}

// LoadSnapshot fills the state from REST instead of waiting for the
// gateway's guild create, and marks it ready. Members are paged step at a
// time; step <= 0 uses 1000.
func (s *State) LoadSnapshot(ctx context.Context, f Fetcher, step int) error {
	if step <= 0 {
		step = 1000
	}
	var (
		g        model.Guild
		channels []model.Channel
		members  []model.Member
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		if g, err = f.GetGuild(gctx, s.id); err != nil {
			return fmt.Errorf("get guild: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		if channels, err = f.GetGuildChannels(gctx, s.id); err != nil {
			return fmt.Errorf("get channels: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		for m, err := range f.GuildMembers(gctx, s.id, step) {
			if err != nil {
				return fmt.Errorf("list members: %w", err)
			}
			members = append(members, m)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("load guild %s: %w", s.id, err)
	}

	g.Channels = channels
	g.Members = members
	s.mu.Lock()
	s.populateLocked(g)
	s.mu.Unlock()

	s.log.Info().Int("members", len(members)).Int("channels", len(channels)).Msg("guild snapshot loaded")
	return nil
}
