// Package bot wires the client, the guild trackers and the optional event
// journal into a long-running daemon.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/client"
	"github.com/igo95862/DiscordBot-lib-sub000/gateway"
	"github.com/igo95862/DiscordBot-lib-sub000/guild"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/config"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/journal"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/pool"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/storage"
	"github.com/igo95862/DiscordBot-lib-sub000/rest"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BinaryVersion is set at startup from the -X main.Version ldflags value and
// reported in the default User-Agent.
var BinaryVersion = "dev"

// userAgent returns DISCORD_USER_AGENT when set, else the library agent
// carrying BinaryVersion.
func userAgent(cfg *config.Config) string {
	if cfg.DiscordUserAgent != "" {
		return cfg.DiscordUserAgent
	}
	return fmt.Sprintf("DiscordBot (https://github.com/igo95862/DiscordBot-lib-sub000, %s)", BinaryVersion)
}

// errGatewayEnded cancels the group when the session stops on its own.
var errGatewayEnded = errors.New("gateway session ended")

// Bot wires together the client, guild trackers, journal pool and servers.
type Bot struct {
	cfg    *config.Config
	client *client.Client
	guilds map[string]*guild.State
	order  []string
	store  storage.Store // nil when the journal is disabled
	pool   *pool.Pool
	log    zerolog.Logger
}

// New constructs a fully wired Bot. opts are applied after the defaults
// chosen from cfg, so tests can swap the transport or dialer.
func New(cfg *config.Config, log zerolog.Logger, opts ...client.Option) (*Bot, error) {
	var base []client.Option
	if cfg.HTTPEngine == "fasthttp" {
		base = append(base, client.WithTransport(rest.NewFastHTTPTransport(rest.TransportConfig{})))
	}

	c := client.New(client.Config{
		Token:     cfg.DiscordToken,
		APIURL:    cfg.DiscordAPIURL,
		UserAgent: userAgent(cfg),
		Throttle: rest.Config{
			CallTimeout:   cfg.HTTPCallTimeout,
			RetryInterval: cfg.HTTPRetryInterval,
		},
		Gateway: gateway.Config{
			URL:                 cfg.DiscordGatewayURL,
			Intents:             cfg.DiscordIntents,
			Compress:            cfg.GatewayCompress,
			ReconnectDelay:      cfg.GatewayReconnectDelay,
			InvalidSessionDelay: cfg.GatewayInvalidSessionDelay,
			SendPerMinute:       cfg.GatewaySendPerMinute,
		},
	}, log, append(base, opts...)...)

	b := &Bot{
		cfg:    cfg,
		client: c,
		guilds: make(map[string]*guild.State, len(cfg.GuildIDs)),
		log:    log.With().Str("component", "bot").Logger(),
	}
	for _, id := range cfg.GuildIDs {
		if _, dup := b.guilds[id]; dup {
			continue
		}
		b.guilds[id] = guild.New(id, c.Router(), guild.Config{MessageWindow: cfg.MessageWindow}, log)
		b.order = append(b.order, id)
	}

	if cfg.JournalEnabled {
		store, err := storage.NewBboltStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		p, err := pool.New(pool.Config{
			Workers:    cfg.PoolWorkers,
			QueueDepth: cfg.PoolQueueDepth,
			MaxRetries: cfg.PoolMaxRetries,
			RetryBase:  cfg.PoolRetryBase,
			MaxAge:     cfg.JournalTTL,
		}, journal.MakeJobHandler(store, log), log)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("create pool: %w", err)
		}
		b.store, b.pool = store, p
	}
	return b, nil
}

// Client returns the underlying client.
func (b *Bot) Client() *client.Client { return b.client }

// Guild returns the tracker for guildID, or nil when it is not configured.
func (b *Bot) Guild(guildID string) *guild.State { return b.guilds[guildID] }

// Run starts all goroutines and blocks until ctx is cancelled or a fatal
// error occurs. Subscriptions are attached before the gateway connects so
// nothing from the first READY onward is missed.
func (b *Bot) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, id := range b.order {
		st := b.guilds[id]
		st.Attach(gctx)
		g.Go(func() error { return st.Run(gctx) })
	}

	if b.pool != nil {
		b.pool.Start(gctx)
		rec := journal.NewRecorder(b.client.Router(), b.pool, b.cfg.JournalEvents, b.log)
		rec.Attach(gctx)
		g.Go(func() error { return rec.Run(gctx) })

		janitor := journal.NewJanitor(b.store, b.pool, b.cfg.JanitorInterval, b.cfg.JournalTTL, b.log)
		g.Go(func() error { return janitor.Run(gctx) })
	}

	// Prometheus metrics server
	if b.cfg.MetricsEnabled {
		g.Go(func() error {
			return serve(gctx, "metrics", b.cfg.MetricsAddr, metricsHandler(), b.log)
		})
	}

	// Health endpoints
	if b.cfg.HealthAddr != "" {
		g.Go(func() error {
			return serve(gctx, "health", b.cfg.HealthAddr, b.healthHandler(), b.log)
		})
	}

	if b.cfg.TokenWatch {
		g.Go(func() error {
			return watchToken(gctx, b.cfg.DiscordTokenFile, time.Second, b.client.SetToken, b.log)
		})
	}

	g.Go(func() error {
		b.log.Info().Strs("guilds", b.order).Bool("journal", b.pool != nil).Msg("connecting to gateway")
		if err := b.client.Run(gctx); err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		return errGatewayEnded
	})

	err := g.Wait()
	if b.pool != nil {
		b.pool.Stop()
		if cerr := b.store.Close(); cerr != nil {
			b.log.Warn().Err(cerr).Msg("close journal")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errGatewayEnded) {
		return err
	}
	return nil
}

// Stop ends the gateway session; Run then winds everything down.
func (b *Bot) Stop() {
	b.client.Stop()
}
