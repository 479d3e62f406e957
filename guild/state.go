// Package guild keeps a live in-memory projection of one guild, maintained
// from gateway dispatches, and hands out linked views onto it.
//
// Views never copy record fields: every getter re-reads the state, so all
// outstanding views see the latest data and fail with ErrNotPresent once
// their record is gone.
package guild

import (
	"context"
	"sync"
	"weak"

	"github.com/igo95862/DiscordBot-lib-sub000/events"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/metrics"
	"github.com/igo95862/DiscordBot-lib-sub000/model"
	"github.com/rs/zerolog"
)

// Source opens event subscriptions. *events.Router implements it.
type Source interface {
	SubscribeMany(ctx context.Context, types ...string) *events.Subscription
}

// Config holds state parameters. Zero values fall back to defaults.
type Config struct {
	// MessageWindow is how many recent messages per channel stay tracked. Default 100.
	MessageWindow int
}

// State is the projection of one guild. Handlers run on the Run goroutine
// only; lookups and views are safe from any goroutine.
type State struct {
	id  string
	src Source
	cfg Config
	log zerolog.Logger

	mu       sync.RWMutex
	ready    chan struct{}
	loaded   bool
	selfID   string
	name     string
	ownerID  string
	members  map[string]*model.Member
	roles    map[string]*model.Role
	channels map[string]*model.Channel
	emojis   []model.Emoji
	windows  map[string]*window
	evicted  map[string]weak.Pointer[messageRecord]

	memberViews  *viewCache[Member]
	roleViews    *viewCache[Role]
	channelViews *viewCache[Channel]
	messageViews *viewCache[Message]

	events        Dispensers
	memberEvents  *keyed[MemberChange]
	roleEvents    *keyed[RoleChange]
	messageEvents *keyed[MessageChange]

	subMu sync.Mutex
	sub   *events.Subscription
}

// New returns an empty, not yet ready state for guildID.
func New(guildID string, src Source, cfg Config, log zerolog.Logger) *State {
	if cfg.MessageWindow <= 0 {
		cfg.MessageWindow = 100
	}
	return &State{
		id:            guildID,
		src:           src,
		cfg:           cfg,
		log:           log.With().Str("component", "guild").Str("guild_id", guildID).Logger(),
		ready:         make(chan struct{}),
		members:       make(map[string]*model.Member),
		roles:         make(map[string]*model.Role),
		channels:      make(map[string]*model.Channel),
		windows:       make(map[string]*window),
		evicted:       make(map[string]weak.Pointer[messageRecord]),
		memberViews:   newViewCache[Member](),
		roleViews:     newViewCache[Role](),
		channelViews:  newViewCache[Channel](),
		messageViews:  newViewCache[Message](),
		events:        newDispensers(),
		memberEvents:  newKeyed[MemberChange](),
		roleEvents:    newKeyed[RoleChange](),
		messageEvents: newKeyed[MessageChange](),
	}
}

// ID returns the guild id.
func (s *State) ID() string { return s.id }

// Attach opens the state's event subscription without consuming it, so
// nothing published before Run starts is missed. Run calls it implicitly.
func (s *State) Attach(ctx context.Context) *events.Subscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.sub == nil {
		s.sub = s.src.SubscribeMany(ctx, handledTypes...)
	}
	return s.sub
}

// Run applies dispatches until ctx ends.
func (s *State) Run(ctx context.Context) error {
	sub := s.Attach(ctx)
	defer func() {
		sub.Close()
		s.subMu.Lock()
		s.sub = nil
		s.subMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			s.apply(ev)
		}
	}
}

// WaitReady blocks until the guild has been loaded or ctx ends.
func (s *State) WaitReady(ctx context.Context) error {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the guild is currently loaded.
func (s *State) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *State) markReadyLocked() {
	if !s.loaded {
		s.loaded = true
		close(s.ready)
	}
}

// resetLocked empties the projection and re-arms WaitReady.
func (s *State) resetLocked() {
	clear(s.members)
	clear(s.roles)
	clear(s.channels)
	s.emojis = nil
	for id := range s.windows {
		s.dropChannelLocked(id)
	}
	if s.loaded {
		s.loaded = false
		s.ready = make(chan struct{})
	}
}

// populateLocked replaces the dictionaries with a full guild payload.
func (s *State) populateLocked(g model.Guild) {
	s.name = g.Name
	s.ownerID = g.OwnerID
	s.emojis = cloneEmojis(g.Emojis)

	clear(s.roles)
	for _, r := range g.Roles {
		s.roles[r.ID] = &r
	}
	clear(s.members)
	for _, m := range g.Members {
		m.Roles = cloneStrings(m.Roles)
		s.members[m.ID()] = &m
	}
	clear(s.channels)
	for _, c := range g.Channels {
		c.GuildID = s.id
		s.channels[c.ID] = &c
	}
	for id := range s.windows {
		if _, ok := s.channels[id]; !ok {
			s.dropChannelLocked(id)
		}
	}
	s.markReadyLocked()
	s.observeLocked()
}

func (s *State) observeLocked() {
	messages := 0
	for _, w := range s.windows {
		messages += len(w.live)
	}
	metrics.GuildEntities.WithLabelValues(s.id, "members").Set(float64(len(s.members)))
	metrics.GuildEntities.WithLabelValues(s.id, "roles").Set(float64(len(s.roles)))
	metrics.GuildEntities.WithLabelValues(s.id, "channels").Set(float64(len(s.channels)))
	metrics.GuildEntities.WithLabelValues(s.id, "emojis").Set(float64(len(s.emojis)))
	metrics.GuildEntities.WithLabelValues(s.id, "messages").Set(float64(messages))
}

// Name returns the guild name.
func (s *State) Name() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return "", ErrNotReady
	}
	return s.name, nil
}

// Owner returns a view of the guild owner.
func (s *State) Owner() (*Member, error) {
	s.mu.RLock()
	ownerID, loaded := s.ownerID, s.loaded
	s.mu.RUnlock()
	if !loaded {
		return nil, ErrNotReady
	}
	return s.Member(ownerID)
}

// Member returns the view for userID.
func (s *State) Member(userID string) (*Member, error) {
	s.mu.RLock()
	_, ok := s.members[userID]
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		return nil, ErrNotReady
	}
	if !ok {
		return nil, notPresent("member", userID)
	}
	return s.memberView(userID), nil
}

// Role returns the view for roleID.
func (s *State) Role(roleID string) (*Role, error) {
	s.mu.RLock()
	_, ok := s.roles[roleID]
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		return nil, ErrNotReady
	}
	if !ok {
		return nil, notPresent("role", roleID)
	}
	return s.roleView(roleID), nil
}

// Channel returns the view for channelID.
func (s *State) Channel(channelID string) (*Channel, error) {
	s.mu.RLock()
	_, ok := s.channels[channelID]
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		return nil, ErrNotReady
	}
	if !ok {
		return nil, notPresent("channel", channelID)
	}
	return s.channelView(channelID), nil
}

// Message returns the view for a tracked message.
func (s *State) Message(channelID, messageID string) (*Message, error) {
	s.mu.RLock()
	rec := s.recordLocked(channelID, messageID)
	s.mu.RUnlock()
	if rec == nil {
		return nil, notPresent("message", messageID)
	}
	return s.messageView(channelID, messageID, rec), nil
}

// Members returns views of every tracked member.
func (s *State) Members() []*Member {
	s.mu.RLock()
	ids := make([]string, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	out := make([]*Member, len(ids))
	for i, id := range ids {
		out[i] = s.memberView(id)
	}
	return out
}

// Roles returns views of every role.
func (s *State) Roles() []*Role {
	s.mu.RLock()
	ids := make([]string, 0, len(s.roles))
	for id := range s.roles {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	out := make([]*Role, len(ids))
	for i, id := range ids {
		out[i] = s.roleView(id)
	}
	return out
}

// Channels returns views of every channel.
func (s *State) Channels() []*Channel {
	s.mu.RLock()
	ids := make([]string, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	out := make([]*Channel, len(ids))
	for i, id := range ids {
		out[i] = s.channelView(id)
	}
	return out
}

// Emojis returns a copy of the custom emoji list.
func (s *State) Emojis() []model.Emoji {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEmojis(s.emojis)
}

// Events exposes the state-wide change dispensers.
func (s *State) Events() *Dispensers { return &s.events }

// MemberEvents listens to changes of one member.
func (s *State) MemberEvents(ctx context.Context, userID string) *Listener[MemberChange] {
	return s.memberEvents.listen(ctx, userID)
}

// RoleEvents listens to changes of one role.
func (s *State) RoleEvents(ctx context.Context, roleID string) *Listener[RoleChange] {
	return s.roleEvents.listen(ctx, roleID)
}

// MessageEvents listens to edits, deletion and reactions of one message.
func (s *State) MessageEvents(ctx context.Context, channelID, messageID string) *Listener[MessageChange] {
	return s.messageEvents.listen(ctx, messageKey(channelID, messageID))
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string(nil), in...)
}

func cloneEmojis(in []model.Emoji) []model.Emoji {
	out := make([]model.Emoji, len(in))
	for i, e := range in {
		e.Roles = append([]string(nil), e.Roles...)
		out[i] = e
	}
	return out
}
