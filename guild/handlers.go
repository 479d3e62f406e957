package guild

import (
	"slices"

	"github.com/igo95862/DiscordBot-lib-sub000/events"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/metrics"
	"github.com/igo95862/DiscordBot-lib-sub000/model"
)

var handledTypes = []string{
	model.EventReady,
	model.EventGuildCreate,
	model.EventGuildUpdate,
	model.EventGuildDelete,
	model.EventGuildMemberAdd,
	model.EventGuildMemberUpdate,
	model.EventGuildMemberRemove,
	model.EventGuildRoleCreate,
	model.EventGuildRoleUpdate,
	model.EventGuildRoleDelete,
	model.EventGuildEmojisUpdate,
	model.EventChannelCreate,
	model.EventChannelUpdate,
	model.EventChannelDelete,
	model.EventMessageCreate,
	model.EventMessageUpdate,
	model.EventMessageDelete,
	model.EventReactionAdd,
	model.EventReactionRemove,
}

// apply dispatches one event to its handler. A payload that fails to decode
// is logged and skipped.
func (s *State) apply(ev events.Event) {
	var err error
	switch ev.Type {
	case model.EventReady:
		err = handle(ev, s.onReady)
	case model.EventGuildCreate:
		err = handle(ev, s.onGuildCreate)
	case model.EventGuildUpdate:
		err = handle(ev, s.onGuildUpdate)
	case model.EventGuildDelete:
		err = handle(ev, s.onGuildDelete)
	case model.EventGuildMemberAdd:
		err = handle(ev, s.onMemberAdd)
	case model.EventGuildMemberUpdate:
		err = handle(ev, s.onMemberUpdate)
	case model.EventGuildMemberRemove:
		err = handle(ev, s.onMemberRemove)
	case model.EventGuildRoleCreate, model.EventGuildRoleUpdate:
		err = handle(ev, s.onRoleUpsert)
	case model.EventGuildRoleDelete:
		err = handle(ev, s.onRoleDelete)
	case model.EventGuildEmojisUpdate:
		err = handle(ev, s.onEmojisUpdate)
	case model.EventChannelCreate, model.EventChannelUpdate:
		err = handle(ev, s.onChannelUpsert)
	case model.EventChannelDelete:
		err = handle(ev, s.onChannelDelete)
	case model.EventMessageCreate:
		err = handle(ev, s.onMessageCreate)
	case model.EventMessageUpdate:
		err = handle(ev, s.onMessageUpdate)
	case model.EventMessageDelete:
		err = handle(ev, s.onMessageDelete)
	case model.EventReactionAdd:
		err = handle(ev, func(p model.ReactionEvent) { s.onReaction(p, true) })
	case model.EventReactionRemove:
		err = handle(ev, func(p model.ReactionEvent) { s.onReaction(p, false) })
	}
	if err != nil {
		s.log.Warn().Err(err).Str("type", ev.Type).Int64("seq", ev.Sequence).Msg("undecodable event skipped")
	}
}

func handle[T any](ev events.Event, fn func(T)) error {
	p, err := model.Decode[T](ev.Data)
	if err != nil {
		return err
	}
	fn(p)
	return nil
}

func (s *State) onReady(p model.Ready) {
	s.mu.Lock()
	s.selfID = p.User.ID
	s.mu.Unlock()
}

func (s *State) onGuildCreate(g model.Guild) {
	if g.ID != s.id || g.Unavailable {
		return
	}
	s.mu.Lock()
	s.populateLocked(g)
	members, roles, channels := len(s.members), len(s.roles), len(s.channels)
	s.mu.Unlock()
	s.log.Info().Int("members", members).Int("roles", roles).Int("channels", channels).Msg("guild loaded")
}

func (s *State) onGuildUpdate(g model.Guild) {
	if g.ID != s.id {
		return
	}
	s.mu.Lock()
	s.name = g.Name
	s.ownerID = g.OwnerID
	for _, r := range g.Roles {
		if rec, ok := s.roles[r.ID]; ok {
			*rec = r
		} else {
			s.roles[r.ID] = &r
		}
	}
	if g.Emojis != nil {
		s.emojis = cloneEmojis(g.Emojis)
	}
	s.observeLocked()
	s.mu.Unlock()
}

func (s *State) onGuildDelete(p model.GuildDelete) {
	if p.ID != s.id {
		return
	}
	s.mu.Lock()
	s.resetLocked()
	s.observeLocked()
	s.mu.Unlock()
	if p.Unavailable {
		s.log.Warn().Msg("guild unavailable, state cleared until it returns")
	} else {
		s.log.Info().Msg("removed from guild, state cleared")
	}
}

func (s *State) onMemberAdd(p model.MemberAdd) {
	if p.GuildID != s.id {
		return
	}
	m := p.Member
	m.Roles = cloneStrings(m.Roles)

	s.mu.Lock()
	s.members[m.ID()] = &m
	snap := copyMember(&m)
	s.observeLocked()
	s.mu.Unlock()

	s.emitMember(s.events.MemberJoined, MemberChange{Kind: Created, Member: s.memberView(m.ID()), Snapshot: snap})
}

func (s *State) onMemberUpdate(p model.MemberUpdate) {
	if p.GuildID != s.id {
		return
	}
	id := p.User.ID

	s.mu.Lock()
	rec, ok := s.members[id]
	if !ok {
		rec = &model.Member{Roles: []string{}}
		s.members[id] = rec
	}
	before := rec.Roles
	rec.User = p.User
	rec.Nick = ""
	if p.Nick != nil {
		rec.Nick = *p.Nick
	}
	rec.Roles = cloneStrings(p.Roles)
	rec.Pending = p.Pending
	if p.JoinedAt != nil {
		rec.JoinedAt = *p.JoinedAt
	}
	if p.Deaf != nil {
		rec.Deaf = *p.Deaf
	}
	if p.Mute != nil {
		rec.Mute = *p.Mute
	}
	added, removed := diffRoles(before, rec.Roles)
	snap := copyMember(rec)
	s.observeLocked()
	s.mu.Unlock()

	s.emitMember(s.events.MemberUpdated, MemberChange{
		Kind:         Updated,
		Member:       s.memberView(id),
		Snapshot:     snap,
		AddedRoles:   added,
		RemovedRoles: removed,
	})
}

func (s *State) onMemberRemove(p model.MemberRemove) {
	if p.GuildID != s.id {
		return
	}
	id := p.User.ID

	s.mu.Lock()
	rec, ok := s.members[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	snap := copyMember(rec)
	delete(s.members, id)
	s.observeLocked()
	s.mu.Unlock()

	s.emitMember(s.events.MemberLeft, MemberChange{Kind: Deleted, Member: s.memberView(id), Snapshot: snap})
}

func (s *State) emitMember(d *Dispenser[MemberChange], ch MemberChange) {
	d.Emit(ch)
	s.memberEvents.emit(ch.Member.ID(), ch)
}

func (s *State) onRoleUpsert(p model.RoleEvent) {
	if p.GuildID != s.id {
		return
	}
	s.mu.Lock()
	kind := Updated
	if rec, ok := s.roles[p.Role.ID]; ok {
		*rec = p.Role
	} else {
		kind = Created
		r := p.Role
		s.roles[r.ID] = &r
	}
	s.observeLocked()
	s.mu.Unlock()

	d := s.events.RoleUpdated
	if kind == Created {
		d = s.events.RoleCreated
	}
	s.emitRole(d, RoleChange{Kind: kind, Role: s.roleView(p.Role.ID), Snapshot: p.Role})
}

// onRoleDelete removes the role and strips it from every member holding it.
func (s *State) onRoleDelete(p model.RoleDelete) {
	if p.GuildID != s.id {
		return
	}
	s.mu.Lock()
	rec, ok := s.roles[p.RoleID]
	if !ok {
		s.mu.Unlock()
		return
	}
	snap := *rec
	delete(s.roles, p.RoleID)
	stripped := make(map[string]model.Member)
	for id, m := range s.members {
		if i := slices.Index(m.Roles, p.RoleID); i >= 0 {
			m.Roles = slices.Delete(m.Roles, i, i+1)
			stripped[id] = copyMember(m)
		}
	}
	s.observeLocked()
	s.mu.Unlock()

	s.emitRole(s.events.RoleDeleted, RoleChange{Kind: Deleted, Role: s.roleView(p.RoleID), Snapshot: snap})
	for id, m := range stripped {
		s.emitMember(s.events.MemberUpdated, MemberChange{
			Kind:         Updated,
			Member:       s.memberView(id),
			Snapshot:     m,
			RemovedRoles: []string{p.RoleID},
		})
	}
}

func (s *State) emitRole(d *Dispenser[RoleChange], ch RoleChange) {
	d.Emit(ch)
	s.roleEvents.emit(ch.Role.ID(), ch)
}

func (s *State) onEmojisUpdate(p model.EmojisUpdate) {
	if p.GuildID != s.id {
		return
	}
	s.mu.Lock()
	before := s.emojis
	s.emojis = cloneEmojis(p.Emojis)
	after := cloneEmojis(s.emojis)
	s.observeLocked()
	s.mu.Unlock()

	s.events.EmojisUpdated.Emit(EmojiChange{Before: before, After: after})
}

func (s *State) onChannelUpsert(c model.Channel) {
	if c.GuildID != s.id {
		return
	}
	s.mu.Lock()
	kind := Updated
	if rec, ok := s.channels[c.ID]; ok {
		*rec = c
	} else {
		kind = Created
		s.channels[c.ID] = &c
	}
	s.observeLocked()
	s.mu.Unlock()

	d := s.events.ChannelUpdated
	if kind == Created {
		d = s.events.ChannelCreated
	}
	d.Emit(ChannelChange{Kind: kind, Channel: s.channelView(c.ID), Snapshot: c})
}

func (s *State) onChannelDelete(c model.Channel) {
	if c.GuildID != s.id {
		return
	}
	s.mu.Lock()
	rec, ok := s.channels[c.ID]
	if !ok {
		s.mu.Unlock()
		return
	}
	snap := *rec
	delete(s.channels, c.ID)
	s.dropChannelLocked(c.ID)
	s.observeLocked()
	s.mu.Unlock()

	s.events.ChannelDeleted.Emit(ChannelChange{Kind: Deleted, Channel: s.channelView(c.ID), Snapshot: snap})
}

// ownsLocked reports whether a message event belongs to this guild.
func (s *State) ownsLocked(guildID, channelID string) bool {
	if guildID != "" {
		return guildID == s.id
	}
	_, ok := s.channels[channelID]
	return ok
}

func (s *State) onMessageCreate(msg model.Message) {
	s.mu.Lock()
	if !s.ownsLocked(msg.GuildID, msg.ChannelID) {
		s.mu.Unlock()
		return
	}
	rec := s.trackLocked(msg)
	snap := copyMessage(&rec.msg)
	s.observeLocked()
	s.mu.Unlock()

	s.emitMessage(s.events.MessageCreated, MessageChange{
		Kind:     Created,
		Message:  s.messageView(msg.ChannelID, msg.ID, rec),
		Snapshot: snap,
	})
}

// onMessageUpdate patches the fields present in the partial payload. Edits of
// untracked messages are ignored.
func (s *State) onMessageUpdate(p model.MessageUpdate) {
	s.mu.Lock()
	rec := s.recordLocked(p.ChannelID, p.ID)
	if rec == nil || !s.ownsLocked(p.GuildID, p.ChannelID) {
		s.mu.Unlock()
		return
	}
	if p.Content != nil {
		rec.msg.Content = *p.Content
	}
	if p.EditedTimestamp != nil {
		t := *p.EditedTimestamp
		rec.msg.EditedTimestamp = &t
	}
	if p.Pinned != nil {
		rec.msg.Pinned = *p.Pinned
	}
	snap := copyMessage(&rec.msg)
	s.mu.Unlock()

	s.emitMessage(s.events.MessageUpdated, MessageChange{
		Kind:     Updated,
		Message:  s.messageView(p.ChannelID, p.ID, rec),
		Snapshot: snap,
	})
}

func (s *State) onMessageDelete(p model.MessageDelete) {
	s.mu.Lock()
	if !s.ownsLocked(p.GuildID, p.ChannelID) {
		s.mu.Unlock()
		return
	}
	rec := s.untrackLocked(p.ChannelID, p.ID)
	if rec == nil {
		s.mu.Unlock()
		return
	}
	snap := copyMessage(&rec.msg)
	s.observeLocked()
	s.mu.Unlock()

	s.emitMessage(s.events.MessageDeleted, MessageChange{
		Kind:     Deleted,
		Message:  s.messageView(p.ChannelID, p.ID, rec),
		Snapshot: snap,
	})
}

// onReaction adjusts the reaction tally of a tracked message. Reactions on
// messages that are not tracked are dropped.
func (s *State) onReaction(p model.ReactionEvent, add bool) {
	s.mu.Lock()
	rec := s.recordLocked(p.ChannelID, p.MessageID)
	if rec == nil || !s.ownsLocked(p.GuildID, p.ChannelID) {
		s.mu.Unlock()
		metrics.ReactionsDropped.Inc()
		s.log.Debug().Str("channel_id", p.ChannelID).Str("message_id", p.MessageID).
			Msg("reaction on untracked message dropped")
		return
	}
	self := p.UserID != "" && p.UserID == s.selfID
	if add {
		rec.msg.Reactions = addReaction(rec.msg.Reactions, p.Emoji, self)
	} else {
		rec.msg.Reactions = removeReaction(rec.msg.Reactions, p.Emoji, self)
	}
	snap := copyMessage(&rec.msg)
	s.mu.Unlock()

	kind, d := ReactionAdded, s.events.ReactionAdded
	if !add {
		kind, d = ReactionRemoved, s.events.ReactionRemoved
	}
	s.emitMessage(d, MessageChange{
		Kind:     kind,
		Message:  s.messageView(p.ChannelID, p.MessageID, rec),
		Snapshot: snap,
		UserID:   p.UserID,
		Emoji:    p.Emoji,
	})
}

func (s *State) emitMessage(d *Dispenser[MessageChange], ch MessageChange) {
	d.Emit(ch)
	s.messageEvents.emit(messageKey(ch.Message.ChannelID(), ch.Message.ID()), ch)
}

func addReaction(rs []model.Reaction, e model.Emoji, self bool) []model.Reaction {
	for i := range rs {
		if rs[i].Emoji.Key() == e.Key() {
			rs[i].Count++
			rs[i].Me = rs[i].Me || self
			return rs
		}
	}
	return append(rs, model.Reaction{Count: 1, Me: self, Emoji: e})
}

func removeReaction(rs []model.Reaction, e model.Emoji, self bool) []model.Reaction {
	for i := range rs {
		if rs[i].Emoji.Key() != e.Key() {
			continue
		}
		rs[i].Count--
		if self {
			rs[i].Me = false
		}
		if rs[i].Count <= 0 {
			return slices.Delete(rs, i, i+1)
		}
		return rs
	}
	return rs
}

// diffRoles returns the role ids gained and lost between two sets, sorted.
func diffRoles(before, after []string) (added, removed []string) {
	for _, id := range after {
		if !slices.Contains(before, id) {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if !slices.Contains(after, id) {
			removed = append(removed, id)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

func copyMember(m *model.Member) model.Member {
	out := *m
	out.Roles = slices.Clone(m.Roles)
	return out
}

func copyMessage(m *model.Message) model.Message {
	out := *m
	out.Reactions = slices.Clone(m.Reactions)
	return out
}
