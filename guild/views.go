package guild

import (
	"slices"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/model"
)

func (s *State) memberView(id string) *Member {
	return s.memberViews.get(id, func() *Member { return &Member{s: s, id: id} })
}

func (s *State) roleView(id string) *Role {
	return s.roleViews.get(id, func() *Role { return &Role{s: s, id: id} })
}

func (s *State) channelView(id string) *Channel {
	return s.channelViews.get(id, func() *Channel { return &Channel{s: s, id: id} })
}

func (s *State) messageView(channelID, messageID string, rec *messageRecord) *Message {
	return s.messageViews.get(messageKey(channelID, messageID), func() *Message {
		return &Message{s: s, channelID: channelID, id: messageID, rec: rec}
	})
}

// Member is a linked view of a guild member.
type Member struct {
	s  *State
	id string
}

// ID returns the member's user id. It never fails.
func (m *Member) ID() string { return m.id }

// read runs fn on the live record under the read lock.
func (m *Member) read(fn func(*model.Member)) error {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	rec, ok := m.s.members[m.id]
	if !ok {
		return notPresent("member", m.id)
	}
	fn(rec)
	return nil
}

// Record returns a copy of the current record.
func (m *Member) Record() (model.Member, error) {
	var out model.Member
	err := m.read(func(rec *model.Member) {
		out = *rec
		out.Roles = slices.Clone(rec.Roles)
	})
	return out, err
}

func (m *Member) User() (model.User, error) {
	var u model.User
	err := m.read(func(rec *model.Member) { u = rec.User })
	return u, err
}

func (m *Member) Nick() (string, error) {
	var nick string
	err := m.read(func(rec *model.Member) { nick = rec.Nick })
	return nick, err
}

// DisplayName prefers the guild nick, then the global name, then the username.
func (m *Member) DisplayName() (string, error) {
	var name string
	err := m.read(func(rec *model.Member) {
		switch {
		case rec.Nick != "":
			name = rec.Nick
		case rec.User.GlobalName != "":
			name = rec.User.GlobalName
		default:
			name = rec.User.Username
		}
	})
	return name, err
}

func (m *Member) JoinedAt() (time.Time, error) {
	var at time.Time
	err := m.read(func(rec *model.Member) { at = rec.JoinedAt })
	return at, err
}

// RoleIDs returns the member's role ids, sorted.
func (m *Member) RoleIDs() ([]string, error) {
	var ids []string
	err := m.read(func(rec *model.Member) { ids = slices.Clone(rec.Roles) })
	slices.Sort(ids)
	return ids, err
}

func (m *Member) HasRole(roleID string) (bool, error) {
	var has bool
	err := m.read(func(rec *model.Member) { has = slices.Contains(rec.Roles, roleID) })
	return has, err
}

// Roles returns views of the member's roles that are still known.
func (m *Member) Roles() ([]*Role, error) {
	var ids []string
	err := m.read(func(rec *model.Member) {
		for _, id := range rec.Roles {
			if _, ok := m.s.roles[id]; ok {
				ids = append(ids, id)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Role, len(ids))
	for i, id := range ids {
		out[i] = m.s.roleView(id)
	}
	return out, nil
}

// Role is a linked view of a guild role.
type Role struct {
	s  *State
	id string
}

func (r *Role) ID() string { return r.id }

func (r *Role) read(fn func(*model.Role)) error {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.roles[r.id]
	if !ok {
		return notPresent("role", r.id)
	}
	fn(rec)
	return nil
}

func (r *Role) Record() (model.Role, error) {
	var out model.Role
	err := r.read(func(rec *model.Role) { out = *rec })
	return out, err
}

func (r *Role) Name() (string, error) {
	var name string
	err := r.read(func(rec *model.Role) { name = rec.Name })
	return name, err
}

func (r *Role) Position() (int, error) {
	var pos int
	err := r.read(func(rec *model.Role) { pos = rec.Position })
	return pos, err
}

func (r *Role) Permissions() (string, error) {
	var perms string
	err := r.read(func(rec *model.Role) { perms = rec.Permissions })
	return perms, err
}

// Members returns views of every tracked member holding the role.
func (r *Role) Members() ([]*Member, error) {
	var ids []string
	err := r.read(func(*model.Role) {
		for id, m := range r.s.members {
			if slices.Contains(m.Roles, r.id) {
				ids = append(ids, id)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	out := make([]*Member, len(ids))
	for i, id := range ids {
		out[i] = r.s.memberView(id)
	}
	return out, nil
}

// Channel is a linked view of a guild channel.
type Channel struct {
	s  *State
	id string
}

func (c *Channel) ID() string { return c.id }

func (c *Channel) read(fn func(*model.Channel)) error {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	rec, ok := c.s.channels[c.id]
	if !ok {
		return notPresent("channel", c.id)
	}
	fn(rec)
	return nil
}

func (c *Channel) Record() (model.Channel, error) {
	var out model.Channel
	err := c.read(func(rec *model.Channel) { out = *rec })
	return out, err
}

func (c *Channel) Name() (string, error) {
	var name string
	err := c.read(func(rec *model.Channel) { name = rec.Name })
	return name, err
}

func (c *Channel) Type() (model.ChannelType, error) {
	var typ model.ChannelType
	err := c.read(func(rec *model.Channel) { typ = rec.Type })
	return typ, err
}

// TextCapable reports whether the channel accepts messages, voice chat included.
func (c *Channel) TextCapable() (bool, error) {
	var ok bool
	err := c.read(func(rec *model.Channel) { ok = rec.TextCapable() })
	return ok, err
}

// Messages returns views of the channel's windowed messages, oldest first.
func (c *Channel) Messages() ([]*Message, error) {
	var recs []*messageRecord
	var ids []string
	err := c.read(func(*model.Channel) {
		w, ok := c.s.windows[c.id]
		if !ok {
			return
		}
		for _, id := range w.order {
			if rec, ok := w.live[id]; ok {
				ids = append(ids, id)
				recs = append(recs, rec)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Message, len(ids))
	for i, id := range ids {
		out[i] = c.s.messageView(c.id, id, recs[i])
	}
	return out, nil
}

// Message is a linked view of a tracked message. Holding it keeps an evicted
// message tracked.
type Message struct {
	s         *State
	channelID string
	id        string
	rec       *messageRecord
}

func (m *Message) ID() string        { return m.id }
func (m *Message) ChannelID() string { return m.channelID }

func (m *Message) read(fn func(*model.Message)) error {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	if m.rec.deleted {
		return notPresent("message", m.id)
	}
	fn(&m.rec.msg)
	return nil
}

func (m *Message) Record() (model.Message, error) {
	var out model.Message
	err := m.read(func(rec *model.Message) {
		out = *rec
		out.Reactions = slices.Clone(rec.Reactions)
	})
	return out, err
}

func (m *Message) Content() (string, error) {
	var content string
	err := m.read(func(rec *model.Message) { content = rec.Content })
	return content, err
}

func (m *Message) Author() (model.User, error) {
	var u model.User
	err := m.read(func(rec *model.Message) { u = rec.Author })
	return u, err
}

func (m *Message) Reactions() ([]model.Reaction, error) {
	var out []model.Reaction
	err := m.read(func(rec *model.Message) { out = slices.Clone(rec.Reactions) })
	return out, err
}

// Channel returns the view of the message's channel.
func (m *Message) Channel() (*Channel, error) {
	return m.s.Channel(m.channelID)
}
