package guild

import "github.com/igo95862/DiscordBot-lib-sub000/model"

// ChangeKind tells what happened to an entity.
type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Updated
	Deleted
	ReactionAdded
	ReactionRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	case ReactionAdded:
		return "reaction_added"
	case ReactionRemoved:
		return "reaction_removed"
	}
	return "unknown"
}

// MemberChange is published for joins, updates and departures. For updates,
// AddedRoles and RemovedRoles hold the role diff against the previous record.
type MemberChange struct {
	Kind   ChangeKind
	Member *Member
	// Snapshot is the record right after the change, or right before removal.
	Snapshot     model.Member
	AddedRoles   []string
	RemovedRoles []string
}

// RoleChange is published when a role is created, updated or deleted.
type RoleChange struct {
	Kind     ChangeKind
	Role     *Role
	Snapshot model.Role
}

// ChannelChange is published when a channel is created, updated or deleted.
type ChannelChange struct {
	Kind     ChangeKind
	Channel  *Channel
	Snapshot model.Channel
}

// MessageChange is published for tracked messages. UserID and Emoji are set
// for reaction changes only.
type MessageChange struct {
	Kind     ChangeKind
	Message  *Message
	Snapshot model.Message
	UserID   string
	Emoji    model.Emoji
}

// EmojiChange carries the emoji list before and after a replacement.
type EmojiChange struct {
	Before []model.Emoji
	After  []model.Emoji
}

// Dispensers groups the state-wide change streams.
type Dispensers struct {
	MemberJoined  *Dispenser[MemberChange]
	MemberUpdated *Dispenser[MemberChange]
	MemberLeft    *Dispenser[MemberChange]

	RoleCreated *Dispenser[RoleChange]
	RoleUpdated *Dispenser[RoleChange]
	RoleDeleted *Dispenser[RoleChange]

	ChannelCreated *Dispenser[ChannelChange]
	ChannelUpdated *Dispenser[ChannelChange]
	ChannelDeleted *Dispenser[ChannelChange]

	MessageCreated *Dispenser[MessageChange]
	MessageUpdated *Dispenser[MessageChange]
	MessageDeleted *Dispenser[MessageChange]

	ReactionAdded   *Dispenser[MessageChange]
	ReactionRemoved *Dispenser[MessageChange]

	EmojisUpdated *Dispenser[EmojiChange]
}

func newDispensers() Dispensers {
	return Dispensers{
		MemberJoined:    NewDispenser[MemberChange](),
		MemberUpdated:   NewDispenser[MemberChange](),
		MemberLeft:      NewDispenser[MemberChange](),
		RoleCreated:     NewDispenser[RoleChange](),
		RoleUpdated:     NewDispenser[RoleChange](),
		RoleDeleted:     NewDispenser[RoleChange](),
		ChannelCreated:  NewDispenser[ChannelChange](),
		ChannelUpdated:  NewDispenser[ChannelChange](),
		ChannelDeleted:  NewDispenser[ChannelChange](),
		MessageCreated:  NewDispenser[MessageChange](),
		MessageUpdated:  NewDispenser[MessageChange](),
		MessageDeleted:  NewDispenser[MessageChange](),
		ReactionAdded:   NewDispenser[MessageChange](),
		ReactionRemoved: NewDispenser[MessageChange](),
		EmojisUpdated:   NewDispenser[EmojiChange](),
	}
}
