package model

import "time"

// Dispatch event type names as carried in the gateway envelope's "t" field.
const (
	EventReady             = "READY"
	EventResumed           = "RESUMED"
	EventGuildCreate       = "GUILD_CREATE"
	EventGuildUpdate       = "GUILD_UPDATE"
	EventGuildDelete       = "GUILD_DELETE"
	EventGuildMemberAdd    = "GUILD_MEMBER_ADD"
	EventGuildMemberUpdate = "GUILD_MEMBER_UPDATE"
	EventGuildMemberRemove = "GUILD_MEMBER_REMOVE"
	EventGuildRoleCreate   = "GUILD_ROLE_CREATE"
	EventGuildRoleUpdate   = "GUILD_ROLE_UPDATE"
	EventGuildRoleDelete   = "GUILD_ROLE_DELETE"
	EventGuildEmojisUpdate = "GUILD_EMOJIS_UPDATE"
	EventChannelCreate     = "CHANNEL_CREATE"
	EventChannelUpdate     = "CHANNEL_UPDATE"
	EventChannelDelete     = "CHANNEL_DELETE"
	EventMessageCreate     = "MESSAGE_CREATE"
	EventMessageUpdate     = "MESSAGE_UPDATE"
	EventMessageDelete     = "MESSAGE_DELETE"
	EventReactionAdd       = "MESSAGE_REACTION_ADD"
	EventReactionRemove    = "MESSAGE_REACTION_REMOVE"
	EventTypingStart       = "TYPING_START"
	EventPresenceUpdate    = "PRESENCE_UPDATE"
)

// Ready is the READY dispatch payload.
type Ready struct {
	Version          int    `json:"v"`
	User             User   `json:"user"`
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	Guilds           []struct {
		ID          string `json:"id"`
		Unavailable bool   `json:"unavailable"`
	} `json:"guilds"`
}

// GuildDelete is the GUILD_DELETE payload; Unavailable marks an outage
// rather than the bot leaving.
type GuildDelete struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

// MemberAdd is the GUILD_MEMBER_ADD payload.
type MemberAdd struct {
	Member
	GuildID string `json:"guild_id"`
}

// MemberUpdate is the GUILD_MEMBER_UPDATE payload. It carries the full
// member, not a delta: a null nick means the nickname was removed. Deaf and
// Mute are only sent by some gateway versions and stay nil when absent.
type MemberUpdate struct {
	GuildID  string     `json:"guild_id"`
	User     User       `json:"user"`
	Nick     *string    `json:"nick,omitempty"`
	Roles    []string   `json:"roles"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
	Pending  bool       `json:"pending,omitempty"`
	Deaf     *bool      `json:"deaf,omitempty"`
	Mute     *bool      `json:"mute,omitempty"`
}

// MemberRemove is the GUILD_MEMBER_REMOVE payload.
type MemberRemove struct {
	GuildID string `json:"guild_id"`
	User    User   `json:"user"`
}

// RoleEvent is the GUILD_ROLE_CREATE and GUILD_ROLE_UPDATE payload.
type RoleEvent struct {
	GuildID string `json:"guild_id"`
	Role    Role   `json:"role"`
}

// RoleDelete is the GUILD_ROLE_DELETE payload.
type RoleDelete struct {
	GuildID string `json:"guild_id"`
	RoleID  string `json:"role_id"`
}

// EmojisUpdate is the GUILD_EMOJIS_UPDATE payload; Emojis replaces the whole list.
type EmojisUpdate struct {
	GuildID string  `json:"guild_id"`
	Emojis  []Emoji `json:"emojis"`
}

// MessageDelete is the MESSAGE_DELETE payload.
type MessageDelete struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
}

// ReactionEvent is the MESSAGE_REACTION_ADD and MESSAGE_REACTION_REMOVE payload.
type ReactionEvent struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Emoji     Emoji  `json:"emoji"`
}

// MessageUpdate is the MESSAGE_UPDATE payload. Only ID and ChannelID are
// guaranteed; nil fields were not sent and must leave the record untouched.
type MessageUpdate struct {
	ID              string     `json:"id"`
	ChannelID       string     `json:"channel_id"`
	GuildID         string     `json:"guild_id,omitempty"`
	Content         *string    `json:"content,omitempty"`
	EditedTimestamp *time.Time `json:"edited_timestamp,omitempty"`
	Pinned          *bool      `json:"pinned,omitempty"`
}
