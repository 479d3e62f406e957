// Package model defines the payload schemas exchanged with the chat platform.
//
// Payloads are decoded once at the ingestion boundary (REST response or
// gateway dispatch) into these structs; everything above this layer works
// with typed records rather than raw key-value maps.
package model

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decode unmarshals a raw payload into a freshly allocated T.
func Decode[T any](raw []byte) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// User is a platform account.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Member is a user's membership record within one guild.
type Member struct {
	User     User      `json:"user"`
	Nick     string    `json:"nick,omitempty"`
	Roles    []string  `json:"roles"`
	JoinedAt time.Time `json:"joined_at"`
	Deaf     bool      `json:"deaf,omitempty"`
	Mute     bool      `json:"mute,omitempty"`
	Pending  bool      `json:"pending,omitempty"`
}

// ID returns the member's user id.
func (m Member) ID() string { return m.User.ID }

// Role is a guild permission role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Hoist       bool   `json:"hoist"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	Managed     bool   `json:"managed"`
	Mentionable bool   `json:"mentionable"`
}

// Emoji is a custom guild emoji, or a unicode emoji when ID is empty.
type Emoji struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Roles    []string `json:"roles,omitempty"`
	Animated bool     `json:"animated,omitempty"`
}

// Key identifies the emoji in reaction bookkeeping: the id for custom emoji,
// the name for unicode ones.
func (e Emoji) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

// Reaction is an aggregated reaction on a message.
type Reaction struct {
	Count int   `json:"count"`
	Me    bool  `json:"me"`
	Emoji Emoji `json:"emoji"`
}

// Message is a channel message.
type Message struct {
	ID              string     `json:"id"`
	ChannelID       string     `json:"channel_id"`
	GuildID         string     `json:"guild_id,omitempty"`
	Author          User       `json:"author"`
	Content         string     `json:"content"`
	Timestamp       time.Time  `json:"timestamp"`
	EditedTimestamp *time.Time `json:"edited_timestamp,omitempty"`
	Pinned          bool       `json:"pinned,omitempty"`
	Reactions       []Reaction `json:"reactions,omitempty"`
}

// Guild is the full guild payload as delivered by GUILD_CREATE; REST
// responses omit Members and Channels.
type Guild struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon,omitempty"`
	OwnerID     string    `json:"owner_id"`
	MemberCount int       `json:"member_count,omitempty"`
	Unavailable bool      `json:"unavailable,omitempty"`
	Roles       []Role    `json:"roles"`
	Emojis      []Emoji   `json:"emojis"`
	Members     []Member  `json:"members,omitempty"`
	Channels    []Channel `json:"channels,omitempty"`
}

// GatewayBot is the GET /gateway/bot response.
type GatewayBot struct {
	URL               string `json:"url"`
	Shards            int    `json:"shards"`
	SessionStartLimit struct {
		Total          int `json:"total"`
		Remaining      int `json:"remaining"`
		ResetAfter     int `json:"reset_after"`
		MaxConcurrency int `json:"max_concurrency"`
	} `json:"session_start_limit"`
}
