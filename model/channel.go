package model

// ChannelType enumerates platform channel kinds.
type ChannelType int

const (
	ChannelGuildText          ChannelType = 0
	ChannelDM                 ChannelType = 1
	ChannelGuildVoice         ChannelType = 2
	ChannelGroupDM            ChannelType = 3
	ChannelGuildCategory      ChannelType = 4
	ChannelGuildAnnouncement  ChannelType = 5
	ChannelAnnouncementThread ChannelType = 10
	ChannelPublicThread       ChannelType = 11
	ChannelPrivateThread      ChannelType = 12
	ChannelGuildStageVoice    ChannelType = 13
	ChannelGuildForum         ChannelType = 15
)

// Channel is a single record for every channel kind. Behaviour that differs
// between kinds is expressed through the capability methods below.
type Channel struct {
	ID            string      `json:"id"`
	Type          ChannelType `json:"type"`
	GuildID       string      `json:"guild_id,omitempty"`
	Name          string      `json:"name,omitempty"`
	Position      int         `json:"position,omitempty"`
	Topic         string      `json:"topic,omitempty"`
	NSFW          bool        `json:"nsfw,omitempty"`
	ParentID      string      `json:"parent_id,omitempty"`
	LastMessageID string      `json:"last_message_id,omitempty"`
	Bitrate       int         `json:"bitrate,omitempty"`
	UserLimit     int         `json:"user_limit,omitempty"`
	RateLimit     int         `json:"rate_limit_per_user,omitempty"`
}

// TextCapable reports whether messages can be posted to the channel. Voice
// and stage channels carry their own text chat and count as text capable.
func (c Channel) TextCapable() bool {
	switch c.Type {
	case ChannelGuildText, ChannelDM, ChannelGroupDM, ChannelGuildAnnouncement,
		ChannelAnnouncementThread, ChannelPublicThread, ChannelPrivateThread,
		ChannelGuildVoice, ChannelGuildStageVoice:
		return true
	}
	return false
}

// VoiceCapable reports whether the channel carries voice.
func (c Channel) VoiceCapable() bool {
	return c.Type == ChannelGuildVoice || c.Type == ChannelGuildStageVoice
}

// Category reports whether the channel only groups other channels.
func (c Channel) Category() bool {
	return c.Type == ChannelGuildCategory
}

// Thread reports whether the channel is a thread under a parent channel.
func (c Channel) Thread() bool {
	switch c.Type {
	case ChannelAnnouncementThread, ChannelPublicThread, ChannelPrivateThread:
		return true
	}
	return false
}
