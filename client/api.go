package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/igo95862/DiscordBot-lib-sub000/model"
)

// MessageQuery selects a page of channel messages. At most one of Around,
// Before and After is honoured by the server.
type MessageQuery struct {
	Around string
	Before string
	After  string
	Limit  int
}

func (q MessageQuery) values() url.Values {
	v := url.Values{}
	if q.Around != "" {
		v.Set("around", q.Around)
	}
	if q.Before != "" {
		v.Set("before", q.Before)
	}
	if q.After != "" {
		v.Set("after", q.After)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// MessageReference points a new message at the one it replies to.
type MessageReference struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

// MessageCreate is the body of CreateMessage.
type MessageCreate struct {
	Content   string            `json:"content,omitempty"`
	TTS       bool              `json:"tts,omitempty"`
	Reference *MessageReference `json:"message_reference,omitempty"`
}

// MessageEdit is the body of EditMessage; nil fields are left unchanged.
type MessageEdit struct {
	Content *string `json:"content,omitempty"`
}

// MemberModify is the body of ModifyMember; nil fields are left unchanged.
type MemberModify struct {
	Nick  *string   `json:"nick,omitempty"`
	Roles *[]string `json:"roles,omitempty"`
	Mute  *bool     `json:"mute,omitempty"`
	Deaf  *bool     `json:"deaf,omitempty"`
}

// RoleParams is the body of CreateRole and ModifyRole; nil fields are left unchanged.
type RoleParams struct {
	Name        *string `json:"name,omitempty"`
	Permissions *string `json:"permissions,omitempty"`
	Color       *int    `json:"color,omitempty"`
	Hoist       *bool   `json:"hoist,omitempty"`
	Mentionable *bool   `json:"mentionable,omitempty"`
}

func esc(s string) string { return url.PathEscape(s) }

// GetGatewayBot returns the gateway URL and session start limits.
func (c *Client) GetGatewayBot(ctx context.Context) (model.GatewayBot, error) {
	return fetch[model.GatewayBot](ctx, c, OpGetGatewayBot, "", http.MethodGet, "/gateway/bot", nil, nil)
}

// GetCurrentUser returns the bot's own account.
func (c *Client) GetCurrentUser(ctx context.Context) (model.User, error) {
	return fetch[model.User](ctx, c, OpGetCurrentUser, "", http.MethodGet, "/users/@me", nil, nil)
}

func (c *Client) GetGuild(ctx context.Context, guildID string) (model.Guild, error) {
	return fetch[model.Guild](ctx, c, OpGetGuild, guildID, http.MethodGet, "/guilds/"+esc(guildID), nil, nil)
}

func (c *Client) GetGuildChannels(ctx context.Context, guildID string) ([]model.Channel, error) {
	return fetch[[]model.Channel](ctx, c, OpGetGuildChannels, guildID, http.MethodGet,
		"/guilds/"+esc(guildID)+"/channels", nil, nil)
}

func (c *Client) GetGuildRoles(ctx context.Context, guildID string) ([]model.Role, error) {
	return fetch[[]model.Role](ctx, c, OpGetGuildRoles, guildID, http.MethodGet,
		"/guilds/"+esc(guildID)+"/roles", nil, nil)
}

func (c *Client) GetGuildMember(ctx context.Context, guildID, userID string) (model.Member, error) {
	return fetch[model.Member](ctx, c, OpGetGuildMember, guildID, http.MethodGet,
		"/guilds/"+esc(guildID)+"/members/"+esc(userID), nil, nil)
}

// ListGuildMembers returns up to limit members with user ids above after.
func (c *Client) ListGuildMembers(ctx context.Context, guildID, after string, limit int) ([]model.Member, error) {
	q := url.Values{}
	if after != "" {
		q.Set("after", after)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return fetch[[]model.Member](ctx, c, OpListGuildMembers, guildID, http.MethodGet,
		"/guilds/"+esc(guildID)+"/members", q, nil)
}

func (c *Client) GetChannel(ctx context.Context, channelID string) (model.Channel, error) {
	return fetch[model.Channel](ctx, c, OpGetChannel, channelID, http.MethodGet, "/channels/"+esc(channelID), nil, nil)
}

func (c *Client) GetChannelMessages(ctx context.Context, channelID string, q MessageQuery) ([]model.Message, error) {
	return fetch[[]model.Message](ctx, c, OpGetMessages, channelID, http.MethodGet,
		"/channels/"+esc(channelID)+"/messages", q.values(), nil)
}

func (c *Client) GetMessage(ctx context.Context, channelID, messageID string) (model.Message, error) {
	return fetch[model.Message](ctx, c, OpGetMessage, channelID, http.MethodGet,
		"/channels/"+esc(channelID)+"/messages/"+esc(messageID), nil, nil)
}

func (c *Client) CreateMessage(ctx context.Context, channelID string, msg MessageCreate) (model.Message, error) {
	return fetch[model.Message](ctx, c, OpCreateMessage, channelID, http.MethodPost,
		"/channels/"+esc(channelID)+"/messages", nil, msg)
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, edit MessageEdit) (model.Message, error) {
	return fetch[model.Message](ctx, c, OpEditMessage, channelID, http.MethodPatch,
		"/channels/"+esc(channelID)+"/messages/"+esc(messageID), nil, edit)
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_, err := c.request(ctx, OpDeleteMessage, channelID, http.MethodDelete,
		"/channels/"+esc(channelID)+"/messages/"+esc(messageID), nil, nil)
	return err
}

// CreateReaction reacts as the bot. emoji is a unicode emoji or "name:id"
// for a custom one.
func (c *Client) CreateReaction(ctx context.Context, channelID, messageID, emoji string) error {
	_, err := c.request(ctx, OpCreateReaction, channelID, http.MethodPut,
		"/channels/"+esc(channelID)+"/messages/"+esc(messageID)+"/reactions/"+esc(emoji)+"/@me", nil, nil)
	return err
}

func (c *Client) DeleteOwnReaction(ctx context.Context, channelID, messageID, emoji string) error {
	_, err := c.request(ctx, OpDeleteOwnReaction, channelID, http.MethodDelete,
		"/channels/"+esc(channelID)+"/messages/"+esc(messageID)+"/reactions/"+esc(emoji)+"/@me", nil, nil)
	return err
}

func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	_, err := c.request(ctx, OpAddMemberRole, guildID, http.MethodPut,
		"/guilds/"+esc(guildID)+"/members/"+esc(userID)+"/roles/"+esc(roleID), nil, nil)
	return err
}

func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	_, err := c.request(ctx, OpRemoveMemberRole, guildID, http.MethodDelete,
		"/guilds/"+esc(guildID)+"/members/"+esc(userID)+"/roles/"+esc(roleID), nil, nil)
	return err
}

func (c *Client) ModifyMember(ctx context.Context, guildID, userID string, mod MemberModify) (model.Member, error) {
	return fetch[model.Member](ctx, c, OpModifyMember, guildID, http.MethodPatch,
		"/guilds/"+esc(guildID)+"/members/"+esc(userID), nil, mod)
}

// RemoveMember kicks userID from the guild.
func (c *Client) RemoveMember(ctx context.Context, guildID, userID string) error {
	_, err := c.request(ctx, OpRemoveMember, guildID, http.MethodDelete,
		"/guilds/"+esc(guildID)+"/members/"+esc(userID), nil, nil)
	return err
}

func (c *Client) CreateRole(ctx context.Context, guildID string, params RoleParams) (model.Role, error) {
	return fetch[model.Role](ctx, c, OpCreateRole, guildID, http.MethodPost,
		"/guilds/"+esc(guildID)+"/roles", nil, params)
}

func (c *Client) ModifyRole(ctx context.Context, guildID, roleID string, params RoleParams) (model.Role, error) {
	return fetch[model.Role](ctx, c, OpModifyRole, guildID, http.MethodPatch,
		"/guilds/"+esc(guildID)+"/roles/"+esc(roleID), nil, params)
}

func (c *Client) DeleteRole(ctx context.Context, guildID, roleID string) error {
	_, err := c.request(ctx, OpDeleteRole, guildID, http.MethodDelete,
		"/guilds/"+esc(guildID)+"/roles/"+esc(roleID), nil, nil)
	return err
}
