package client

import "github.com/igo95862/DiscordBot-lib-sub000/rest"

// Operation names a REST operation. By default it is also the bucket key.
type Operation string

const (
	OpGetGatewayBot     Operation = "get_gateway_bot"
	OpGetCurrentUser    Operation = "get_current_user"
	OpGetGuild          Operation = "get_guild"
	OpGetGuildChannels  Operation = "get_guild_channels"
	OpGetGuildRoles     Operation = "get_guild_roles"
	OpGetGuildMember    Operation = "get_guild_member"
	OpListGuildMembers  Operation = "list_guild_members"
	OpGetChannel        Operation = "get_channel"
	OpGetMessages       Operation = "get_channel_messages"
	OpGetMessage        Operation = "get_message"
	OpCreateMessage     Operation = "create_message"
	OpEditMessage       Operation = "edit_message"
	OpDeleteMessage     Operation = "delete_message"
	OpCreateReaction    Operation = "create_reaction"
	OpDeleteOwnReaction Operation = "delete_own_reaction"
	OpAddMemberRole     Operation = "add_member_role"
	OpRemoveMemberRole  Operation = "remove_member_role"
	OpModifyMember      Operation = "modify_member"
	OpRemoveMember      Operation = "remove_member"
	OpCreateRole        Operation = "create_role"
	OpModifyRole        Operation = "modify_role"
	OpDeleteRole        Operation = "delete_role"
)

// bucketOverrides maps operations whose remote limit is shared by resource
// rather than per endpoint to the class of that shared bucket. The resource
// id is the call's guild or channel id.
var bucketOverrides = map[Operation]string{
	OpAddMemberRole:     "guild-member-roles",
	OpRemoveMemberRole:  "guild-member-roles",
	OpCreateMessage:     "channel-messages",
	OpEditMessage:       "channel-messages",
	OpDeleteMessage:     "channel-message-delete",
	OpCreateReaction:    "channel-reactions",
	OpDeleteOwnReaction: "channel-reactions",
}

// BucketFor returns the throttle bucket for op on resourceID.
func BucketFor(op Operation, resourceID string) rest.BucketKey {
	if class, ok := bucketOverrides[op]; ok {
		return rest.Key(class, resourceID)
	}
	return rest.BucketKey(op)
}
