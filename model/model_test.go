package model

import "testing"

func TestChannelCapabilities(t *testing.T) {
	cases := []struct {
		name     string
		typ      ChannelType
		text     bool
		voice    bool
		category bool
		thread   bool
	}{
		{"text", ChannelGuildText, true, false, false, false},
		{"voice", ChannelGuildVoice, true, true, false, false},
		{"stage", ChannelGuildStageVoice, true, true, false, false},
		{"category", ChannelGuildCategory, false, false, true, false},
		{"public thread", ChannelPublicThread, true, false, false, true},
		{"forum", ChannelGuildForum, false, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Channel{Type: tc.typ}
			if got := c.TextCapable(); got != tc.text {
				t.Errorf("TextCapable = %v, want %v", got, tc.text)
			}
			if got := c.VoiceCapable(); got != tc.voice {
				t.Errorf("VoiceCapable = %v, want %v", got, tc.voice)
			}
			if got := c.Category(); got != tc.category {
				t.Errorf("Category = %v, want %v", got, tc.category)
			}
			if got := c.Thread(); got != tc.thread {
				t.Errorf("Thread = %v, want %v", got, tc.thread)
			}
		})
	}
}

func TestDecodeMemberUpdate(t *testing.T) {
	raw := []byte(`{"guild_id":"1","user":{"id":"42","username":"ana"},"roles":["7","8"],"nick":null}`)
	ev, err := Decode[MemberUpdate](raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.GuildID != "1" || ev.User.ID != "42" {
		t.Errorf("unexpected ids: %+v", ev)
	}
	if len(ev.Roles) != 2 || ev.Roles[0] != "7" {
		t.Errorf("roles = %v", ev.Roles)
	}
	if ev.Nick != nil {
		t.Errorf("null nick should decode to nil, got %q", *ev.Nick)
	}
	if ev.JoinedAt != nil || ev.Deaf != nil {
		t.Errorf("absent fields should decode to nil, got %+v", ev)
	}
}

func TestDecodeMemberUpdateFullMember(t *testing.T) {
	raw := []byte(`{"guild_id":"1","user":{"id":"42"},"roles":[],"nick":"n","joined_at":"2024-01-02T03:04:05Z","pending":true,"deaf":true,"mute":false}`)
	ev, err := Decode[MemberUpdate](raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.Nick == nil || *ev.Nick != "n" {
		t.Errorf("nick = %v", ev.Nick)
	}
	if ev.JoinedAt == nil || ev.JoinedAt.Year() != 2024 {
		t.Errorf("joined_at = %v", ev.JoinedAt)
	}
	if !ev.Pending || ev.Deaf == nil || !*ev.Deaf || ev.Mute == nil || *ev.Mute {
		t.Errorf("flags = pending %v deaf %v mute %v", ev.Pending, ev.Deaf, ev.Mute)
	}
}

func TestEmojiKey(t *testing.T) {
	if k := (Emoji{ID: "99", Name: "party"}).Key(); k != "99" {
		t.Errorf("custom emoji key = %q", k)
	}
	if k := (Emoji{Name: "👍"}).Key(); k != "👍" {
		t.Errorf("unicode emoji key = %q", k)
	}
}
