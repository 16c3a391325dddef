// Package discord turns Discord voice state updates into presence transitions.
//
// The gateway session runs with SyncEvents so handlers see updates in the
// order Discord sent them. discordgo applies each update to its state cache
// before calling handlers, which means the channel memberships read from the
// cache inside a handler are already the post-transition ones.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/study-bridge/presence"
)

// Sink accepts transitions without blocking. presence.Dispatcher satisfies it.
type Sink interface {
	Submit(tr presence.Transition) bool
}

// Source is a Discord gateway connection feeding a Sink.
type Source struct {
	session *discordgo.Session
	sink    Sink
}

// New prepares a bot session for token. The connection is opened by Run.
func New(token string) (*Source, error) {
	if token == "" {
		return nil, errors.New("discord bot token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	s.SyncEvents = true
	s.State.TrackVoice = true
	s.State.TrackMembers = true

	src := &Source{session: s}
	s.AddHandler(src.onReady)
	s.AddHandler(src.onVoiceStateUpdate)
	return src, nil
}

// Run opens the gateway connection, feeds transitions to sink and blocks
// until ctx is done.
func (s *Source) Run(ctx context.Context, sink Sink) error {
	s.sink = sink
	if err := s.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	<-ctx.Done()
	if err := s.session.Close(); err != nil {
		slog.Warn("discord close failed", slog.String("component", "discord"), slog.Any("err", err))
	}
	return nil
}

func (s *Source) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	user := ""
	if r.User != nil {
		user = r.User.Username
	}
	slog.Info("discord ready", slog.String("component", "discord"), slog.String("user", user), slog.Int("guilds", len(r.Guilds)))
}

func (s *Source) onVoiceStateUpdate(ds *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v == nil || v.VoiceState == nil {
		return
	}
	before := ""
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate.ChannelID
	}
	if before == v.ChannelID {
		// mute, deafen, stream toggles
		return
	}

	voice := guildVoiceStates(ds.State, v.GuildID)
	lookup := func(userID string) presence.Member {
		if userID == v.UserID && v.Member != nil {
			return presence.Member{ID: userID, DisplayName: MemberName(v.Member)}
		}
		return stateMember(ds.State, v.GuildID, userID)
	}
	tr := BuildTransition(lookup(v.UserID), before, v.ChannelID, voice, lookup)
	slog.Debug("voice state update",
		slog.String("component", "discord"),
		slog.String("member_id", v.UserID),
		slog.String("from", before),
		slog.String("to", v.ChannelID))
	s.sink.Submit(tr)
}

// BuildTransition assembles the transition for member moving from channel
// before to channel after, given the guild's voice states after the move.
// Empty channel ids mean "not in voice".
func BuildTransition(member presence.Member, before, after string, voice []*discordgo.VoiceState, lookup func(userID string) presence.Member) presence.Transition {
	return presence.Transition{
		Member:   member,
		Previous: snapshot(before, voice, lookup),
		Next:     snapshot(after, voice, lookup),
	}
}

func snapshot(channelID string, voice []*discordgo.VoiceState, lookup func(string) presence.Member) *presence.Snapshot {
	if channelID == "" {
		return nil
	}
	snap := &presence.Snapshot{ChannelID: channelID}
	for _, vs := range voice {
		if vs == nil || vs.ChannelID != channelID {
			continue
		}
		m := presence.Member{ID: vs.UserID}
		if lookup != nil {
			m = lookup(vs.UserID)
		}
		if m.ID == "" {
			m.ID = vs.UserID
		}
		if m.DisplayName == "" && vs.Member != nil {
			m.DisplayName = MemberName(vs.Member)
		}
		snap.Members = append(snap.Members, m)
	}
	return snap
}

// guildVoiceStates copies the cached voice states of a guild.
func guildVoiceStates(st *discordgo.State, guildID string) []*discordgo.VoiceState {
	if st == nil {
		return nil
	}
	g, err := st.Guild(guildID)
	if err != nil {
		return nil
	}
	st.RLock()
	defer st.RUnlock()
	out := make([]*discordgo.VoiceState, 0, len(g.VoiceStates))
	for _, vs := range g.VoiceStates {
		cp := *vs
		out = append(out, &cp)
	}
	return out
}

func stateMember(st *discordgo.State, guildID, userID string) presence.Member {
	m := presence.Member{ID: userID}
	if st == nil {
		return m
	}
	if gm, err := st.Member(guildID, userID); err == nil {
		m.DisplayName = MemberName(gm)
	}
	return m
}

// MemberName returns the guild nickname, then the global name, then the
// username of m.
func MemberName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	return UserName(m.User)
}

// UserName returns the global display name of u, or its username.
func UserName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
