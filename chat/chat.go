package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/study-bridge/presence"
)

// Sink accepts transitions without blocking. presence.Dispatcher satisfies it.
type Sink interface {
	Submit(tr presence.Transition) bool
}

// Source follows the membership of one Twitch chat channel.
type Source struct {
	channel string
	self    string
	oauth   string
	sink    Sink

	mu     sync.Mutex
	roster []string
}

// New returns a Source for channel, logging in as username with the bot's
// OAuth token ("oauth:" prefix optional).
func New(channel, username, oauthToken string) (*Source, error) {
	if channel == "" || username == "" || oauthToken == "" {
		return nil, errors.New("twitch channel, bot username and oauth token are required")
	}
	if !strings.HasPrefix(oauthToken, "oauth:") {
		oauthToken = "oauth:" + oauthToken
	}
	s := newSource(channel, username, nil)
	s.oauth = oauthToken
	return s, nil
}

func newSource(channel, self string, sink Sink) *Source {
	return &Source{
		channel: strings.ToLower(strings.TrimPrefix(channel, "#")),
		self:    strings.ToLower(self),
		sink:    sink,
	}
}

// ChannelID is the id transitions carry for the followed channel. Use it as
// the watched channel id.
func (s *Source) ChannelID() string { return s.channel }

// Run connects to Twitch IRC, feeds transitions to sink and blocks until ctx
// is done.
func (s *Source) Run(ctx context.Context, sink Sink) error {
	s.sink = sink
	client := twitch.NewClient(s.self, s.oauth)
	client.Capabilities = []string{twitch.TagsCapability, twitch.CommandsCapability, twitch.MembershipCapability}

	client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("component", "chat"), slog.String("channel", s.channel))
	})
	client.OnNamesMessage(func(m twitch.NamesMessage) { s.handleNames(m.Channel, m.Users) })
	client.OnUserJoinMessage(func(m twitch.UserJoinMessage) { s.handleJoin(m.Channel, m.User) })
	client.OnUserPartMessage(func(m twitch.UserPartMessage) { s.handlePart(m.Channel, m.User) })

	// Handle context cancellation by closing the client
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = client.Disconnect()
		close(done)
	}()

	client.Join(s.channel)
	err := client.Connect()
	if ctx.Err() != nil || errors.Is(err, twitch.ErrClientDisconnected) {
		<-done
		return nil
	}
	return fmt.Errorf("twitch chat connect: %w", err)
}

// handleNames seeds the roster with users already present. No transitions are
// emitted: they were in the channel before we started watching.
func (s *Source) handleNames(channel string, users []string) {
	if !s.ours(channel) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		u = strings.ToLower(u)
		if u == "" || u == s.self || s.indexOf(u) >= 0 {
			continue
		}
		s.roster = append(s.roster, u)
	}
	slog.Debug("twitch roster seeded", slog.String("component", "chat"), slog.Int("members", len(s.roster)))
}

func (s *Source) handleJoin(channel, user string) {
	user = strings.ToLower(user)
	if !s.ours(channel) || user == "" || user == s.self {
		return
	}
	s.mu.Lock()
	if s.indexOf(user) >= 0 {
		s.mu.Unlock()
		return
	}
	s.roster = append(s.roster, user)
	tr := presence.Transition{Member: presence.Member{ID: user}, Next: s.snapshot()}
	s.mu.Unlock()
	s.sink.Submit(tr)
}

func (s *Source) handlePart(channel, user string) {
	user = strings.ToLower(user)
	if !s.ours(channel) || user == "" || user == s.self {
		return
	}
	s.mu.Lock()
	i := s.indexOf(user)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.roster = append(s.roster[:i], s.roster[i+1:]...)
	tr := presence.Transition{Member: presence.Member{ID: user}, Previous: s.snapshot()}
	s.mu.Unlock()
	s.sink.Submit(tr)
}

func (s *Source) ours(channel string) bool {
	return strings.EqualFold(strings.TrimPrefix(channel, "#"), s.channel)
}

// indexOf and snapshot expect s.mu to be held.
func (s *Source) indexOf(user string) int {
	for i, u := range s.roster {
		if u == user {
			return i
		}
	}
	return -1
}

func (s *Source) snapshot() *presence.Snapshot {
	snap := &presence.Snapshot{ChannelID: s.channel, Members: make([]presence.Member, 0, len(s.roster))}
	for _, u := range s.roster {
		snap.Members = append(snap.Members, presence.Member{ID: u})
	}
	return snap
}
