package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Resolver returns a names.Resolver backed by the session's member cache,
// falling back to the users REST endpoint.
func (s *Source) Resolver() *Resolver {
	return &Resolver{session: s.session}
}

// Resolver looks up Discord members by user id.
type Resolver struct {
	session *discordgo.Session
	// fetch replaces the REST lookup in tests.
	fetch func(ctx context.Context, id string) (*discordgo.User, error)
}

// DisplayName implements names.Resolver.
func (r *Resolver) DisplayName(ctx context.Context, id string) (string, bool) {
	if id == "" || r.session == nil {
		return "", false
	}
	if st := r.session.State; st != nil {
		for _, g := range cachedGuildIDs(st) {
			if m, err := st.Member(g, id); err == nil {
				if n := MemberName(m); n != "" {
					return n, true
				}
			}
		}
	}

	fetch := r.fetch
	if fetch == nil {
		fetch = func(ctx context.Context, id string) (*discordgo.User, error) {
			return r.session.User(id, discordgo.WithContext(ctx))
		}
	}
	u, err := fetch(ctx, id)
	if err != nil {
		slog.Debug("discord user lookup failed", slog.String("component", "discord"), slog.String("member_id", id), slog.Any("err", err))
		return "", false
	}
	n := UserName(u)
	return n, n != ""
}

func cachedGuildIDs(st *discordgo.State) []string {
	st.RLock()
	defer st.RUnlock()
	ids := make([]string, 0, len(st.Guilds))
	for _, g := range st.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}
