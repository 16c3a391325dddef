package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/study-bridge/history"
	"github.com/onnwee/study-bridge/names"
	"github.com/onnwee/study-bridge/notify"
	"github.com/onnwee/study-bridge/sessions"
	"github.com/onnwee/study-bridge/telemetry"
)

// Store is the remote session record. A nil session with a nil error means
// there is no active session.
type Store interface {
	GetLatest(ctx context.Context) (*sessions.Session, error)
	Create(ctx context.Context, p sessions.CreateParams) (string, error)
	Update(ctx context.Context, ref string, p sessions.UpdateParams) (*sessions.Session, error)
	Delete(ctx context.Context, ref string) error
}

// Messenger posts and edits the status message.
type Messenger interface {
	Post(ctx context.Context, p notify.Payload) (string, error)
	Update(ctx context.Context, ref string, p notify.Payload) error
}

// Archive keeps finished sessions.
type Archive interface {
	Record(ctx context.Context, r history.Record) error
}

// Config wires a Controller. Names, Archive, Location and Now are optional.
type Config struct {
	WatchedChannelID string
	Store            Store
	Messenger        Messenger
	Names            names.Directory
	Archive          Archive
	Location         *time.Location
	Now              func() time.Time
}

// Stats summarizes what the controller has handled since start.
type Stats struct {
	WatchedChannelID string            `json:"watched_channel_id"`
	Handled          map[string]uint64 `json:"handled"`
	LastKind         string            `json:"last_kind,omitempty"`
	LastEventAt      time.Time         `json:"last_event_at,omitempty"`
}

// Controller drives the session lifecycle of the watched channel.
type Controller struct {
	watched   string
	store     Store
	messenger Messenger
	names     names.Directory
	archive   Archive
	loc       *time.Location
	now       func() time.Time

	// mu serializes transitions; statsMu guards the counters so Stats never
	// waits behind store or Slack calls.
	mu       sync.Mutex
	statsMu  sync.Mutex
	handled  map[Kind]uint64
	lastKind Kind
	lastAt   time.Time
}

// NewController returns a Controller for cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{
		watched:   cfg.WatchedChannelID,
		store:     cfg.Store,
		messenger: cfg.Messenger,
		names:     cfg.Names,
		archive:   cfg.Archive,
		loc:       cfg.Location,
		now:       cfg.Now,
		handled:   make(map[Kind]uint64),
	}
	if c.names == nil {
		c.names = names.NewMemory()
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// HandleTransition applies tr. Calls are serialized; errors are logged.
func (c *Controller) HandleTransition(ctx context.Context, tr Transition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kind := Classify(tr, c.watched)
	c.statsMu.Lock()
	c.handled[kind]++
	c.lastKind = kind
	c.lastAt = c.now()
	c.statsMu.Unlock()
	telemetry.CountTransition(kind.String())

	c.remember(ctx, tr)
	if kind == KindNoOp {
		return
	}

	ctx, span := telemetry.StartSpan(ctx, "presence", "presence."+kind.String(),
		telemetry.KindAttr(kind.String()),
		telemetry.ChannelAttr(c.watched),
	)
	defer span.End()

	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "presence"),
		slog.String("kind", kind.String()),
		slog.String("member_id", tr.Member.ID),
	)
	log.Debug("presence transition")

	telemetry.TimeFunc(telemetry.HandleDuration, func() {
		switch kind {
		case KindStart:
			c.start(ctx, log, tr)
		case KindUpdate:
			c.update(ctx, log, tr)
		case KindFinish:
			c.finish(ctx, log)
		}
	})
}

// Stats returns a copy of the handled counters.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s := Stats{WatchedChannelID: c.watched, Handled: make(map[string]uint64, len(c.handled))}
	for k, n := range c.handled {
		s.Handled[k.String()] = n
	}
	if !c.lastAt.IsZero() {
		s.LastKind = c.lastKind.String()
		s.LastEventAt = c.lastAt
	}
	return s
}

func (c *Controller) start(ctx context.Context, log *slog.Logger, tr Transition) {
	joined := tr.Next.Members[0]
	name := c.displayName(ctx, joined, tr.Member)

	ref, err := c.messenger.Post(ctx, notify.Started(c.now().In(c.loc), name))
	telemetry.CountNotification("started", err)
	if err != nil {
		telemetry.SpanError(ctx, err)
		log.Error("post started notification failed", slog.Any("err", err))
		return
	}
	telemetry.AnnotateRef(ctx, ref)

	if _, err := c.store.Create(ctx, sessions.CreateParams{Ref: ref, JoinedMemberIDs: []string{joined.ID}}); err != nil {
		telemetry.SpanError(ctx, err)
		log.Error("create session failed", slog.String("ref", ref), slog.Any("err", err))
		return
	}
	telemetry.SetSessionActive(true)
	log.Info("session started", slog.String("ref", ref), slog.String("member", name))
}

func (c *Controller) update(ctx context.Context, log *slog.Logger, tr Transition) {
	s := c.latest(ctx, log, KindUpdate)
	if s == nil {
		return
	}
	telemetry.AnnotateRef(ctx, s.Ref)
	side := WatchedSide(tr, c.watched)
	memberNames := make([]string, 0, side.Size())
	for _, m := range side.Members {
		memberNames = append(memberNames, c.displayName(ctx, m, Member{}))
	}

	err := c.messenger.Update(ctx, s.Ref, notify.Updated(s.CreatedAt.In(c.loc), memberNames))
	telemetry.CountNotification("updated", err)
	if err != nil {
		log.Warn("update status message failed", slog.String("ref", s.Ref), slog.Any("err", err))
	}

	if _, err := c.store.Update(ctx, s.Ref, sessions.UpdateParams{JoinedMemberIDs: side.IDs()}); err != nil {
		telemetry.SpanError(ctx, err)
		log.Error("update session failed", slog.String("ref", s.Ref), slog.Any("err", err))
		return
	}
	log.Info("session updated", slog.String("ref", s.Ref), slog.Int("members", side.Size()))
}

func (c *Controller) finish(ctx context.Context, log *slog.Logger) {
	s := c.latest(ctx, log, KindFinish)
	if s == nil {
		return
	}
	telemetry.AnnotateRef(ctx, s.Ref)
	ended := c.now()
	elapsed := ended.Sub(s.CreatedAt)
	memberNames := names.ResolveAll(ctx, c.names, s.JoinedMemberIDs)

	err := c.messenger.Update(ctx, s.Ref, notify.Finished(s.CreatedAt.In(c.loc), memberNames, elapsed))
	telemetry.CountNotification("finished", err)
	if err != nil {
		log.Warn("update status message failed", slog.String("ref", s.Ref), slog.Any("err", err))
	}

	if err := c.store.Delete(ctx, s.Ref); err != nil {
		telemetry.SpanError(ctx, err)
		log.Error("delete session failed", slog.String("ref", s.Ref), slog.Any("err", err))
		return
	}
	telemetry.SetSessionActive(false)
	telemetry.ObserveSession(elapsed)
	log.Info("session finished", slog.String("ref", s.Ref), slog.Duration("elapsed", elapsed))

	if c.archive == nil {
		return
	}
	rec := history.Record{
		Ref:         s.Ref,
		StartedAt:   s.CreatedAt,
		EndedAt:     ended,
		Duration:    elapsed,
		MemberIDs:   s.JoinedMemberIDs,
		MemberNames: memberNames,
	}
	if err := c.archive.Record(ctx, rec); err != nil {
		telemetry.CountHistoryFailure()
		log.Warn("archive session failed", slog.String("ref", s.Ref), slog.Any("err", err))
	}
}

// latest fetches the active session. Store failures and a missing session both
// yield nil: the transition is dropped.
func (c *Controller) latest(ctx context.Context, log *slog.Logger, kind Kind) *sessions.Session {
	s, err := c.store.GetLatest(ctx)
	if err != nil {
		telemetry.SpanError(ctx, err)
		log.Warn("fetch session failed; dropping transition", slog.Any("err", err))
		return nil
	}
	if s == nil {
		telemetry.CountMissingSession(kind.String())
		log.Debug("no active session; dropping transition")
		return nil
	}
	return s
}

// displayName picks the best known name for m, falling back to the directory
// and then to names.Placeholder.
func (c *Controller) displayName(ctx context.Context, m, fallback Member) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	if fallback.ID == m.ID && fallback.DisplayName != "" {
		return fallback.DisplayName
	}
	if n, ok := c.names.DisplayName(ctx, m.ID); ok && n != "" {
		return n
	}
	return names.Placeholder
}

// remember records every name carried by tr so members can still be named
// after they leave.
func (c *Controller) remember(ctx context.Context, tr Transition) {
	c.names.Remember(ctx, tr.Member.ID, tr.Member.DisplayName)
	for _, s := range []*Snapshot{tr.Previous, tr.Next} {
		if s == nil {
			continue
		}
		for _, m := range s.Members {
			c.names.Remember(ctx, m.ID, m.DisplayName)
		}
	}
}
