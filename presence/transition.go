package presence

// Member is a participant of a voice channel.
type Member struct {
	ID          string
	DisplayName string
}

// Snapshot is a channel and its membership after the transition was applied.
type Snapshot struct {
	ChannelID string
	Members   []Member
}

// Size returns the number of members in s. A nil snapshot is empty.
func (s *Snapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Members)
}

// IDs returns the member ids of s in order.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		out = append(out, m.ID)
	}
	return out
}

// Transition is one presence change of Member. Previous is nil when the member
// was not in any channel before, Next is nil when they left voice entirely.
type Transition struct {
	Member   Member
	Previous *Snapshot
	Next     *Snapshot
}

// Kind is the lifecycle outcome of a transition.
type Kind int

const (
	KindNoOp Kind = iota
	KindStart
	KindUpdate
	KindFinish
)

func (k Kind) String() string {
	switch k {
	case KindNoOp:
		return "noop"
	case KindStart:
		return "start"
	case KindUpdate:
		return "update"
	case KindFinish:
		return "finish"
	default:
		return "unknown"
	}
}

func channelID(s *Snapshot) string {
	if s == nil {
		return ""
	}
	return s.ChannelID
}

// Classify decides what tr means for the session of the watched channel.
// Start takes precedence over Update, and Update over Finish.
func Classify(tr Transition, watched string) Kind {
	if channelID(tr.Previous) == channelID(tr.Next) {
		return KindNoOp
	}
	nextWatched := tr.Next != nil && tr.Next.ChannelID == watched
	prevWatched := tr.Previous != nil && tr.Previous.ChannelID == watched

	switch {
	case nextWatched && tr.Next.Size() == 1:
		return KindStart
	case (nextWatched && tr.Next.Size() > 1) || (prevWatched && tr.Previous.Size() > 0):
		return KindUpdate
	case prevWatched && tr.Previous.Size() == 0:
		return KindFinish
	default:
		return KindNoOp
	}
}

// WatchedSide returns the side of tr that is the watched channel, preferring
// Next. It returns nil when neither side is watched.
func WatchedSide(tr Transition, watched string) *Snapshot {
	if tr.Next != nil && tr.Next.ChannelID == watched {
		return tr.Next
	}
	if tr.Previous != nil && tr.Previous.ChannelID == watched {
		return tr.Previous
	}
	return nil
}
