package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const watched = "voice-study"

func snap(channel string, ids ...string) *Snapshot {
	s := &Snapshot{ChannelID: channel}
	for _, id := range ids {
		s.Members = append(s.Members, Member{ID: id, DisplayName: "name-" + id})
	}
	return s
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		tr   Transition
		want Kind
	}{
		{"no channels at all", Transition{}, KindNoOp},
		{"same watched channel (mute toggle)", Transition{Previous: snap(watched, "A"), Next: snap(watched, "A")}, KindNoOp},
		{"same other channel", Transition{Previous: snap("other", "A", "B"), Next: snap("other", "A", "B")}, KindNoOp},
		{"first member joins", Transition{Next: snap(watched, "A")}, KindStart},
		{"first member arrives from other channel", Transition{Previous: snap("other"), Next: snap(watched, "A")}, KindStart},
		{"second member joins", Transition{Next: snap(watched, "A", "B")}, KindUpdate},
		{"member moves in from other channel", Transition{Previous: snap("other", "C"), Next: snap(watched, "A", "B")}, KindUpdate},
		{"member leaves, others remain", Transition{Previous: snap(watched, "B")}, KindUpdate},
		{"member moves out, others remain", Transition{Previous: snap(watched, "B"), Next: snap("other", "A")}, KindUpdate},
		{"last member leaves", Transition{Previous: snap(watched)}, KindFinish},
		{"last member moves to other channel", Transition{Previous: snap(watched), Next: snap("other", "A")}, KindFinish},
		{"join other channel", Transition{Next: snap("other", "A")}, KindNoOp},
		{"leave other channel", Transition{Previous: snap("other")}, KindNoOp},
		{"move between other channels", Transition{Previous: snap("other", "B"), Next: snap("third", "A")}, KindNoOp},
		{"move between other channels, empty source", Transition{Previous: snap("other"), Next: snap("third", "A", "B", "C")}, KindNoOp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.tr, watched))
		})
	}
}

func TestWatchedSide(t *testing.T) {
	in := Transition{Previous: snap("other", "C"), Next: snap(watched, "A", "B")}
	assert.Same(t, in.Next, WatchedSide(in, watched))

	out := Transition{Previous: snap(watched, "B"), Next: snap("other", "A")}
	assert.Same(t, out.Previous, WatchedSide(out, watched))

	assert.Nil(t, WatchedSide(Transition{Next: snap("other", "A")}, watched))
}

func TestSnapshotHelpers(t *testing.T) {
	var nilSnap *Snapshot
	assert.Equal(t, 0, nilSnap.Size())
	assert.Nil(t, nilSnap.IDs())
	assert.Equal(t, []string{"A", "B"}, snap(watched, "A", "B").IDs())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "noop", KindNoOp.String())
	assert.Equal(t, "start", KindStart.String())
	assert.Equal(t, "update", KindUpdate.String())
	assert.Equal(t, "finish", KindFinish.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
