package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/study-bridge/config"
	"github.com/onnwee/study-bridge/presence"
)

type captureSink struct{ got []presence.Transition }

func (c *captureSink) Submit(tr presence.Transition) bool {
	c.got = append(c.got, tr)
	return true
}

func kinds(trs []presence.Transition, watched string) []presence.Kind {
	out := make([]presence.Kind, 0, len(trs))
	for _, tr := range trs {
		out = append(out, presence.Classify(tr, watched))
	}
	return out
}

func TestNewValidatesCredentials(t *testing.T) {
	_, err := New("", "bot", "tok")
	assert.Error(t, err)

	s, err := New("#StudyRoom", "StudyBot", "abc")
	require.NoError(t, err)
	assert.Equal(t, "studyroom", s.ChannelID())
	assert.Equal(t, "oauth:abc", s.oauth)

	s, err = New("studyroom", "studybot", "oauth:abc")
	require.NoError(t, err)
	assert.Equal(t, "oauth:abc", s.oauth)
}

func TestJoinPartLifecycle(t *testing.T) {
	sink := &captureSink{}
	s := newSource("studyroom", "studybot", sink)

	s.handleJoin("studyroom", "alice")
	s.handleJoin("studyroom", "Bob")
	s.handlePart("studyroom", "alice")
	s.handlePart("studyroom", "bob")

	require.Len(t, sink.got, 4)
	assert.Equal(t,
		[]presence.Kind{presence.KindStart, presence.KindUpdate, presence.KindUpdate, presence.KindFinish},
		kinds(sink.got, s.ChannelID()))
	assert.Equal(t, []string{"alice", "bob"}, sink.got[1].Next.IDs())
	assert.Equal(t, []string{"bob"}, sink.got[2].Previous.IDs())
	assert.Equal(t, 0, sink.got[3].Previous.Size())
}

func TestDuplicatesAndStrangersAreIgnored(t *testing.T) {
	sink := &captureSink{}
	s := newSource("studyroom", "studybot", sink)

	s.handleJoin("studyroom", "studybot")
	s.handleJoin("otherroom", "alice")
	s.handleJoin("studyroom", "alice")
	s.handleJoin("studyroom", "ALICE")
	s.handlePart("studyroom", "carol")
	s.handlePart("otherroom", "alice")

	require.Len(t, sink.got, 1)
	assert.Equal(t, "alice", sink.got[0].Member.ID)
}

func TestNamesSeedsRosterSilently(t *testing.T) {
	sink := &captureSink{}
	s := newSource("studyroom", "studybot", sink)

	s.handleNames("studyroom", []string{"studybot", "alice", "bob", "alice"})
	assert.Empty(t, sink.got)

	s.handleJoin("studyroom", "carol")
	require.Len(t, sink.got, 1)
	assert.Equal(t, []string{"alice", "bob", "carol"}, sink.got[0].Next.IDs())
	assert.Equal(t, presence.KindUpdate, presence.Classify(sink.got[0], s.ChannelID()))

	s.handleNames("otherroom", []string{"zed"})
	s.handlePart("studyroom", "zed")
	assert.Len(t, sink.got, 1)
}

func TestChannelIDIsTheWatchedID(t *testing.T) {
	for _, channel := range []string{"#StudyRoom", "studyroom", "STUDYROOM"} {
		s, err := New(channel, "studybot", "oauth:abc")
		require.NoError(t, err)
		cfg := &config.Config{EventSource: config.SourceTwitch, TwitchChannel: channel}
		assert.Equal(t, cfg.WatchedChannelID(), s.ChannelID(), "channel %q", channel)

		sink := &captureSink{}
		s.sink = sink
		s.handleJoin(channel, "alice")
		require.Len(t, sink.got, 1)
		assert.Equal(t, presence.KindStart, presence.Classify(sink.got[0], s.ChannelID()))
	}
}
