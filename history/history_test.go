package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/study-bridge/testutil"
)

func TestRecordAndRecent(t *testing.T) {
	database := testutil.OpenHistoryDB(t)
	s := NewStore(database)
	ctx := context.Background()

	base := time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC)
	first := Record{Ref: "1.1", StartedAt: base, EndedAt: base.Add(time.Hour), Duration: time.Hour, MemberIDs: []string{"A"}, MemberNames: []string{"alice"}}
	second := Record{Ref: "2.2", StartedAt: base.Add(2 * time.Hour), EndedAt: base.Add(3 * time.Hour), Duration: time.Hour}
	require.NoError(t, s.Record(ctx, first))
	require.NoError(t, s.Record(ctx, second))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2.2", got[0].Ref, "newest first")
	assert.Empty(t, got[0].MemberIDs)
	assert.Equal(t, "1.1", got[1].Ref)
	assert.Equal(t, []string{"A"}, got[1].MemberIDs)
	assert.Equal(t, []string{"alice"}, got[1].MemberNames)
	assert.Equal(t, time.Hour, got[1].Duration)
	assert.True(t, base.Equal(got[1].StartedAt))

	// Same ref again overwrites instead of duplicating.
	first.MemberNames = []string{"alice-renamed"}
	require.NoError(t, s.Record(ctx, first))
	got, err = s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"alice-renamed"}, got[1].MemberNames)

	assert.NoError(t, s.Ping(ctx))
}

func TestDurationSeconds(t *testing.T) {
	assert.Equal(t, int64(90), Record{Duration: 90*time.Second + 400*time.Millisecond}.DurationSeconds())
}
