package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/study-bridge/testutil"
)

func TestEncodeKey(t *testing.T) {
	assert.Equal(t, "c2VjcmV0", EncodeKey("secret"))
}

func TestClient_Lifecycle(t *testing.T) {
	store := testutil.NewMockStoreServer(t)
	created := time.Date(2024, 2, 5, 1, 2, 3, 0, time.UTC)
	store.Now = func() time.Time { return created }
	c := New(store.URL, "secret", 5*time.Second)
	ctx := context.Background()

	s, err := c.GetLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, s, "empty store should report no session")

	ref, err := c.Create(ctx, CreateParams{Ref: "1700.0001", JoinedMemberIDs: []string{"A"}})
	require.NoError(t, err)
	assert.Equal(t, "1700.0001", ref)

	s, err = c.GetLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "1700.0001", s.Ref)
	assert.True(t, created.Equal(s.CreatedAt))
	assert.Equal(t, []string{"A"}, s.JoinedMemberIDs)

	s, err = c.Update(ctx, ref, UpdateParams{JoinedMemberIDs: []string{"A", "B"}})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, []string{"A", "B"}, s.JoinedMemberIDs)

	require.NoError(t, c.Delete(ctx, ref))
	assert.Nil(t, store.Session())

	reqs := store.Requests()
	require.Len(t, reqs, 5)
	wantRoutes := []struct{ method, path string }{
		{http.MethodGet, "/sessions/latest"},
		{http.MethodPost, "/sessions"},
		{http.MethodGet, "/sessions/latest"},
		{http.MethodPut, "/sessions/1700.0001"},
		{http.MethodDelete, "/sessions/1700.0001"},
	}
	for i, want := range wantRoutes {
		assert.Equal(t, want.method, reqs[i].Method, "request %d method", i)
		assert.Equal(t, want.path, reqs[i].Path, "request %d path", i)
		assert.Equal(t, "Bearer c2VjcmV0", reqs[i].Auth, "request %d auth", i)
	}
	assert.Equal(t, "1700.0001", reqs[1].Body["slack_timestamp"])
	assert.Equal(t, []any{"A"}, reqs[1].Body["joined_member_ids"])
	assert.Equal(t, []any{"A", "B"}, reqs[3].Body["joined_member_ids"])
}

func TestClient_GetLatestAbsentBodies(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "empty body", status: http.StatusOK},
		{name: "json null", status: http.StatusOK, body: "null"},
		{name: "empty object", status: http.StatusOK, body: "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s, err := New(srv.URL, "k", time.Second).GetLatest(context.Background())
			assert.NoError(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestClient_Failures(t *testing.T) {
	t.Run("server error is a status error", func(t *testing.T) {
		store := testutil.NewMockStoreServer(t)
		store.FailWith = http.StatusInternalServerError
		c := New(store.URL, "k", time.Second)

		s, err := c.GetLatest(context.Background())
		assert.Nil(t, s)
		require.Error(t, err)
		assert.Equal(t, ErrorKindStatus, Classify(err))

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusInternalServerError, se.Status)
		assert.Equal(t, "get_latest", se.Op)

		_, err = c.Create(context.Background(), CreateParams{Ref: "r", JoinedMemberIDs: []string{"A"}})
		assert.Equal(t, ErrorKindStatus, Classify(err))
	})

	t.Run("closed server is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := New(url, "k", time.Second).Delete(context.Background(), "r")
		require.Error(t, err)
		assert.Equal(t, ErrorKindTransport, Classify(err))
	})

	t.Run("malformed body is a decode error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"slack_timestamp": 12`))
		}))
		defer srv.Close()

		_, err := New(srv.URL, "k", time.Second).GetLatest(context.Background())
		require.Error(t, err)
		assert.Equal(t, ErrorKindDecode, Classify(err))
	})

	t.Run("wrong type is a decode error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"slack_timestamp": 12})
		}))
		defer srv.Close()

		_, err := New(srv.URL, "k", time.Second).GetLatest(context.Background())
		require.Error(t, err)
		assert.Equal(t, ErrorKindDecode, Classify(err))
	})

	t.Run("empty ref is rejected locally", func(t *testing.T) {
		c := New("http://127.0.0.1:1", "k", time.Second)
		_, err := c.Create(context.Background(), CreateParams{})
		assert.Error(t, err)
		_, err = c.Update(context.Background(), "", UpdateParams{})
		assert.Error(t, err)
		assert.Error(t, c.Delete(context.Background(), ""))
	})
}

func TestClient_CreateFallsBackToSentRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ref, err := New(srv.URL, "k", time.Second).Create(context.Background(), CreateParams{Ref: "abc", JoinedMemberIDs: []string{"A"}})
	require.NoError(t, err)
	assert.Equal(t, "abc", ref)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorKindNone, Classify(nil))
	assert.Equal(t, ErrorKindNotFound, Classify(fmt.Errorf("get latest: %w", &StatusError{Op: "get_latest", Status: http.StatusNotFound})))
	assert.Equal(t, ErrorKindNotFound, Classify(&StatusError{Status: http.StatusNotFound}))
	assert.Equal(t, ErrorKindStatus, Classify(&StatusError{Status: http.StatusBadGateway}))
	assert.Equal(t, ErrorKindTransport, Classify(errors.New("dial tcp: connection refused")))
	assert.Equal(t, "transport", ErrorKindTransport.String())
}
