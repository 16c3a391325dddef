package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// StoreRequest is one request seen by MockStoreServer.
type StoreRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// StoredSession mirrors the JSON record kept by MockStoreServer.
type StoredSession struct {
	Ref             string    `json:"slack_timestamp"`
	CreatedAt       time.Time `json:"created_at"`
	JoinedMemberIDs []string  `json:"joined_member_ids"`
}

// MockStoreServer is an in-memory stand-in for the session store HTTP API.
// It keeps at most one session, like the real store.
type MockStoreServer struct {
	*httptest.Server

	mu       sync.Mutex
	session  *StoredSession
	requests []StoreRequest
	// FailWith forces every response to the given status when non-zero.
	FailWith int
	// Now stamps created_at on new sessions.
	Now func() time.Time
}

// NewMockStoreServer creates a new mock session store server.
func NewMockStoreServer(t *testing.T) *MockStoreServer {
	t.Helper()
	m := &MockStoreServer{Now: func() time.Time { return time.Now().UTC() }}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

// Seed replaces the stored session.
func (m *MockStoreServer) Seed(s *StoredSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
}

// Session returns a copy of the stored session, or nil.
func (m *MockStoreServer) Session() *StoredSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	cp := *m.session
	cp.JoinedMemberIDs = append([]string(nil), m.session.JoinedMemberIDs...)
	return &cp
}

// Requests returns the requests received so far.
func (m *MockStoreServer) Requests() []StoreRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StoreRequest(nil), m.requests...)
}

func (m *MockStoreServer) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := StoreRequest{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	if r.Body != nil {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			rec.Body = body
		}
	}
	m.requests = append(m.requests, rec)

	if m.FailWith != 0 {
		w.WriteHeader(m.FailWith)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/sessions/latest":
		if m.session == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(m.session) //nolint:errcheck // test mock response
	case r.Method == http.MethodPost && r.URL.Path == "/sessions":
		ref, _ := rec.Body["slack_timestamp"].(string)
		m.session = &StoredSession{Ref: ref, CreatedAt: m.Now(), JoinedMemberIDs: toStrings(rec.Body["joined_member_ids"])}
		_ = json.NewEncoder(w).Encode(m.session) //nolint:errcheck // test mock response
	case strings.HasPrefix(r.URL.Path, "/sessions/"):
		ref := strings.TrimPrefix(r.URL.Path, "/sessions/")
		if m.session == nil || m.session.Ref != ref {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodPut:
			m.session.JoinedMemberIDs = toStrings(rec.Body["joined_member_ids"])
			_ = json.NewEncoder(w).Encode(m.session) //nolint:errcheck // test mock response
		case http.MethodDelete:
			m.session = nil
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func toStrings(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// MockSlackServer answers chat.postMessage and chat.update like the Slack Web API.
type MockSlackServer struct {
	*httptest.Server

	mu    sync.Mutex
	calls []SlackCall
	// NextTS is returned by chat.postMessage.
	NextTS string
	// FailUpdate makes chat.update answer ok=false.
	FailUpdate bool
}

// SlackCall is one Web API call seen by MockSlackServer.
type SlackCall struct {
	Method  string
	Channel string
	TS      string
	Text    string
	Blocks  string
}

// NewMockSlackServer creates a new mock Slack Web API server. Point the
// slack client at URL()+"/".
func NewMockSlackServer(t *testing.T) *MockSlackServer {
	t.Helper()
	m := &MockSlackServer{NextTS: "1700000000.000100"}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

// Calls returns the Web API calls received so far.
func (m *MockSlackServer) Calls() []SlackCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SlackCall(nil), m.calls...)
}

func (m *MockSlackServer) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = r.ParseForm() //nolint:errcheck // test mock
	call := SlackCall{
		Method:  strings.TrimPrefix(r.URL.Path, "/"),
		Channel: r.FormValue("channel"),
		TS:      r.FormValue("ts"),
		Text:    r.FormValue("text"),
		Blocks:  r.FormValue("blocks"),
	}
	m.calls = append(m.calls, call)

	w.Header().Set("Content-Type", "application/json")
	switch call.Method {
	case "chat.postMessage":
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": call.Channel, "ts": m.NextTS}) //nolint:errcheck // test mock response
	case "chat.update":
		if m.FailUpdate {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "message_not_found"}) //nolint:errcheck // test mock response
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": call.Channel, "ts": call.TS, "text": call.Text}) //nolint:errcheck // test mock response
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "unknown_method"}) //nolint:errcheck // test mock response
	}
}
