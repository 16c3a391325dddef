package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onnwee/study-bridge/db"
)

// HistoryDSNEnv names the Postgres DSN used by database-backed tests.
const HistoryDSNEnv = "TEST_PG_DSN"

// OpenHistoryDB connects to the Postgres named by TEST_PG_DSN, applies the
// history schema and empties session_history. Tests are skipped when the
// variable is unset. The connection is closed when the test ends.
func OpenHistoryDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv(HistoryDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping postgres-backed history test", HistoryDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.Connect(ctx, dsn)
	require.NoError(t, err, "connect history database")
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Logf("close history database: %v", err)
		}
	})

	require.NoError(t, db.Migrate(ctx, conn), "apply history schema")
	_, err = conn.ExecContext(ctx, `DELETE FROM session_history`)
	require.NoError(t, err, "reset session_history")
	return conn
}
