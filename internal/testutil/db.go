package testutil

import (
	"testing"

	"github.com/postroom/postroom/util/cliutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestDB opens a fresh in-memory sqlite database which is closed when the
// test finishes. Schema migration is left to the caller.
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err != nil {
			t.Error(err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			t.Error(err)
		}
	})
	return db
}
