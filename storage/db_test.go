package storage

import (
	"fmt"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-oracle/model"
)

func mustDB(t *testing.T) Storage {
	t.Helper()
	db, err := NewWithPath(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCounter(t *testing.T) {
	db := mustDB(t)

	n, err := db.GetCounter([]byte("c"), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	n, err = db.IncCounter([]byte("c"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	n, err = db.IncCounter([]byte("c"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestDeleteManyKeys(t *testing.T) {
	db := mustDB(t)
	require.NoError(t, db.BatchWrite(map[string][]byte{"p:1": []byte("a"), "p:2": []byte("b"), "q:1": []byte("c")}))

	require.NoError(t, db.Delete([]byte("p:1"), []byte("p:2"), []byte("missing")))

	keys, err := db.GetKeyHasPrefix([]byte("p:"))
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = db.GetKey([]byte("p:1"))
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)

	v, err := db.GetKey([]byte("q:1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), v)
}

func TestVacuumWithNothingToReclaim(t *testing.T) {
	db := mustDB(t)
	require.NoError(t, db.BatchWrite(map[string][]byte{"k": []byte("v")}))
	require.NoError(t, db.Delete([]byte("k")))

	assert.NoError(t, db.Vacuum())
}

func TestSaveAndLoadReports(t *testing.T) {
	db := mustDB(t)

	_, err := LatestReport(db, "1")
	assert.ErrorIs(t, err, ErrReportNotFound)

	var last string
	for i := 0; i < 3; i++ {
		id := ulid.Make().String()
		last = id
		require.NoError(t, SaveReport(db, &model.CycleReport{
			CycleID:     id,
			ChainID:     "1",
			BlockNumber: uint64(100 + i),
			StartedAt:   time.Now().UTC(),
			Result:      model.CycleCompleted,
			Counts:      map[string]int{"api_call.pending": i},
		}))
		// ulids generated in the same millisecond are not guaranteed to sort
		time.Sleep(2 * time.Millisecond)
	}

	latest, err := LatestReport(db, "1")
	require.NoError(t, err)
	assert.Equal(t, last, latest.CycleID)
	assert.Equal(t, uint64(102), latest.BlockNumber)
	assert.Equal(t, 2, latest.Counts["api_call.pending"])

	count, err := CycleCount(db, "1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	removed, err := PruneReports(db, "1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	latest, err = LatestReport(db, "1")
	require.NoError(t, err, fmt.Sprintf("latest %s must survive pruning", last))
	assert.Equal(t, last, latest.CycleID)
}
