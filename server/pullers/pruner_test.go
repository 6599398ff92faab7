package pullers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// In-memory RetentionStore used in place of the database.
type fakeRetentionStore struct {
	reportsBefore time.Time
	eventsBefore  time.Time
	reports       int
	events        int
}

func (fs *fakeRetentionStore) DeleteReportsBefore(before time.Time) (int, error) {
	fs.reportsBefore = before
	return fs.reports, nil
}

func (fs *fakeRetentionStore) DeleteEventsBefore(before time.Time) (int, error) {
	fs.eventsBefore = before
	return fs.events, nil
}

func TestPrune(t *testing.T) {
	store := &fakeRetentionStore{reports: 3, events: 7}
	pruner := NewRetentionPruner(store, 30*24*time.Hour)
	defer pruner.Shutdown()

	require.NoError(t, pruner.prune())

	// Both tables are swept with the same cutoff, roughly age ago.
	require.Equal(t, store.reportsBefore, store.eventsBefore)
	require.WithinDuration(t, time.Now().UTC().Add(-30*24*time.Hour), store.reportsBefore, time.Minute)
}
