package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/residents/internal/database"
)

func TestCutoffDate(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	ctx := context.Background()

	cutoff, err := svc.CutoffDate(ctx)
	require.NoError(t, err)
	assert.Nil(t, cutoff)

	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, svc.SetCutoffDate(ctx, testOfficer, &date), ErrForbidden)

	require.NoError(t, svc.SetCutoffDate(ctx, testAdmin, &date))
	assert.Equal(t, "2024-02-01", store.settings[database.SettingCutoffDate])

	cutoff, err = svc.CutoffDate(ctx)
	require.NoError(t, err)
	require.NotNil(t, cutoff)
	assert.True(t, cutoff.Equal(date))

	require.NoError(t, svc.SetCutoffDate(ctx, testAdmin, nil))
	cutoff, err = svc.CutoffDate(ctx)
	require.NoError(t, err)
	assert.Nil(t, cutoff)
}

func TestCutoffDate_MalformedIsUnset(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	store.settings[database.SettingCutoffDate] = "01/02/2024"

	cutoff, err := svc.CutoffDate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cutoff)
}

func TestParseCutoff(t *testing.T) {
	c, err := ParseCutoff("")
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = ParseCutoff("2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", c.Format(CutoffLayout))

	_, err = ParseCutoff("31-03-2024")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSummary_UsesCutoffAndScope(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	seedResidents(store, 3, "Rampur")
	seedResidents(store, 2, "Kothapalli")
	ctx := context.Background()

	// R01 edited after import, R02 edited before the cutoff
	r := store.residents["R01"]
	r.UpdatedAt = r.CreatedAt.Add(48 * time.Hour)
	store.residents["R01"] = r
	r = store.residents["R02"]
	r.UpdatedAt = r.CreatedAt.Add(time.Hour)
	store.residents["R02"] = r

	sum, err := svc.Summary(ctx, testAdmin, database.ResidentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.Total)
	assert.Equal(t, int64(2), sum.Updated)
	assert.Nil(t, sum.Cutoff)

	cutoff := store.now().Add(24 * time.Hour)
	require.NoError(t, svc.SetCutoffDate(ctx, testAdmin, &cutoff))

	sum, err = svc.Summary(ctx, testOfficer, database.ResidentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Total)
	assert.Equal(t, int64(1), sum.Updated, "edits before the cutoff are locked")
	assert.Equal(t, int64(2), sum.Pending)
	require.NotNil(t, sum.Cutoff)
}

func TestBreakdown(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	seedResidents(store, 3, "Rampur")
	seedResidents(store, 2, "Kothapalli")
	ctx := context.Background()

	b, err := svc.Breakdown(ctx, testAdmin, "secretariat", database.ResidentFilter{})
	require.NoError(t, err)
	assert.Equal(t, "secretariat", b.By)
	require.Len(t, b.Rows, 2)
	assert.Equal(t, "Kothapalli", b.Rows[0].Key)
	assert.Equal(t, int64(2), b.Rows[0].Total)

	b, err = svc.Breakdown(ctx, testOfficer, "secretariat", database.ResidentFilter{})
	require.NoError(t, err)
	require.Len(t, b.Rows, 1)
	assert.Equal(t, "Rampur", b.Rows[0].Key)

	_, err = svc.Breakdown(ctx, testAdmin, "gender", database.ResidentFilter{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRunMaintenance(t *testing.T) {
	svc, store, _ := newTestService(t, Options{ImportTimeout: 10 * time.Minute})
	now := store.now()
	ctx := context.Background()

	stale := database.ImportLog{ID: uuid.New(), Status: database.ImportRunning, StartedAt: now.Add(-time.Hour)}
	running := database.ImportLog{ID: uuid.New(), Status: database.ImportRunning, StartedAt: now.Add(-time.Minute)}
	old := database.ImportLog{ID: uuid.New(), Status: database.ImportCompleted, StartedAt: now.Add(-100 * 24 * time.Hour)}
	recent := database.ImportLog{ID: uuid.New(), Status: database.ImportCompleted, StartedAt: now.Add(-24 * time.Hour)}
	for _, l := range []database.ImportLog{stale, running, old, recent} {
		require.NoError(t, store.CreateImportLog(ctx, l))
	}

	res := svc.RunMaintenance(ctx, MaintenanceConfig{Retention: 90 * 24 * time.Hour})
	assert.Equal(t, int64(1), res.Failed)
	assert.Equal(t, int64(1), res.Purged)

	assert.Equal(t, now.Add(-20*time.Minute), store.staleCut)
	assert.Equal(t, now.Add(-90*24*time.Hour), store.purgeCut)

	assert.Equal(t, database.ImportFailed, store.importLogs[stale.ID.String()].Status)
	assert.Equal(t, database.ImportRunning, store.importLogs[running.ID.String()].Status)
	_, kept := store.importLogs[old.ID.String()]
	assert.False(t, kept)
	_, kept = store.importLogs[recent.ID.String()]
	assert.True(t, kept)
}

func TestStartMaintenance_StopsWithContext(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartMaintenance(ctx, MaintenanceConfig{Interval: 10 * time.Millisecond})
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return !store.purgeCut.IsZero()
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("maintenance did not stop")
	}
}
