package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prismrag/ragjobs/pkg/archive"
	"github.com/prismrag/ragjobs/pkg/core"
	"github.com/prismrag/ragjobs/pkg/registry"
	"github.com/prismrag/ragjobs/pkg/stage"
)

func TestEvery_FixedInterval(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sched := Every(5 * time.Minute)
	assert.Equal(t, from.Add(5*time.Minute), sched.Next(from))

	// Non-positive intervals fall back to a sane default.
	sched = Every(0)
	assert.Equal(t, from.Add(time.Minute), sched.Next(from))
}

func TestCron_FiveFieldExpression(t *testing.T) {
	sched, err := Cron("30 2 * * *")
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	assert.Equal(t, 2, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.True(t, next.After(from))
}

func TestCron_InvalidExpression(t *testing.T) {
	_, err := Cron("not a cron line")
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := stage.DefaultConfig()
	cfg.StepInterval = 0
	reg := registry.New(registry.WithStageConfig(cfg))
	defer reg.Close()

	sweeper := New(reg, WithSchedule(Every(5*time.Millisecond)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	// Let at least one sweep tick pass before cancelling.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancellation")
	}
}

func TestRun_PrunesArchive(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := archive.NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))

	old := core.Snapshot{
		ID: "old", Kind: core.KindIngestion,
		Status:    core.StatusCompleted,
		UpdatedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, store.Save(context.Background(), old))

	cfg := stage.DefaultConfig()
	cfg.StepInterval = 0
	reg := registry.New(registry.WithStageConfig(cfg))
	defer reg.Close()

	sweeper := New(reg,
		WithSchedule(Every(5*time.Millisecond)),
		WithArchive(store),
		WithPruneAfter(24*time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), "old")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}
