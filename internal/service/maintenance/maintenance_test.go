package maintenance

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/repository"
	"github.com/ashwinyue/convlog/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, []*model.Conversation) {
	db := testutil.NewTestDB(t)
	convs := testutil.SeedScenario(t, db)
	svc, err := NewService(repository.NewConversationRepository(db), repository.NewArchiveRepository(db), &config.MaintenanceConfig{
		ArchiveDays: 5,
		CleanupDays: 8,
		BatchSize:   3,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Unix(testutil.Day(11), 0) }
	t.Cleanup(svc.Close)
	return svc, db, convs
}

// ========== Codec 测试 ==========

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)
	defer codec.Close()

	conv := testutil.NewConversation("alice", "gpt-4", testutil.Day(1))
	conv.ID = 42
	conv.RequestMessages = `[{"role":"user","content":"` + strings.Repeat("hello ", 200) + `"}]`

	archive := codec.ToArchive(conv, time.Unix(testutil.Day(20), 0))
	assert.Equal(t, int64(42), archive.OriginalID)
	assert.Equal(t, testutil.Day(20), archive.ArchivedAt)
	assert.Less(t, len(archive.RequestMessagesZst), len(conv.RequestMessages))
	assert.Greater(t, archive.CompressionRatio, 1.0)

	restored, err := codec.FromArchive(archive)
	require.NoError(t, err)
	assert.Equal(t, conv.RequestMessages, restored.RequestMessages)
	assert.Equal(t, conv.ResponseContent, restored.ResponseContent)

	empty, err := codec.Decompress(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = codec.Decompress([]byte("not zstd"))
	assert.Error(t, err)
}

// ========== Archive 测试 ==========

func TestService_Archive(t *testing.T) {
	svc, db, convs := newTestService(t)
	ctx := context.Background()

	archived, err := svc.Archive(ctx, testutil.Day(4), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 6, archived)
	assert.EqualValues(t, 14, testutil.CountConversations(t, db))

	stats, err := svc.TableStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 14, stats.ConversationCount)
	assert.EqualValues(t, 6, stats.ArchiveCount)
	assert.Equal(t, testutil.Day(4), stats.OldestCreatedAt)
	assert.Equal(t, testutil.Day(10), stats.NewestCreatedAt)

	// 归档内容可还原
	list, err := svc.ListArchived(ctx, model.ConversationFilter{ModelName: "gpt-4"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.Total)
	require.Len(t, list.Items, 3)
	assert.Equal(t, testutil.Day(3), list.Items[0].CreatedAt)

	got, err := svc.GetArchived(ctx, list.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, convs[0].RequestMessages, got.RequestMessages)
	assert.Equal(t, convs[0].ResponseContent, got.ResponseContent)
	assert.Equal(t, testutil.Day(11), got.ArchivedAt)

	_, err = svc.GetArchived(ctx, 9999)
	assert.True(t, errors.Is(err, ErrArchiveNotFound))

	// 再次归档没有新数据
	archived, err = svc.Archive(ctx, testutil.Day(4), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, archived)
}

func TestService_ArchiveCancelled(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	archived, err := svc.Archive(ctx, testutil.Day(4), 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, archived)
	assert.EqualValues(t, 20, testutil.CountConversations(t, db))
}

// ========== CleanupArchives 测试 ==========

func TestService_CleanupArchives(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// 第 6 天之前的 10 条进入归档
	archived, err := svc.Archive(ctx, svc.Cutoff(svc.Config().ArchiveDays), 0)
	require.NoError(t, err)
	require.EqualValues(t, 10, archived)

	deleted, err := svc.CleanupArchives(ctx, testutil.Day(3), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 4, deleted)

	stats, err := svc.TableStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, stats.ArchiveCount)
	assert.Equal(t, 5, stats.ArchiveDays)
	assert.Equal(t, 8, stats.CleanupDays)
}

// ========== Optimize 测试 ==========

func TestService_Optimize(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.NoError(t, svc.Optimize(context.Background()))
}

// ========== 后台任务测试 ==========

func TestService_RunInBackground(t *testing.T) {
	svc, _, _ := newTestService(t)
	release := make(chan struct{})
	var runs atomic.Int32

	task := func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}

	require.NoError(t, svc.RunInBackground("archive", task))
	assert.True(t, svc.IsRunning("archive"))
	assert.ErrorIs(t, svc.RunInBackground("archive", task), ErrTaskRunning)

	// 不同任务互不影响
	require.NoError(t, svc.RunInBackground("optimize", func(ctx context.Context) error { return errors.New("boom") }))

	close(release)
	assert.Eventually(t, func() bool {
		return !svc.IsRunning("archive") && !svc.IsRunning("optimize")
	}, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())
}

// ========== Scheduler 测试 ==========

type staticGate bool

func (g staticGate) IsEnabled() bool { return bool(g) }

func TestScheduler_RunOnceRespectsGate(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name    string
		gate    staticGate
		running bool
		want    int32
	}{
		{name: "gate disabled", gate: false, want: 0},
		{name: "gate enabled", gate: true, want: 1},
		{name: "manual run in progress", gate: true, running: true, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runs atomic.Int32
			s := NewScheduler(svc, tt.gate)
			j := job{name: "custom", run: func(ctx context.Context) error {
				runs.Add(1)
				return nil
			}}

			if tt.running {
				svc.mu.Lock()
				svc.running["custom"] = true
				svc.mu.Unlock()
				defer func() {
					svc.mu.Lock()
					delete(svc.running, "custom")
					svc.mu.Unlock()
				}()
			}

			s.runOnce(context.Background(), j)
			assert.Equal(t, tt.want, runs.Load())
		})
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	svc, db, _ := newTestService(t)
	s := NewScheduler(svc, staticGate(true))
	for i := range s.jobs {
		s.jobs[i].delay = time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// archiveDays=5，相对第 11 天归档第 6 天之前的记录
	assert.Eventually(t, func() bool {
		return testutil.CountConversations(t, db) == 10
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
