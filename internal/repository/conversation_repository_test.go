package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/testutil"
)

func newConversationRepo(t *testing.T) (*ConversationRepository, *gorm.DB) {
	db := testutil.NewTestDB(t)
	return NewConversationRepository(db), db
}

// ========== List 测试 ==========

func TestConversationRepository_ListOrdering(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()

	// 同一时间戳的两条记录按 id 倒序
	testutil.SeedConversations(t, db,
		testutil.NewConversation("alice", "gpt-4", testutil.Day(1)),
		testutil.NewConversation("alice", "gpt-4", testutil.Day(3)),
		testutil.NewConversation("alice", "gpt-4", testutil.Day(3)),
		testutil.NewConversation("alice", "gpt-4", testutil.Day(2)),
	)

	items, total, err := repo.List(ctx, &model.ConversationFilter{}, 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, items, 4)

	assert.Equal(t, testutil.Day(3), items[0].CreatedAt)
	assert.Equal(t, testutil.Day(3), items[1].CreatedAt)
	assert.Greater(t, items[0].ID, items[1].ID)
	assert.Equal(t, testutil.Day(2), items[2].CreatedAt)
	assert.Equal(t, testutil.Day(1), items[3].CreatedAt)
}

func TestConversationRepository_ListFilters(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()
	testutil.SeedScenario(t, db)

	tests := []struct {
		name   string
		filter model.ConversationFilter
		want   int64
	}{
		{name: "no filter", filter: model.ConversationFilter{}, want: 20},
		{name: "model only", filter: model.ConversationFilter{ModelName: "gpt-4"}, want: 10},
		{name: "model is exact", filter: model.ConversationFilter{ModelName: "gpt"}, want: 0},
		{name: "username", filter: model.ConversationFilter{Username: "bob"}, want: 10},
		{name: "user id", filter: model.ConversationFilter{UserID: len("alice")}, want: 10},
		{name: "start only", filter: model.ConversationFilter{StartTime: testutil.Day(9)}, want: 4},
		{name: "end only", filter: model.ConversationFilter{EndTime: testutil.Day(2)}, want: 4},
		{
			name:   "inclusive range",
			filter: model.ConversationFilter{ModelName: "gpt-4", StartTime: testutil.Day(3), EndTime: testutil.Day(7)},
			want:   5,
		},
		{
			name:   "inverted range",
			filter: model.ConversationFilter{StartTime: testutil.Day(7), EndTime: testutil.Day(3)},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := repo.List(ctx, &tt.filter, 0, 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, items, int(tt.want))
			for _, item := range items {
				assert.True(t, tt.filter.Matches(item), "record %d does not match filter", item.ID)
			}
		})
	}
}

func TestConversationRepository_ListPagination(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()
	testutil.SeedScenario(t, db)

	filter := &model.ConversationFilter{ModelName: "gpt-3.5"}
	seen := make(map[int64]bool)
	for offset := 0; offset < 10; offset += 3 {
		items, total, err := repo.List(ctx, filter, offset, 3)
		require.NoError(t, err)
		assert.EqualValues(t, 10, total, "total must not depend on paging")
		for _, item := range items {
			assert.False(t, seen[item.ID], "record %d returned twice", item.ID)
			seen[item.ID] = true
		}
	}
	assert.Len(t, seen, 10)

	// 超出最后一页
	items, total, err := repo.List(ctx, filter, 30, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

// ========== GetByID 测试 ==========

func TestConversationRepository_GetByID(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()

	conv := testutil.NewConversation("alice", "gpt-4", testutil.Day(1))
	conv.RequestMessages = `[{"role":"user","content":` // 损坏的 JSON 原样保存
	testutil.SeedConversations(t, db, conv)

	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.RequestMessages, got.RequestMessages)
	assert.Equal(t, conv.ResponseContent, got.ResponseContent)

	_, err = repo.GetByID(ctx, conv.ID+100)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

// ========== DeleteByIDs 测试 ==========

func TestConversationRepository_DeleteByIDs(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()
	convs := testutil.SeedScenario(t, db)

	ids := []int64{convs[0].ID, convs[1].ID, 99999}
	deleted, err := repo.DeleteByIDs(ctx, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	assert.EqualValues(t, 18, testutil.CountConversations(t, db))

	// 再次删除同一批 ID
	deleted, err = repo.DeleteByIDs(ctx, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 0, deleted)

	// 空集合
	deleted, err = repo.DeleteByIDs(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, deleted)
	assert.EqualValues(t, 18, testutil.CountConversations(t, db))
}

func TestConversationRepository_DeleteByIDsChunked(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()

	var convs []*model.Conversation
	for i := 0; i < deleteChunkSize+20; i++ {
		convs = append(convs, testutil.NewConversation("alice", "gpt-4", testutil.Day(1)+int64(i)))
	}
	testutil.SeedConversations(t, db, convs...)

	ids := make([]int64, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	deleted, err := repo.DeleteByIDs(ctx, ids)
	require.NoError(t, err)
	assert.EqualValues(t, len(convs), deleted)
	assert.EqualValues(t, 0, testutil.CountConversations(t, db))
}

func TestConversationRepository_DeleteByIDsRollsBack(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()

	var convs []*model.Conversation
	for i := 0; i < deleteChunkSize*2+5; i++ {
		convs = append(convs, testutil.NewConversation("alice", "gpt-4", testutil.Day(1)+int64(i)))
	}
	testutil.SeedConversations(t, db, convs...)

	// 第二批 DELETE 失败，第一批必须随事务回滚
	chunks := 0
	err := db.Callback().Delete().Before("gorm:delete").Register("test:fail_second_chunk", func(tx *gorm.DB) {
		chunks++
		if chunks == 2 {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)

	ids := make([]int64, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	deleted, err := repo.DeleteByIDs(ctx, ids)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.EqualValues(t, 0, deleted)
	assert.Equal(t, 2, chunks)
	assert.EqualValues(t, len(convs), testutil.CountConversations(t, db))
}

// ========== DeleteByFilter 测试 ==========

func TestConversationRepository_DeleteByFilterMatchesList(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()
	testutil.SeedScenario(t, db)

	filter := &model.ConversationFilter{ModelName: "gpt-4", StartTime: testutil.Day(3), EndTime: testutil.Day(7)}
	before, total, err := repo.List(ctx, filter, 0, 100)
	require.NoError(t, err)

	deleted, err := repo.DeleteByFilter(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, total, deleted)
	assert.EqualValues(t, 5, deleted)

	after, total, err := repo.List(ctx, filter, 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, after)

	for _, conv := range before {
		_, err := repo.GetByID(ctx, conv.ID)
		assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	}

	// gpt-3.5 和范围外的 gpt-4 保留
	rest, total, err := repo.List(ctx, &model.ConversationFilter{}, 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 15, total)
	for _, conv := range rest {
		assert.False(t, filter.Matches(conv))
	}
}

func TestConversationRepository_DeleteByFilterRequiresWhere(t *testing.T) {
	repo, db := newConversationRepo(t)
	testutil.SeedScenario(t, db)

	_, err := repo.DeleteByFilter(context.Background(), &model.ConversationFilter{})
	require.Error(t, err)
	assert.EqualValues(t, 20, testutil.CountConversations(t, db))
}

// ========== DeleteBefore / Stats / TimeRange 测试 ==========

func TestConversationRepository_DeleteBefore(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()
	testutil.SeedScenario(t, db)

	deleted, err := repo.DeleteBefore(ctx, testutil.Day(4), 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	deleted, err = repo.DeleteBefore(ctx, testutil.Day(4), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	deleted, err = repo.DeleteBefore(ctx, testutil.Day(4), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 0, deleted)
	assert.EqualValues(t, 14, testutil.CountConversations(t, db))
}

func TestConversationRepository_Stats(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()
	testutil.SeedScenario(t, db)

	stats, err := repo.Stats(ctx, &model.ConversationFilter{ModelName: "gpt-4"})
	require.NoError(t, err)
	assert.EqualValues(t, 10, stats.TotalCount)
	assert.EqualValues(t, 150, stats.TotalTokens)
	assert.EqualValues(t, 100, stats.TotalPromptTokens)
	assert.EqualValues(t, 50, stats.TotalCompletionTokens)

	stats, err = repo.Stats(ctx, &model.ConversationFilter{ModelName: "none"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.TotalCount)
	assert.EqualValues(t, 0, stats.TotalTokens)
}

func TestConversationRepository_TimeRange(t *testing.T) {
	repo, db := newConversationRepo(t)
	ctx := context.Background()

	oldest, newest, err := repo.TimeRange(ctx)
	require.NoError(t, err)
	assert.Zero(t, oldest)
	assert.Zero(t, newest)

	testutil.SeedScenario(t, db)
	oldest, newest, err = repo.TimeRange(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.Day(1), oldest)
	assert.Equal(t, testutil.Day(10), newest)
}
