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

// plainConverter 不压缩，直接保存字节
func plainConverter(conv *model.Conversation) (*model.ConversationArchive, error) {
	return &model.ConversationArchive{
		OriginalID:         conv.ID,
		UserID:             conv.UserID,
		Username:           conv.Username,
		ModelName:          conv.ModelName,
		RequestMessagesZst: []byte(conv.RequestMessages),
		CreatedAt:          conv.CreatedAt,
	}, nil
}

// ========== ArchiveRepository 测试 ==========

func TestArchiveRepository_ArchiveBefore(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewArchiveRepository(db)
	ctx := context.Background()
	testutil.SeedScenario(t, db)

	archived, err := repo.ArchiveBefore(ctx, testutil.Day(3), 3, plainConverter)
	require.NoError(t, err)
	assert.EqualValues(t, 3, archived)

	archived, err = repo.ArchiveBefore(ctx, testutil.Day(3), 3, plainConverter)
	require.NoError(t, err)
	assert.EqualValues(t, 1, archived)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
	assert.EqualValues(t, 16, testutil.CountConversations(t, db))

	items, total, err := repo.List(ctx, &model.ConversationFilter{Username: "alice"}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, testutil.Day(2), items[0].CreatedAt)

	got, err := repo.GetByID(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Contains(t, string(got.RequestMessagesZst), "hello from alice")

	_, err = repo.GetByID(ctx, 9999)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestArchiveRepository_ConverterErrorRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewArchiveRepository(db)
	testutil.SeedScenario(t, db)

	calls := 0
	failing := func(conv *model.Conversation) (*model.ConversationArchive, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("compress failed")
		}
		return plainConverter(conv)
	}

	_, err := repo.ArchiveBefore(context.Background(), testutil.Day(5), 10, failing)
	require.Error(t, err)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	assert.EqualValues(t, 20, testutil.CountConversations(t, db))
}

func TestArchiveRepository_DeleteBeforeAndOptimize(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewArchiveRepository(db)
	ctx := context.Background()
	testutil.SeedScenario(t, db)

	_, err := repo.ArchiveBefore(ctx, testutil.Day(11), 100, plainConverter)
	require.NoError(t, err)

	deleted, err := repo.DeleteBefore(ctx, testutil.Day(6), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 10, deleted)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, count)

	assert.NoError(t, repo.Optimize(ctx))
}
