package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/testutil"
)

// ========== SettingRepository 测试 ==========

func TestSettingRepository_GetSet(t *testing.T) {
	repo := NewSettingRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, model.SettingConversationLogEnabled)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, model.SettingConversationLogEnabled, "true"))
	value, ok, err := repo.Get(ctx, model.SettingConversationLogEnabled)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", value)

	// 覆盖写入
	require.NoError(t, repo.Set(ctx, model.SettingConversationLogEnabled, "false"))
	value, _, err = repo.Get(ctx, model.SettingConversationLogEnabled)
	require.NoError(t, err)
	assert.Equal(t, "false", value)
}
