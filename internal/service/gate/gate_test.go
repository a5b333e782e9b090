package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/repository"
	"github.com/ashwinyue/convlog/internal/testutil"
)

// mockSettingStore 模拟设置存储
type mockSettingStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
}

func newMockSettingStore() *mockSettingStore {
	return &mockSettingStore{values: make(map[string]string)}
}

func (m *mockSettingStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockSettingStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingStore) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// ========== 默认值测试 ==========

func TestGate_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.ConversationConfig
		want    bool
		refresh time.Duration
	}{
		{name: "nil config", cfg: nil, want: false, refresh: 5 * time.Second},
		{name: "default disabled", cfg: &config.ConversationConfig{GateRefreshInterval: 2}, want: false, refresh: 2 * time.Second},
		{name: "default enabled", cfg: &config.ConversationConfig{LogEnabled: true}, want: true, refresh: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(newMockSettingStore(), nil, tt.cfg)
			require.NoError(t, g.Load(context.Background()))
			assert.Equal(t, tt.want, g.IsEnabled())
			assert.Equal(t, tt.refresh, g.RefreshInterval())
		})
	}
}

// ========== Load / SetEnabled 测试 ==========

func TestGate_LoadFromStore(t *testing.T) {
	store := newMockSettingStore()
	store.put(model.SettingConversationLogEnabled, "true")

	g := New(store, nil, nil)
	assert.False(t, g.IsEnabled())
	require.NoError(t, g.Load(context.Background()))
	assert.True(t, g.IsEnabled())

	// 非法值保持当前状态
	store.put(model.SettingConversationLogEnabled, "maybe")
	require.NoError(t, g.Load(context.Background()))
	assert.True(t, g.IsEnabled())
}

func TestGate_LoadError(t *testing.T) {
	store := newMockSettingStore()
	store.getErr = errors.New("db down")

	g := New(store, nil, &config.ConversationConfig{LogEnabled: true})
	assert.Error(t, g.Load(context.Background()))
	assert.True(t, g.IsEnabled())
}

func TestGate_SetEnabled(t *testing.T) {
	store := newMockSettingStore()
	g := New(store, nil, nil)
	ctx := context.Background()

	require.NoError(t, g.SetEnabled(ctx, true))
	assert.True(t, g.IsEnabled())
	v, ok, _ := store.Get(ctx, model.SettingConversationLogEnabled)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, g.SetEnabled(ctx, false))
	assert.False(t, g.IsEnabled())

	// 落库失败时本地状态不变
	store.setErr = errors.New("db down")
	assert.Error(t, g.SetEnabled(ctx, true))
	assert.False(t, g.IsEnabled())
}

func TestGate_PersistsAcrossInstances(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	first := New(repository.NewSettingRepository(db), nil, nil)
	require.NoError(t, first.SetEnabled(ctx, true))
	require.NoError(t, first.SetEnabled(ctx, true))

	second := New(repository.NewSettingRepository(db), nil, nil)
	require.NoError(t, second.Load(ctx))
	assert.True(t, second.IsEnabled())

	require.NoError(t, second.SetEnabled(ctx, false))
	require.NoError(t, first.Load(ctx))
	assert.False(t, first.IsEnabled())
}

// ========== 刷新与广播测试 ==========

func TestGate_StartRefreshes(t *testing.T) {
	store := newMockSettingStore()
	g := New(store, nil, nil)
	g.refresh = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Start(ctx) }()

	store.put(model.SettingConversationLogEnabled, "true")
	assert.Eventually(t, g.IsEnabled, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestGate_Apply(t *testing.T) {
	g := New(newMockSettingStore(), nil, nil)

	g.apply("true")
	assert.True(t, g.IsEnabled())
	g.apply("garbage")
	assert.True(t, g.IsEnabled())
	g.apply("false")
	assert.False(t, g.IsEnabled())
}
