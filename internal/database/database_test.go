package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/model"
)

// ========== Dialector 测试 ==========

func TestDialector(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{driver: "postgres", want: "postgres"},
		{driver: "mysql", want: "mysql"},
		{driver: "sqlite", want: "sqlite"},
		{driver: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(&config.DatabaseConfig{Driver: tt.driver, Path: "x.db"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

// ========== New 测试 ==========

func TestNew_SQLite(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "convlog.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 1,
		MaxLifetime:  60,
	}}

	db, err := New(cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite", db.Dialect)
	assert.NoError(t, db.Ping(context.Background()))

	for _, m := range []interface{}{&model.Conversation{}, &model.ConversationArchive{}, &model.Setting{}} {
		assert.True(t, db.Migrator().HasTable(m))
	}
}
