package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigReadsEnvironment(t *testing.T) {
	t.Setenv("SWIPESTATS_ENV", Test)
	t.Setenv("SWIPESTATS_APP_PORT", "4123")
	t.Setenv("SWIPESTATS_ORIGINAL_FILES_RETAINED", "7")
	Reset()
	t.Cleanup(Reset)

	cfg := GetConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, Test, cfg.Environment)
	assert.Equal(t, "4123", cfg.GetPort())
	assert.Equal(t, 7, cfg.OriginalFilesRetained)
	assert.True(t, cfg.IsTest())
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
	assert.Contains(t, cfg.DatabaseDSN(), "swipestats-test.db")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{Environment: Production, DatabaseType: SQLiteDatabase, OriginalFilesRetained: 1},
		},
		{
			name:    "unknown environment",
			cfg:     Config{Environment: "staging", DatabaseType: SQLiteDatabase, OriginalFilesRetained: 1},
			wantErr: "invalid environment",
		},
		{
			name:    "unknown database",
			cfg:     Config{Environment: Test, DatabaseType: "postgres", OriginalFilesRetained: 1},
			wantErr: "invalid database type",
		},
		{
			name:    "no original files retained",
			cfg:     Config{Environment: Test, DatabaseType: SQLiteDatabase},
			wantErr: "originalfilesretained",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMaxUploadBytes(t *testing.T) {
	c := &Config{MaxUploadSizeInMb: 2}
	assert.Equal(t, 2*1024*1024, c.MaxUploadBytes())
}
