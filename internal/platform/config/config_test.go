package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"LOG_LEVEL", "LOG_FORMAT", "HTTP_ADDR", "OUTPUT_DIR", "FILE_PREFIX", "ROSTER_FILE",
	"POLL_INTERVAL", "AUTOMATIC_INTERVAL", "CONNECTION_COOLDOWN", "CHUNK_IDLE_TIMEOUT",
	"MAX_DURATION", "PROXY", "FFMPEG_PATH", "KEEP_RAW", "DELIVERY", "SECRETS_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestFromEnv(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, "json", cfg.LogFormat)
				assert.Equal(t, ":8080", cfg.HTTPAddr)
				assert.Equal(t, "recordings", cfg.OutputDir)
				assert.Equal(t, "TK", cfg.FilePrefix)
				assert.Equal(t, "users.txt", cfg.RosterFile)
				assert.Equal(t, 30*time.Second, cfg.PollInterval)
				assert.Equal(t, 5*time.Minute, cfg.AutomaticInterval)
				assert.Equal(t, time.Minute, cfg.ConnectionCooldown)
				assert.Equal(t, 30*time.Second, cfg.ChunkIdleTimeout)
				assert.Zero(t, cfg.MaxDuration)
				assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
				assert.False(t, cfg.KeepRaw)
				assert.Empty(t, cfg.Delivery)
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"OUTPUT_DIR":         "/srv/lives",
				"AUTOMATIC_INTERVAL": "2m",
				"MAX_DURATION":       "1h",
				"DELIVERY":           "telegram",
				"KEEP_RAW":           "true",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/srv/lives", cfg.OutputDir)
				assert.Equal(t, 2*time.Minute, cfg.AutomaticInterval)
				assert.Equal(t, time.Hour, cfg.MaxDuration)
				assert.Equal(t, DeliveryTelegram, cfg.Delivery)
				assert.True(t, cfg.KeepRaw)
			},
		},
		{
			name:    "unknown delivery",
			env:     map[string]string{"DELIVERY": "ftp"},
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			env:     map[string]string{"POLL_INTERVAL": "0s"},
			wantErr: true,
		},
		{
			name:    "zero connection cooldown",
			env:     map[string]string{"CONNECTION_COOLDOWN": "0s"},
			wantErr: true,
		},
		{
			name:    "negative max duration",
			env:     map[string]string{"MAX_DURATION": "-5s"},
			wantErr: true,
		},
		{
			name:    "malformed duration",
			env:     map[string]string{"CHUNK_IDLE_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := FromEnv()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestLoadSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	content := `
[tiktok.cookies]
sessionid_ss = "abc"
tt-target-idc = "useast2a"

[telegram]
bot_token = "file-token"
chat_id = "42"

[s3]
bucket = "lives"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Run("file values", func(t *testing.T) {
		s, err := LoadSecrets(path)
		require.NoError(t, err)
		assert.Equal(t, "abc", s.TikTok.Cookies["sessionid_ss"])
		assert.Equal(t, "useast2a", s.TikTok.Cookies["tt-target-idc"])
		assert.Equal(t, "file-token", s.Telegram.BotToken)
		assert.Equal(t, "42", s.Telegram.ChatID)
		assert.Equal(t, "lives", s.S3.Bucket)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
		s, err := LoadSecrets(path)
		require.NoError(t, err)
		assert.Equal(t, "env-token", s.Telegram.BotToken)
		assert.Equal(t, "42", s.Telegram.ChatID)
	})

	t.Run("missing file", func(t *testing.T) {
		s, err := LoadSecrets(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		assert.Empty(t, s.TikTok.Cookies)
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(bad, []byte("[telegram\nbot_token ="), 0o600))
		_, err := LoadSecrets(bad)
		require.Error(t, err)
	})
}
