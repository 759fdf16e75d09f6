package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-recorder/internal/platform/config"
	"live-recorder/internal/platform/logger"
)

func TestNewS3_Validation(t *testing.T) {
	ctx := context.Background()
	_, err := NewS3(ctx, config.S3Secrets{AccessKeyID: "k", SecretAccessKey: "s"}, nil)
	assert.Error(t, err)
	_, err = NewS3(ctx, config.S3Secrets{Bucket: "b"}, nil)
	assert.Error(t, err)
}

func TestS3_Send(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotBody string
		gotType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up, err := NewS3(context.Background(), config.S3Secrets{
		Endpoint:        srv.URL,
		Bucket:          "lives",
		Region:          "us-east-1",
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		Prefix:          "tiktok",
	}, logger.Discard())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "TK_alice_2026.03.07_21-04-09.mp4")
	require.NoError(t, os.WriteFile(path, []byte("mp4 bytes"), 0o644))

	require.NoError(t, up.Send(context.Background(), path))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/lives/tiktok/TK_alice_2026.03.07_21-04-09.mp4", gotPath)
	assert.Equal(t, "mp4 bytes", gotBody)
	assert.Equal(t, "video/mp4", gotType)
	assert.NoError(t, up.Notify(context.Background(), "live ended"))
}

func TestS3_SendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
	}))
	defer srv.Close()

	up, err := NewS3(context.Background(), config.S3Secrets{
		Endpoint: srv.URL, Bucket: "lives", AccessKeyID: "AKID", SecretAccessKey: "SECRET",
	}, logger.Discard())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rec.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	err = up.Send(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestNew_Kinds(t *testing.T) {
	secrets := &config.Secrets{
		Telegram: config.TelegramSecrets{BotToken: "t", ChatID: "1"},
		S3:       config.S3Secrets{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"},
	}
	ctx := context.Background()

	up, err := New(ctx, "", secrets, nil)
	require.NoError(t, err)
	assert.Nil(t, up)

	up, err = New(ctx, "telegram", secrets, nil)
	require.NoError(t, err)
	assert.IsType(t, &Telegram{}, up)

	up, err = New(ctx, "S3", secrets, nil)
	require.NoError(t, err)
	assert.IsType(t, &S3{}, up)

	_, err = New(ctx, "ftp", secrets, nil)
	assert.Error(t, err)
}
