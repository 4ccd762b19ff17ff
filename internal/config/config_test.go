package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/masterclass/internal/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "QUIZ_QUESTION_COUNT", "TOKEN_STORE", "NOTIFY_DRIVER", "EXPOSE_LOGIN_TOKEN", "LOG_LEVEL", "PUBLIC_URL"} {
		t.Setenv(k, "")
	}
	c := config.FromEnv()

	require.Equal(t, config.ModeOffline, c.Mode)
	require.Equal(t, ":8080", c.HTTPAddr)
	require.Equal(t, "sqlite", c.DBDriver)
	require.Equal(t, 10, c.QuizQuestionCount)
	require.Equal(t, 30, c.PreQuestionSeconds)
	require.Equal(t, 20, c.PostQuestionSeconds)
	require.Equal(t, 24*time.Hour, c.StudentTokenTTL)
	require.Equal(t, "sql", c.TokenStore)
	require.Equal(t, "log", c.NotifyDriver)
	require.True(t, c.ExposeLoginToken, "offline exposes the login token")
	require.Equal(t, slog.LevelInfo, c.LogLevel)
	require.Equal(t, []string{"http://localhost:3000"}, c.CORSOrigins())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("PUBLIC_URL", "https://example.org/")
	t.Setenv("CORS_ORIGINS_ONLINE", "https://a.example, ,https://b.example")
	t.Setenv("QUIZ_QUESTION_COUNT", "-3")
	t.Setenv("STUDENT_TOKEN_TTL", "2h")
	t.Setenv("EVENT_TIMEZONE", "Africa/Libreville")
	t.Setenv("EXPOSE_LOGIN_TOKEN", "")
	t.Setenv("LOG_LEVEL", "debug")
	c := config.FromEnv()

	require.Equal(t, "https://example.org", c.PublicURL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins())
	require.Equal(t, 10, c.QuizQuestionCount, "non-positive falls back")
	require.Equal(t, 2*time.Hour, c.StudentTokenTTL)
	require.Equal(t, "Africa/Libreville", c.Timezone.String())
	require.False(t, c.ExposeLoginToken)
	require.Equal(t, slog.LevelDebug, c.LogLevel)
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOTIFY_DRIVER=whapi\nWHAPI_API_TOKEN=tok\n"), 0o600))
	t.Setenv("NOTIFY_DRIVER", "")
	t.Setenv("WHAPI_API_TOKEN", "")
	require.NoError(t, os.Unsetenv("NOTIFY_DRIVER"))
	require.NoError(t, os.Unsetenv("WHAPI_API_TOKEN"))

	c := config.Load(path)
	require.Equal(t, "whapi", c.NotifyDriver)
	require.Equal(t, "tok", c.WhapiToken)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	config.NewLogger(&buf, "json", slog.LevelInfo).Info("hello", "k", 1)
	require.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	config.NewLogger(&buf, "text", slog.LevelWarn).Info("hidden")
	require.Empty(t, buf.String())
}
