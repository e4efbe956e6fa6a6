package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("RequiresSecret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("UPLOAD_DIR", t.TempDir())
		t.Setenv("HTTP_PORT", "")
		t.Setenv("STORE_DRIVER", "")
		t.Setenv("CORS_ORIGINS", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, cfg.StoreDriver)
		assert.Equal(t, 5001, cfg.Port)
		assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
		assert.Equal(t, 7*24*60*60, int(cfg.TokenTTL().Seconds()))
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("UPLOAD_DIR", t.TempDir())
		t.Setenv("STORE_DRIVER", "Mongo")
		t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
		t.Setenv("PUBLIC_BASE_URL", "https://chat.example/")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, DriverMongo, cfg.StoreDriver)
		assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
		assert.Equal(t, "https://chat.example", cfg.PublicBaseURL)
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("UPLOAD_DIR", t.TempDir())
		t.Setenv("STORE_DRIVER", "oracle")
		_, err := Load()
		assert.Error(t, err)
	})
}
