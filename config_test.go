package perizia_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periziapp/perizia"
)

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("PERIZIA_JWT_SECRET", "")
	_, err := perizia.LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PERIZIA_JWT_SECRET", testSecret)
	t.Setenv("PERIZIA_SESSION_TTL", "")

	cfg, err := perizia.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "perizia", cfg.JWTIssuer)
	assert.Equal(t, perizia.DefaultSessionTTL, cfg.SessionTTL)
}

func TestLoadConfigSessionTTL(t *testing.T) {
	t.Setenv("PERIZIA_JWT_SECRET", testSecret)

	t.Setenv("PERIZIA_SESSION_TTL", "12h")
	cfg, err := perizia.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)

	t.Setenv("PERIZIA_SESSION_TTL", "one week")
	_, err = perizia.LoadConfig()
	require.Error(t, err)
}
