package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("SAE_JWT_SECRET", "handoff-secret")
	t.Setenv("SAE_LTI_KEY", "lti-secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "3005", cfg.AppPort)
	require.Equal(t, ":3005", cfg.HTTPAddress())
	require.Equal(t, time.Hour, cfg.HandoffTTL)
	require.Equal(t, 10*time.Minute, cfg.LTIStateTTL)
	require.Equal(t, 2*time.Hour, cfg.LTISessionTTL)
	require.True(t, cfg.LTISecureCookies)
	require.Equal(t, "https://sae2025.netlify.app", cfg.FrontendURL)
	require.Equal(t, "https://ecampusuca.moodlecloud.com", cfg.Platform.URL)
	require.Equal(t, "d8Af3rpbiUdOneX", cfg.Platform.ClientID)
	require.Equal(t, 4, cfg.Grades.LookupConcurrency)
}

func TestLoadReadsLegacyVariables(t *testing.T) {
	t.Setenv("SAE_JWT_SECRET", "handoff-secret")
	t.Setenv("LTI_KEY", "legacy-key")
	t.Setenv("PORT", "4000")
	t.Setenv("DATABASE_URL", "postgres://localhost/sae")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "legacy-key", cfg.LTIKey)
	require.Equal(t, ":4000", cfg.HTTPAddress())
	require.Equal(t, "postgres://localhost/sae", cfg.DatabaseURL)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("SAE_JWT_SECRET", "")
	t.Setenv("SAE_LTI_KEY", "lti-secret")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("SAE_JWT_SECRET", "handoff-secret")
	t.Setenv("SAE_LTI_KEY", "lti-secret")
	t.Setenv("SAE_HANDOFF_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresPrivateKeyInProduction(t *testing.T) {
	t.Setenv("SAE_JWT_SECRET", "handoff-secret")
	t.Setenv("SAE_LTI_KEY", "lti-secret")
	t.Setenv("SAE_APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
}
