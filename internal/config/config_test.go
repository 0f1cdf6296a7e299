package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadFrom(envMap(nil))
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPListenAddr)
	require.Equal(t, StorageMemory, cfg.StorageDriver)
	require.Equal(t, "eu", cfg.MailgunRegion)
	require.Equal(t, "v20.0", cfg.WhatsAppAPIVersion)
	require.Equal(t, 2*time.Second, cfg.OutboxBackoff)
	require.Equal(t, time.UTC, cfg.Location)
	require.True(t, cfg.SurfaceEnabled(SurfaceForms))
	require.True(t, cfg.SurfaceEnabled(SurfaceMessaging))
	require.False(t, cfg.MailConfigured())
	require.False(t, cfg.WhatsAppConfigured())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := loadFrom(envMap(map[string]string{
		"PORT":                     "9090",
		"APP_SURFACES":             "Forms",
		"STORAGE_DRIVER":           "SQLite",
		"MAILGUN_API_KEY":          "key-1",
		"MAILGUN_DOMAIN":           "mg.example.com",
		"WHATSAPP_PHONE_NUMBER_ID": "123",
		"WHATSAPP_ACCESS_TOKEN":    "tok",
		"OUTBOX_BACKOFF":           "250ms",
		"TIMEZONE":                 "Africa/Johannesburg",
	}))
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPListenAddr)
	require.Equal(t, StorageSQLite, cfg.StorageDriver)
	require.True(t, cfg.SurfaceEnabled(SurfaceForms))
	require.False(t, cfg.SurfaceEnabled(SurfaceMessaging))
	require.True(t, cfg.MailConfigured())
	require.True(t, cfg.WhatsAppConfigured())
	require.Equal(t, 250*time.Millisecond, cfg.OutboxBackoff)
	require.Equal(t, "Africa/Johannesburg", cfg.Location.String())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad int", env: map[string]string{"REDIS_DB": "x"}, want: "REDIS_DB"},
		{name: "bad bool", env: map[string]string{"SEED_DEMO_DATA": "maybe"}, want: "SEED_DEMO_DATA"},
		{name: "postgres without url", env: map[string]string{"STORAGE_DRIVER": "postgres"}, want: "DATABASE_URL"},
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "mongo"}, want: "STORAGE_DRIVER"},
		{name: "unknown surface", env: map[string]string{"APP_SURFACES": "forms,tracker"}, want: "APP_SURFACES"},
		{name: "region", env: map[string]string{"MAILGUN_REGION": "ap"}, want: "MAILGUN_REGION"},
		{name: "hours", env: map[string]string{"BUSINESS_HOURS_START": "18"}, want: "business hours"},
		{name: "auth without admin", env: map[string]string{"REQUIRE_AUTH": "true"}, want: "ADMIN_USERNAME"},
		{name: "timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}, want: "TIMEZONE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadFrom(envMap(tc.env))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
