package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	cfg := New()
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "terraform.tfstate", cfg.Backend.StateKey)
	assert.Equal(t, "terraform", cfg.Terraform.BinPath)
	assert.Equal(t, "destroy", cfg.Pipeline.ConfirmWord)
	assert.True(t, cfg.Backend.RunLockEnabled)
	assert.False(t, cfg.Notify.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STACKPILOT_AWS_REGION", "eu-west-1")
	t.Setenv("STACKPILOT_BACKEND_BUCKET", "my-tf-state")
	t.Setenv("STACKPILOT_BACKEND_LOCK_TABLE", "my-tf-locks")
	t.Setenv("STACKPILOT_RUN_LOCK_ENABLED", "false")
	t.Setenv("STACKPILOT_NOTIFY_ENABLED", "true")
	t.Setenv("STACKPILOT_NOTIFY_SENDER", "ci@example.com")
	t.Setenv("STACKPILOT_NOTIFY_RECIPIENTS", "ops@example.com, dev@example.com")
	t.Setenv("STACKPILOT_CONFIRM_WORD", "tear-it-down")

	cfg := New()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "my-tf-state", cfg.Backend.Bucket)
	assert.Equal(t, "my-tf-locks", cfg.Backend.LockTable)
	assert.False(t, cfg.Backend.RunLockEnabled)
	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, []string{"ops@example.com", "dev@example.com"}, cfg.Notify.Recipients)
	assert.Equal(t, "tear-it-down", cfg.Pipeline.ConfirmWord)
}

func TestLoadFromEnv_InvalidBool(t *testing.T) {
	t.Setenv("STACKPILOT_NOTIFY_ENABLED", "maybe")

	cfg := New()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STACKPILOT_NOTIFY_ENABLED")
}

func TestLoadFromEnv_InvalidTTL(t *testing.T) {
	t.Setenv("STACKPILOT_RUN_LOCK_TTL_SECONDS", "soon")

	cfg := New()
	require.Error(t, cfg.LoadFromEnv())
}

//nolint:funlen // table covers every required field
func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := New()
		cfg.Backend.Bucket = "bucket"
		cfg.Backend.LockTable = "table"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(_ *Config) {},
		},
		{
			name:    "missing bucket",
			mutate:  func(c *Config) { c.Backend.Bucket = "" },
			wantErr: "bucket",
		},
		{
			name:    "missing lock table",
			mutate:  func(c *Config) { c.Backend.LockTable = "" },
			wantErr: "lock table",
		},
		{
			name:    "missing region",
			mutate:  func(c *Config) { c.AWS.Region = "" },
			wantErr: "region",
		},
		{
			name:    "empty confirm word",
			mutate:  func(c *Config) { c.Pipeline.ConfirmWord = "" },
			wantErr: "confirmation word",
		},
		{
			name: "notify enabled without sender",
			mutate: func(c *Config) {
				c.Notify.Enabled = true
				c.Notify.Recipients = []string{"ops@example.com"}
			},
			wantErr: "sender",
		},
		{
			name: "notify enabled without recipients",
			mutate: func(c *Config) {
				c.Notify.Enabled = true
				c.Notify.Sender = "ci@example.com"
			},
			wantErr: "recipient",
		},
		{
			name: "run lock enabled without table",
			mutate: func(c *Config) {
				c.Backend.RunLockTable = ""
			},
			wantErr: "run lock table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNotifyRegion_Fallback(t *testing.T) {
	t.Parallel()

	cfg := New()
	cfg.AWS.Region = "eu-central-1"
	assert.Equal(t, "eu-central-1", cfg.NotifyRegion())

	cfg.Notify.Region = "us-west-2"
	assert.Equal(t, "us-west-2", cfg.NotifyRegion())
}
