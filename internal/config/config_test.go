package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEFAULT_TAT_HOURS", "")
	t.Setenv("ESCALATION_TRIGGER_SECRET", "")
	t.Setenv("ESCALATION_TRIGGER_SECRET_HASH", "")
	t.Setenv("ESCALATION_SCOPE", "")
	t.Setenv("ESCALATION_OWNER_POLICY", "")
	t.Setenv("MAIL_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 48, cfg.Escalation.DefaultTATHours)
	assert.Equal(t, 48*time.Hour, cfg.Escalation.TAT())
	assert.Equal(t, ScopeGlobal, cfg.Escalation.Scope)
	assert.Equal(t, OwnerPolicyFirst, cfg.Escalation.OwnerPolicy)
	assert.Equal(t, 10*time.Minute, cfg.Escalation.SweepInterval())
	assert.False(t, cfg.Escalation.TriggerConfigured())
	assert.False(t, cfg.Mail.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEFAULT_TAT_HOURS", "24")
	t.Setenv("ESCALATION_TRIGGER_SECRET", "s3cret")
	t.Setenv("ESCALATION_SCOPE", "Organisation")
	t.Setenv("ESCALATION_OWNER_POLICY", "unique")
	t.Setenv("ESCALATION_TICKET_TIMEOUT_SECONDS", "0")
	t.Setenv("MAIL_HOST", "smtp.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Escalation.TAT())
	assert.True(t, cfg.Escalation.TriggerConfigured())
	assert.Equal(t, ScopeOrganisation, cfg.Escalation.Scope)
	assert.Equal(t, OwnerPolicyUnique, cfg.Escalation.OwnerPolicy)
	assert.Zero(t, cfg.Escalation.TicketTimeout())
	assert.True(t, cfg.Mail.Enabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non numeric tat", "DEFAULT_TAT_HOURS", "two days"},
		{"zero tat", "DEFAULT_TAT_HOURS", "0"},
		{"negative tat", "DEFAULT_TAT_HOURS", "-4"},
		{"unknown scope", "ESCALATION_SCOPE", "room"},
		{"unknown policy", "ESCALATION_OWNER_POLICY", "random"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestTriggerConfiguredIgnoresWhitespace(t *testing.T) {
	e := EscalationConfig{TriggerSecret: "   "}
	assert.False(t, e.TriggerConfigured())
	e.TriggerSecretHash = "$2a$10$abc"
	assert.True(t, e.TriggerConfigured())
}
