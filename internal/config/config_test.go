package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRequiredListsEveryMissingKey(t *testing.T) {
	env := map[string]string{
		"SQUARE_ACCESS_TOKEN": "token",
		"AUTH_JWT_SECRET":     "  ",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	err := CheckRequired(lookup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingEnv))

	var missing *MissingEnvError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"SQUARE_SIGNATURE_KEY", "SQUARE_LOCATION_ID", "AUTH_JWT_SECRET"}, missing.Keys)
}

func TestCheckRequiredPasses(t *testing.T) {
	lookup := func(key string) (string, bool) { return "set", true }
	assert.NoError(t, CheckRequired(lookup))
}

func TestLoadPolicyHolderFallsBackToDefaults(t *testing.T) {
	holder, err := LoadPolicyHolder(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultReconciliationPolicy(), holder.Get())
}

func TestLoadPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("reconciliation:\n  strategy: Payment_Status_Sync\n  ack_policy: always\n  lock_ttl: 45s\n  lock_wait: 2s\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reconciliation.yml"), content, 0o600))
	t.Chdir(dir)

	holder, err := LoadPolicyHolder(nil)
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, StrategyPaymentStatusSync, policy.Strategy)
	assert.Equal(t, AckPolicyAlways, policy.AckPolicy)
	assert.Equal(t, 45*time.Second, policy.LockTTL)
	assert.Equal(t, 2*time.Second, policy.LockWait)
}

func TestLoadPolicyHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("reconciliation:\n  strategy: merge_both\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reconciliation.yml"), content, 0o600))
	t.Chdir(dir)

	_, err := LoadPolicyHolder(nil)
	assert.Error(t, err)
}

func TestValidatePolicy(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *ReconciliationPolicy)
		wantErr bool
	}{
		{name: "defaults", mutate: func(p *ReconciliationPolicy) {}},
		{name: "payment status sync", mutate: func(p *ReconciliationPolicy) { p.Strategy = StrategyPaymentStatusSync }},
		{name: "always ack", mutate: func(p *ReconciliationPolicy) { p.AckPolicy = AckPolicyAlways }},
		{name: "unknown strategy", mutate: func(p *ReconciliationPolicy) { p.Strategy = "merge_both" }, wantErr: true},
		{name: "unknown ack", mutate: func(p *ReconciliationPolicy) { p.AckPolicy = "sometimes" }, wantErr: true},
		{name: "zero ttl", mutate: func(p *ReconciliationPolicy) { p.LockTTL = 0 }, wantErr: true},
		{name: "negative wait", mutate: func(p *ReconciliationPolicy) { p.LockWait = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultReconciliationPolicy()
			tt.mutate(&policy)
			err := ValidatePolicy(policy)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNilPolicyHolderReturnsDefaults(t *testing.T) {
	var holder *PolicyHolder
	assert.Equal(t, DefaultReconciliationPolicy(), holder.Get())
}
