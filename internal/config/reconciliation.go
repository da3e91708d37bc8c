package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	StrategyOrderStateSync    = "order_state_sync"
	StrategyPaymentStatusSync = "payment_status_sync"

	AckPolicyStrict = "strict"
	AckPolicyAlways = "always"
)

// ReconciliationPolicy is the hot-reloadable part of webhook handling.
type ReconciliationPolicy struct {
	Strategy  string
	AckPolicy string
	LockTTL   time.Duration
	LockWait  time.Duration
}

func DefaultReconciliationPolicy() ReconciliationPolicy {
	return ReconciliationPolicy{
		Strategy:  StrategyOrderStateSync,
		AckPolicy: AckPolicyStrict,
		LockTTL:   30 * time.Second,
		LockWait:  10 * time.Second,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds ReconciliationPolicy
}

// NewPolicyHolder returns a holder pinned to policy. Used by tests and the CLI.
func NewPolicyHolder(policy ReconciliationPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

// LoadPolicyHolder reads reconciliation.yml and keeps it in sync with the file.
func LoadPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.reconciliation")

	v := viper.New()
	v.SetConfigName("reconciliation")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/railbook")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RAILBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReconciliationPolicy()
	v.SetDefault("reconciliation.strategy", defaults.Strategy)
	v.SetDefault("reconciliation.ack_policy", defaults.AckPolicy)
	v.SetDefault("reconciliation.lock_ttl", defaults.LockTTL)
	v.SetDefault("reconciliation.lock_wait", defaults.LockWait)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewPolicyHolder(policy)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			log.Warn("reconciliation policy reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reconciliation policy reloaded",
			zap.String("file", e.Name),
			zap.String("strategy", updated.Strategy),
			zap.String("ack_policy", updated.AckPolicy),
		)
	})

	return holder, nil
}

func (h *PolicyHolder) Get() ReconciliationPolicy {
	if h == nil {
		return DefaultReconciliationPolicy()
	}
	return h.current.Load().(ReconciliationPolicy)
}

func decodePolicy(v *viper.Viper) (ReconciliationPolicy, error) {
	// Keys are read one by one so RAILBOOK_RECONCILIATION_* env overrides apply.
	policy := ReconciliationPolicy{
		Strategy:  strings.ToLower(strings.TrimSpace(v.GetString("reconciliation.strategy"))),
		AckPolicy: strings.ToLower(strings.TrimSpace(v.GetString("reconciliation.ack_policy"))),
		LockTTL:   v.GetDuration("reconciliation.lock_ttl"),
		LockWait:  v.GetDuration("reconciliation.lock_wait"),
	}
	if err := ValidatePolicy(policy); err != nil {
		return ReconciliationPolicy{}, err
	}
	return policy, nil
}

func ValidatePolicy(policy ReconciliationPolicy) error {
	switch policy.Strategy {
	case StrategyOrderStateSync, StrategyPaymentStatusSync:
	default:
		return fmt.Errorf("reconciliation.strategy %q is not supported", policy.Strategy)
	}
	switch policy.AckPolicy {
	case AckPolicyStrict, AckPolicyAlways:
	default:
		return fmt.Errorf("reconciliation.ack_policy %q is not supported", policy.AckPolicy)
	}
	if policy.LockTTL <= 0 {
		return errors.New("reconciliation.lock_ttl must be positive")
	}
	if policy.LockWait < 0 {
		return errors.New("reconciliation.lock_wait cannot be negative")
	}
	return nil
}
