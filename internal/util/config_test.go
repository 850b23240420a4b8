package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTokenConfig() *TokenConfig {
	return &TokenConfig{
		JwtSecretKey: []byte("secret"),
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
	}
}

func validSessionConfig() *SessionConfig {
	return &SessionConfig{
		FamilyTTL:            25 * time.Hour,
		SessionTTL:           26 * time.Hour,
		SessionIDBytes:       32,
		BindingSecretBytes:   32,
		ReuseWindow:          10 * time.Second,
		UsedTokenHistory:     20,
		AuditRetentionDays:   30,
		InvalidatedRetention: 24 * time.Hour,
	}
}

func TestValidateConfigs_OK(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateConfigs(validTokenConfig(), validSessionConfig()))
}

func TestValidateConfigs_Violations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(tc *TokenConfig, sc *SessionConfig)
		wantMsg string
	}{
		{
			name:    "access TTL not below refresh TTL",
			mutate:  func(tc *TokenConfig, _ *SessionConfig) { tc.AccessTTL = tc.RefreshTTL },
			wantMsg: "access TTL",
		},
		{
			name:    "refresh TTL not below family TTL",
			mutate:  func(tc *TokenConfig, sc *SessionConfig) { tc.RefreshTTL = sc.FamilyTTL },
			wantMsg: "refresh TTL",
		},
		{
			name:    "family TTL exceeds session TTL",
			mutate:  func(_ *TokenConfig, sc *SessionConfig) { sc.FamilyTTL = sc.SessionTTL + time.Hour },
			wantMsg: "family TTL",
		},
		{
			name:    "session id too short",
			mutate:  func(_ *TokenConfig, sc *SessionConfig) { sc.SessionIDBytes = 8 },
			wantMsg: "session id length",
		},
		{
			name:    "binding secret too short",
			mutate:  func(_ *TokenConfig, sc *SessionConfig) { sc.BindingSecretBytes = 15 },
			wantMsg: "binding secret length",
		},
		{
			name:    "empty jwt secret",
			mutate:  func(tc *TokenConfig, _ *SessionConfig) { tc.JwtSecretKey = nil },
			wantMsg: "JWT secret",
		},
		{
			name:    "zero reuse window",
			mutate:  func(_ *TokenConfig, sc *SessionConfig) { sc.ReuseWindow = 0 },
			wantMsg: "reuse window",
		},
		{
			name:    "empty token history",
			mutate:  func(_ *TokenConfig, sc *SessionConfig) { sc.UsedTokenHistory = 0 },
			wantMsg: "token history",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tc, sc := validTokenConfig(), validSessionConfig()
			tt.mutate(tc, sc)

			err := ValidateConfigs(tc, sc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
