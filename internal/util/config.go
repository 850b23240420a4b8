package util

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
	defaultFamilyTTL  = 32 * 24 * time.Hour
	defaultSessionTTL = 32 * 24 * time.Hour

	defaultSessionIDBytes     = 32
	defaultBindingSecretBytes = 32
	minSecretBytes            = 16

	defaultReuseWindow      = 10 * time.Second
	defaultUsedTokenHistory = 20

	defaultLockTTL           = 30 * time.Second
	defaultLockWait          = 5 * time.Second
	defaultLockRetryInterval = 50 * time.Millisecond

	defaultAuditRetentionDays   = 30
	defaultInvalidatedRetention = 24 * time.Hour
	defaultBcryptCost           = 12

	JWTLeeWay = 5 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

type TokenConfig struct {
	JwtSecretKey []byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

func NewTokenConfig() *TokenConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	return &TokenConfig{
		JwtSecretKey: []byte(secret),
		AccessTTL:    parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:   parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
}

// SessionConfig holds everything governing session records, token families
// and rotation behavior.
type SessionConfig struct {
	FamilyTTL  time.Duration
	SessionTTL time.Duration

	SessionIDBytes     int
	BindingSecretBytes int

	ReuseWindow      time.Duration
	UsedTokenHistory int

	AuditRetentionDays   int
	InvalidatedRetention time.Duration

	// KeyPrefix namespaces every store key for multi-tenant deployments.
	KeyPrefix string
}

func NewSessionConfig() *SessionConfig {
	return &SessionConfig{
		FamilyTTL:            parseDurationOrDefault("TOKEN_FAMILY_TTL", defaultFamilyTTL),
		SessionTTL:           parseDurationOrDefault("SESSION_TTL", defaultSessionTTL),
		SessionIDBytes:       parseIntOrDefault("SESSION_ID_BYTES", defaultSessionIDBytes),
		BindingSecretBytes:   parseIntOrDefault("BINDING_SECRET_BYTES", defaultBindingSecretBytes),
		ReuseWindow:          parseDurationOrDefault("REUSE_WINDOW", defaultReuseWindow),
		UsedTokenHistory:     parseIntOrDefault("USED_TOKEN_HISTORY", defaultUsedTokenHistory),
		AuditRetentionDays:   parseIntOrDefault("AUDIT_RETENTION_DAYS", defaultAuditRetentionDays),
		InvalidatedRetention: parseDurationOrDefault("INVALIDATED_RETENTION", defaultInvalidatedRetention),
		KeyPrefix:            os.Getenv("KEY_PREFIX"),
	}
}

type LockConfig struct {
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
}

func NewLockConfig() *LockConfig {
	return &LockConfig{
		TTL:           parseDurationOrDefault("LOCK_TTL", defaultLockTTL),
		Wait:          parseDurationOrDefault("LOCK_WAIT", defaultLockWait),
		RetryInterval: parseDurationOrDefault("LOCK_RETRY_INTERVAL", defaultLockRetryInterval),
	}
}

func NewBcryptCost() int {
	return parseIntOrDefault("BCRYPT_COST", defaultBcryptCost)
}

// ValidateConfigs enforces the startup invariants. A violated invariant is a
// deployment mistake, so callers are expected to treat any error as fatal
// before serving a single request.
func ValidateConfigs(tc *TokenConfig, sc *SessionConfig) error {
	var errs []error

	if len(tc.JwtSecretKey) == 0 {
		errs = append(errs, errors.New("JWT secret must not be empty"))
	}
	if tc.AccessTTL >= tc.RefreshTTL {
		errs = append(errs, fmt.Errorf("access TTL (%s) must be shorter than refresh TTL (%s)", tc.AccessTTL, tc.RefreshTTL))
	}
	if tc.RefreshTTL >= sc.FamilyTTL {
		errs = append(errs, fmt.Errorf("refresh TTL (%s) must be shorter than family TTL (%s)", tc.RefreshTTL, sc.FamilyTTL))
	}
	if sc.FamilyTTL > sc.SessionTTL {
		errs = append(errs, fmt.Errorf("family TTL (%s) must not exceed session TTL (%s)", sc.FamilyTTL, sc.SessionTTL))
	}
	if sc.SessionIDBytes < minSecretBytes {
		errs = append(errs, fmt.Errorf("session id length %d below minimum %d bytes", sc.SessionIDBytes, minSecretBytes))
	}
	if sc.BindingSecretBytes < minSecretBytes {
		errs = append(errs, fmt.Errorf("binding secret length %d below minimum %d bytes", sc.BindingSecretBytes, minSecretBytes))
	}
	if sc.ReuseWindow <= 0 {
		errs = append(errs, errors.New("reuse window must be positive"))
	}
	if sc.UsedTokenHistory < 1 {
		errs = append(errs, errors.New("used token history must retain at least one entry"))
	}

	return errors.Join(errs...)
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

func parseIntOrDefault(varName string, def int) int {
	if v := os.Getenv(varName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Invalid integer in %s: %s, using default %d", varName, v, def)
	}
	return def
}
