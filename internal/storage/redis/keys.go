package redis

// Key namespaces shared by the redis adapters. Every key is additionally
// prefixed with the configured tenant prefix.
const (
	sessionKeyNS      = "session:"
	userSessionsKeyNS = "user:sessions:"
	familyKeyNS       = "token:family:"
	blacklistKeyNS    = "token:blacklist:"
	auditKeyNS        = "audit:session:"
	lockKeyNS         = "lock:"

	auditDayLayout = "20060102"
)
