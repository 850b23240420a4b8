package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/api"
	"github.com/rryowa/sessionguard/internal/controller"
	"github.com/rryowa/sessionguard/internal/migrations"
	"github.com/rryowa/sessionguard/internal/service"
	"github.com/rryowa/sessionguard/internal/storage"
	"github.com/rryowa/sessionguard/internal/storage/memory"
	"github.com/rryowa/sessionguard/internal/storage/postgres"
	"github.com/rryowa/sessionguard/internal/storage/redis"
	"github.com/rryowa/sessionguard/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	tokenCfg := util.NewTokenConfig()
	sessionCfg := util.NewSessionConfig()
	lockCfg := util.NewLockConfig()

	if err := util.ValidateConfigs(tokenCfg, sessionCfg); err != nil {
		logger.Fatal(zap.Error(err))
	}

	var (
		sessionRepo storage.SessionRepository
		familyRepo  storage.FamilyRepository
		blacklist   storage.Blacklist
		locker      storage.Locker
		auditSink   storage.AuditSink
	)
	var cleanupFuncs []func()

	redisClient, redisCleanup, err := util.NewRedisClient(ctx, logger, util.NewRedisConfig())
	if err != nil {
		// Degraded single-process mode: acceptable outside multi-instance
		// production deployments, never silently.
		logger.Errorw("shared store unreachable, falling back to in-memory stores; "+
			"sessions will not survive a restart and are invisible to other instances",
			"error", err)
		sessionRepo = memory.NewSessionRepository(logger, sessionCfg.SessionTTL)
		familyRepo = memory.NewFamilyRepository()
		blacklist = memory.NewBlacklist()
		locker = memory.NewLock()
		auditSink = memory.NewAuditLog()
	} else {
		cleanupFuncs = append(cleanupFuncs, redisCleanup)
		sessionRepo = redis.NewSessionRepository(redisClient, sessionCfg.KeyPrefix, sessionCfg.SessionTTL)
		familyRepo = redis.NewFamilyRepository(redisClient, sessionCfg.KeyPrefix)
		blacklist = redis.NewBlacklist(redisClient, sessionCfg.KeyPrefix)
		locker = redis.NewLock(redisClient, sessionCfg.KeyPrefix)
		auditSink = redis.NewAuditLog(redisClient, sessionCfg.KeyPrefix, sessionCfg.AuditRetentionDays)
	}

	if dbCfg := util.NewDBConfig(); dbCfg.DSN != "" {
		db, dbCleanup, err := util.NewDBConnection(logger, dbCfg)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		if err := migrations.RunMigrations(db, logger, "./internal/migrations"); err != nil {
			logger.Fatal(zap.Error(err))
		}
		cleanupFuncs = append(cleanupFuncs, dbCleanup)
		auditSink = storage.NewFanoutAuditSink(logger, auditSink, postgres.NewAuditArchive(db))
	}

	codec := service.NewTokenCodec(tokenCfg)
	familyManager := service.NewTokenFamilyManager(familyRepo, sessionRepo, locker, auditSink, logger, sessionCfg, lockCfg)

	sessionService, err := service.NewSessionService(codec, familyManager, sessionRepo, blacklist, auditSink, logger, tokenCfg, sessionCfg)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	hasher := service.NewPasswordHasher(util.NewBcryptCost())
	ctrl := controller.NewController(logger, sessionService, hasher)

	apiServer := api.NewAPI(ctrl, sessionService, util.NewServerConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}
