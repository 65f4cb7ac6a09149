// Package app assembles repositories, services and background workers from configuration.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/repository"
	"github.com/noah-isme/paud-api/internal/service"
	"github.com/noah-isme/paud-api/pkg/config"
	"github.com/noah-isme/paud-api/pkg/export"
	"github.com/noah-isme/paud-api/pkg/jobs"
	"github.com/noah-isme/paud-api/pkg/narrative"
	"github.com/noah-isme/paud-api/pkg/storage"
)

// Container holds the wired services shared by the API server and the admin CLI.
type Container struct {
	DB      *sqlx.DB
	Metrics *service.MetricsService

	Users    *repository.UserRepository
	cacheRep *repository.CacheRepository

	Auth        *service.AuthService
	UserAdmin   *service.UserService
	Students    *service.StudentService
	Calendar    *service.TermService
	Classrooms  *service.ClassroomService
	Aspects     *service.AspectService
	DailyLogs   *service.DailyLogService
	Growth      *service.GrowthService
	Parents     *service.ParentService
	ReportCards *service.ReportCardService
	Roster      *service.RosterImportService
	Exports     *service.ExportJobService

	exportQueue *jobs.Queue
	cfg         *config.Config
	logger      *zap.Logger
}

// New wires every service against db. redisClient may be nil, which disables caching.
func New(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	metrics := service.NewMetricsService()

	users := repository.NewUserRepository(db)
	terms := repository.NewTermRepository(db)
	students := repository.NewStudentRepository(db)
	classrooms := repository.NewClassroomRepository(db)
	aspects := repository.NewAspectRepository(db)
	cards := repository.NewReportCardRepository(db)
	links := repository.NewParentLinkRepository(db)
	dailyLogs := repository.NewDailyLogRepository(db)
	growth := repository.NewGrowthRepository(db)
	exportJobs := repository.NewExportJobRepository(db)
	tx := repository.NewTransactor(db)

	cacheRepo := repository.NewCacheRepository(redisClient, logger)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ReportCardTTL, logger, redisClient != nil)

	c := &Container{
		DB:       db,
		Metrics:  metrics,
		Users:    users,
		cacheRep: cacheRepo,
		cfg:      cfg,
		logger:   logger,
	}

	c.Auth = service.NewAuthService(users, validate, logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "paud-api",
	})
	c.UserAdmin = service.NewUserService(users, validate, logger)
	c.Students = service.NewStudentService(students, links, cards, classrooms, users, validate, logger)
	c.Calendar = service.NewTermService(terms, users, validate, logger)
	c.Classrooms = service.NewClassroomService(classrooms, terms, users, validate, logger)
	c.Aspects = service.NewAspectService(aspects, cacheSvc, validate, logger)
	c.DailyLogs = service.NewDailyLogService(dailyLogs, students, validate, logger)
	c.Growth = service.NewGrowthService(growth, students, validate, logger)
	c.Parents = service.NewParentService(links, c.DailyLogs, c.Growth, logger)

	c.ReportCards = service.NewReportCardService(service.ReportCardServiceParams{
		Tx:         tx,
		Cards:      cards,
		Aspects:    aspects,
		Students:   students,
		Terms:      terms,
		Classrooms: classrooms,
		Links:      links,
		DailyLogs:  dailyLogs,
		Growth:     growth,
		Audit:      users,
		Generator:  narrative.NewGeminiClient(cfg.Narrative, logger.Named("narrative")),
		Cache:      cacheSvc,
		Metrics:    metrics,
		Validator:  validate,
		Logger:     logger,
		Config: service.ReportCardServiceConfig{
			SchoolName:       cfg.SchoolName,
			NarrativeTimeout: cfg.Narrative.Timeout,
			BulkConcurrency:  cfg.Narrative.BulkConcurrency,
			ReportCardTTL:    cfg.Cache.ReportCardTTL,
			StatisticsTTL:    cfg.Cache.StatisticsTTL,
		},
	})

	uploads, err := storage.NewLocalStorage(cfg.Imports.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}
	c.Roster = service.NewRosterImportService(tx, students, users, links, uploads, cfg.Imports.MaxFileSizeBytes, metrics, logger.Named("roster"))

	if cfg.Exports.Enabled {
		if err := c.wireExports(exportJobs, classrooms, terms, validate); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) wireExports(repo *repository.ExportJobRepository, classrooms *repository.ClassroomRepository, terms *repository.TermRepository, validate *validator.Validate) error {
	cfg := c.cfg.Exports
	files, err := storage.NewLocalStorage(filepath.Clean(cfg.StorageDir))
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL)
	exporter := service.NewExportService(c.ReportCards, classrooms, terms, files, signer, service.ExportRenderers{
		Cards: export.NewReportCardPDF(c.cfg.SchoolName),
	}, service.ExportConfig{APIPrefix: c.cfg.APIPrefix, ResultTTL: cfg.SignedURLTTL}, c.logger.Named("export"))

	worker := service.NewExportWorker(repo, exporter, c.Metrics, cfg.WorkerRetries, c.logger.Named("export_worker"))
	c.exportQueue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: 5 * time.Second,
		Logger:     c.logger.Named("export_queue"),
	})
	c.Exports = service.NewExportJobService(repo, classrooms, terms, c.exportQueue, exporter, c.Metrics, validate, c.logger.Named("export_jobs"), service.ExportJobConfig{
		ResultTTL:  cfg.SignedURLTTL,
		MaxRetries: cfg.WorkerRetries,
	})
	return nil
}

// StartWorkers starts the export queue, re-enqueues interrupted jobs and schedules result cleanup.
// The returned function stops everything that was started.
func (c *Container) StartWorkers(ctx context.Context) (func(), error) {
	if c.Exports == nil {
		return func() {}, nil
	}
	c.exportQueue.Start(ctx)
	if n := c.Exports.RecoverPendingJobs(ctx); n > 0 {
		c.logger.Info("recovered pending export jobs", zap.Int("count", n))
	}
	scheduler, err := c.Exports.ScheduleCleanup(ctx, c.cfg.Exports.CleanupSchedule)
	if err != nil {
		c.exportQueue.Stop()
		return nil, err
	}
	return func() {
		<-scheduler.Stop().Done()
		c.exportQueue.Stop()
	}, nil
}

// Close releases the cache connection.
func (c *Container) Close() error {
	return c.cacheRep.Close()
}
