package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/paud-api/internal/handler"
	"github.com/noah-isme/paud-api/internal/middleware"
	"github.com/noah-isme/paud-api/internal/models"
	"github.com/noah-isme/paud-api/pkg/config"
	"github.com/noah-isme/paud-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/paud-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/paud-api/pkg/middleware/requestid"
)

// NewRouter builds the HTTP API on top of a wired container.
func NewRouter(c *Container) *gin.Engine {
	cfg := c.cfg
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics))

	metricsHandler := handler.NewMetricsHandler(c.Metrics, c.DB)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authHandler := handler.NewAuthHandler(c.Auth)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("", middleware.JWT(c.Auth))
	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/change-password", authHandler.ChangePassword)

	admin := secured.Group("", middleware.RequireRoles(models.RoleAdmin))
	staff := secured.Group("", middleware.Staff())
	parent := secured.Group("/parent", middleware.RequireRoles(models.RoleParent))

	userHandler := handler.NewUserHandler(c.UserAdmin)
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:id", userHandler.Get)
	admin.POST("/users", userHandler.Create)
	admin.PUT("/users/:id", userHandler.Update)
	admin.DELETE("/users/:id", userHandler.Deactivate)
	admin.GET("/admin/metrics", metricsHandler.Summary)

	termHandler := handler.NewTermHandler(c.Calendar)
	staff.GET("/academic-years", termHandler.ListYears)
	admin.POST("/academic-years", termHandler.CreateYear)
	admin.POST("/academic-years/:id/activate", termHandler.ActivateYear)
	staff.GET("/terms", termHandler.ListTerms)
	secured.GET("/terms/active", termHandler.Active)
	admin.POST("/terms", termHandler.CreateTerm)
	admin.POST("/terms/:id/activate", termHandler.ActivateTerm)

	classroomHandler := handler.NewClassroomHandler(c.Classrooms, c.Aspects)
	staff.GET("/classrooms", classroomHandler.List)
	staff.GET("/classrooms/:id", classroomHandler.Get)
	admin.POST("/classrooms", middleware.Audit(c.Users, c.logger, models.AuditActionClassroomCreate, "classroom"), classroomHandler.Create)
	staff.GET("/aspects", classroomHandler.ListAspects)
	aspectAudit := middleware.Audit(c.Users, c.logger, models.AuditActionAspectChange, "assessment_aspect", "id")
	admin.POST("/aspects", aspectAudit, classroomHandler.CreateAspect)
	admin.PUT("/aspects/:id", aspectAudit, classroomHandler.UpdateAspect)
	admin.PATCH("/aspects/:id/active", aspectAudit, classroomHandler.SetAspectActive)

	studentHandler := handler.NewStudentHandler(c.Students)
	logHandler := handler.NewDailyLogHandler(c.DailyLogs, c.Growth)
	staff.GET("/students", studentHandler.List)
	staff.GET("/students/:id", studentHandler.Get)
	staff.GET("/students/:id/parents", studentHandler.Parents)
	staff.GET("/students/:id/growth", logHandler.ListGrowth)
	admin.POST("/students", studentHandler.Create)
	admin.PUT("/students/:id", studentHandler.Update)
	admin.PUT("/students/:id/classroom", middleware.Audit(c.Users, c.logger, models.AuditActionStudentAssign, "student", "id"), studentHandler.AssignClassroom)
	admin.DELETE("/students/:id", studentHandler.Delete)

	rosterHandler := handler.NewRosterHandler(c.Roster)
	admin.POST("/rosters/import", rosterHandler.Import)

	staff.POST("/daily-logs", logHandler.Record)
	staff.GET("/daily-logs", logHandler.List)
	staff.POST("/growth-records", logHandler.RecordGrowth)

	cardHandler := handler.NewReportCardHandler(c.ReportCards)
	cards := staff.Group("/report-cards")
	cards.POST("/assessments", cardHandler.SaveAssessment)
	cards.POST("/narratives", cardHandler.GenerateNarrative)
	cards.POST("/narratives/bulk", cardHandler.GenerateBulkNarratives)
	cards.GET("/statistics", cardHandler.Statistics)
	cards.GET("/students/:studentId/terms/:termId", cardHandler.Preview)
	cards.GET("/students/:studentId/terms/:termId/pdf", cardHandler.PDF)
	cards.POST("/students/:studentId/terms/:termId/publish", cardHandler.Publish)

	if c.Exports != nil {
		exportHandler := handler.NewExportHandler(c.Exports, c.logger)
		api.GET("/exports/download/:token", exportHandler.Download)
		staff.POST("/exports", middleware.Audit(c.Users, c.logger, models.AuditActionExportRequest, "export_job"), exportHandler.Create)
		staff.GET("/exports/:id", exportHandler.Status)
	}

	parentHandler := handler.NewParentHandler(c.Parents, c.ReportCards)
	parent.GET("/children", parentHandler.Children)
	parent.GET("/children/:studentId/report-cards/:termId", parentHandler.ReportCard)
	parent.GET("/children/:studentId/report-cards/:termId/pdf", parentHandler.ReportCardPDF)
	parent.GET("/children/:studentId/daily-logs", parentHandler.DailyLogs)
	parent.GET("/children/:studentId/growth", parentHandler.Growth)

	return r
}
