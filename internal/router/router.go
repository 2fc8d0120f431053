package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutor-api/api/swagger"
	"github.com/noah-isme/tutor-api/internal/handler"
	"github.com/noah-isme/tutor-api/internal/middleware"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/pkg/config"
	"github.com/noah-isme/tutor-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Profile       *handler.ProfileHandler
	Availability  *handler.AvailabilityHandler
	Booking       *handler.BookingHandler
	LessonRequest *handler.LessonRequestHandler
	Message       *handler.MessageHandler
	Homework      *handler.HomeworkHandler
	CheatSheet    *handler.CheatSheetHandler
	File          *handler.FileHandler
	Metrics       *handler.MetricsHandler
}

// Options carries the router's environment.
type Options struct {
	Env            string
	APIPrefix      string
	AllowedOrigins []string
	MetricsEnabled bool
}

// New builds the gin engine with middleware and every route.
func New(opts Options, h Handlers, tokens middleware.TokenValidator, observer middleware.RequestObserver, log *zap.Logger) *gin.Engine {
	if opts.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log, "/health", "/metrics"))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	if opts.MetricsEnabled {
		r.Use(middleware.Metrics(observer))
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if opts.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)

	// Public surface.
	api.POST("/auth/signup", h.Auth.SignUp)
	api.POST("/auth/signin", h.Auth.SignIn)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/teachers", h.Profile.Teachers)
	api.GET("/availability", h.Availability.ListAvailable)
	api.POST("/lesson-requests", h.LessonRequest.Submit)
	api.GET("/files/:token", h.File.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(tokens))

	teacher := middleware.Require(models.Role.CanAssignWork)
	student := middleware.Require(models.Role.CanBook)
	publisher := middleware.Require(models.Role.CanPublishAvailability)

	authed.POST("/auth/signout", h.Auth.SignOut)
	authed.GET("/me", h.Profile.Me)
	authed.PUT("/me", h.Profile.UpdateMe)
	authed.GET("/students", teacher, h.Profile.Students)

	authed.GET("/availability/mine", publisher, h.Availability.Mine)
	authed.PUT("/availability", publisher, h.Availability.ReplaceDay)

	bookings := authed.Group("/bookings")
	bookings.GET("", h.Booking.List)
	bookings.POST("", student, h.Booking.Create)
	bookings.GET("/export", publisher, h.Booking.Export)
	bookings.POST("/:id/cancel", h.Booking.Cancel)
	bookings.POST("/:id/confirm", publisher, h.Booking.Confirm)

	conversations := authed.Group("/conversations")
	conversations.GET("", h.Message.Conversations)
	conversations.GET("/:counterpartId/messages", h.Message.History)
	conversations.POST("/:counterpartId/messages", h.Message.Send)
	conversations.POST("/:counterpartId/read", h.Message.MarkRead)
	conversations.GET("/:counterpartId/stream", h.Message.Stream)

	homeworks := authed.Group("/homeworks")
	homeworks.POST("", teacher, h.Homework.Create)
	homeworks.GET("", teacher, h.Homework.List)
	homeworks.GET("/assigned", student, h.Homework.Assigned)
	homeworks.GET("/:id", teacher, h.Homework.Detail)
	homeworks.POST("/:id/assign", teacher, h.Homework.Assign)
	homeworks.DELETE("/:id", teacher, h.Homework.Delete)
	homeworks.POST("/:id/submit", student, h.Homework.Submit)
	homeworks.GET("/:id/download", h.Homework.Download)
	homeworks.GET("/:id/solutions/:studentId", h.Homework.Solution)

	sheets := authed.Group("/cheatsheets")
	sheets.GET("/topics", h.CheatSheet.Topics)
	sheets.POST("/topics", teacher, h.CheatSheet.CreateTopic)
	sheets.DELETE("/topics/:id", teacher, h.CheatSheet.DeleteTopic)
	sheets.GET("", h.CheatSheet.List)
	sheets.POST("", teacher, h.CheatSheet.Attach)
	sheets.GET("/:id/download", h.CheatSheet.Download)
	sheets.DELETE("/:id", teacher, h.CheatSheet.Delete)

	return r
}
