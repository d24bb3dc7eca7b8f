package router

import (
	"time"

	"leasehub/internal/handlers"
	"leasehub/internal/middleware"
	"leasehub/internal/services"
	"leasehub/pkg/config"
	"leasehub/pkg/jwt"
	"leasehub/pkg/queue"
	"leasehub/pkg/response"

	"github.com/gin-gonic/gin"
)

// Deps 路由依赖
type Deps struct {
	Services   *services.Registry
	JWTManager *jwt.JWTManager
	CORS       config.CORSConfig
	// Queue 为空时不注册事件推送接口
	Queue *queue.RedisQueue
}

// SetupRouter 设置路由
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(deps.CORS))

	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps Deps) {
	auth := middleware.NewAuthMiddleware(deps.JWTManager)
	svc := deps.Services

	api := router.Group("/api/v1")
	{
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		propertyHandler := handlers.NewPropertyHandler(svc.Properties)
		templateHandler := handlers.NewLeaseTemplateHandler(svc.Templates)
		properties := api.Group("/properties", auth.RequireLogin())
		{
			properties.POST("", propertyHandler.Create)
			properties.GET("", propertyHandler.List)
			properties.GET("/:id", propertyHandler.GetByID)
			properties.POST("/:id/units", propertyHandler.AddUnit)
			properties.GET("/:id/lease-templates", templateHandler.PropertyTemplates)
			properties.GET("/:id/default-lease-template", templateHandler.DefaultTemplate)
		}

		templates := api.Group("/lease-templates", auth.RequireLogin())
		{
			templates.POST("", templateHandler.Create)
			templates.GET("", templateHandler.List)
			templates.GET("/:id", templateHandler.GetByID)
			templates.DELETE("/:id", auth.RequireAdmin(), templateHandler.Delete)
			templates.POST("/:id/properties/:property_id", templateHandler.Associate)
			templates.DELETE("/:id/properties/:property_id", templateHandler.Dissociate)
			templates.PUT("/:id/properties/:property_id/default", templateHandler.SetDefault)
		}

		leaseHandler := handlers.NewLeaseHandler(svc.Generation, svc.Lifecycle)
		leases := api.Group("/leases", auth.RequireLogin())
		{
			leases.POST("/preview", leaseHandler.Preview)
			leases.POST("", leaseHandler.Generate)
			leases.GET("", leaseHandler.List)
			leases.GET("/:id", leaseHandler.GetByID)
			leases.GET("/by-reference/:reference", leaseHandler.GetByReference)
			leases.POST("/:id/signatures", leaseHandler.RecordSignature)
			leases.POST("/:id/terminate", leaseHandler.Terminate)
			leases.POST("/:id/regenerate", auth.RequireAdmin(), leaseHandler.Regenerate)
		}

		// WebSocket 使用查询参数中的 token 认证
		if deps.Queue != nil {
			eventsHandler := handlers.NewLeaseEventsHandler(deps.Queue, svc.Lifecycle)
			api.GET("/ws/leases/:reference", eventsHandler.Stream)
		}
	}
}

func healthCheck(c *gin.Context) {
	response.Success(c, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "leasehub",
	})
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
