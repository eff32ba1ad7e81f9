package api

import (
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/mudcore/mudcore/pkg/api/handler"
	"github.com/mudcore/mudcore/pkg/api/middleware"
	"github.com/mudcore/mudcore/pkg/permission"
)

// setupRoutes configures the admin API routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/health", handler.Health)
	s.engine.GET("/healthz", handler.Health)

	objects := handler.NewObjectHandler(s.driver.Registry)
	reload := handler.NewReloadHandler(s.driver.HotReload)
	perms := handler.NewPermissionHandler(s.driver.Permissions)
	sched := handler.NewSchedulerHandler(s.driver.Scheduler)
	shadows := handler.NewShadowHandler(s.driver.Shadows)
	persist := handler.NewPersistenceHandler(s.driver.Persistence, s.driver.Registry.AllObjects)

	v1 := s.engine.Group("/api/v1")
	v1.Use(middleware.Auth(s.config.APIKey))

	v1.GET("/objects", objects.Stats)
	v1.GET("/objects/*path", objects.Get)
	v1.POST("/objects/*path", objects.Clone)
	v1.DELETE("/objects/*path", objects.Destroy)

	v1.POST("/reload/*path", middleware.RequireLevel(s.driver.Permissions, permission.Administrator), reload.Reload)

	v1.GET("/permissions/audit", perms.Audit)
	v1.GET("/scheduler/stats", sched.Stats)
	v1.GET("/shadows/stats", shadows.Stats)
	v1.POST("/persistence/save", persist.Save)

	if s.config.DevMode {
		s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		s.log.Info("swagger ui enabled", "path", "/swagger/index.html")
	}
}
