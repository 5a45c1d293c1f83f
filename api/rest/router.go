package rest

import (
	"github.com/gin-gonic/gin"
	mw "github.com/kasuganosora/npcsensor/middleware"
)

// Register mounts the diagnostics API on r.
func Register(r gin.IRouter, sensors *SensorHandler, admin *AdminHandler, adminKey string) {
	api := r.Group("/api")

	sensorsG := api.Group("/sensors")
	sensorsG.GET("", sensors.List)
	sensorsG.GET("/:id", sensors.Detail)
	sensorsG.GET("/:id/memory/:cid/predict", sensors.Predict)
	sensorsG.GET("/:id/events", sensors.Recent)
	sensorsG.GET("/:id/journal", sensors.Journal)

	adminG := api.Group("/admin")
	adminG.Use(mw.AdminAuth(adminKey))
	adminG.GET("/scheduler", admin.Scheduler)
	adminG.GET("/rooms", admin.Rooms)
}
