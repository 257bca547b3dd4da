package api

import (
	"github.com/cloudverse/metering-center/config"
	"github.com/cloudverse/metering-center/core/tasklock"
	"github.com/gin-gonic/gin"
	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logging.Logger("api")

var taskLocks *tasklock.Registry

func ConfigRouter(router *gin.Engine, cfg config.Config, locks *tasklock.Registry) {
	taskLocks = locks

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")

	apiV1.GET("/health", HealthHandler)
	apiV1.GET("/price/describe", DescribePriceHandler)

	admin := apiV1.Group("/admin")
	admin.GET("/task-locks", ListTaskLocksHandler)
	admin.POST("/task-locks/:task/release", ReleaseTaskLockHandler)
}

func HealthHandler(c *gin.Context) {
	c.JSON(200, respJSON(JsonObject{
		"status": "ok",
	}))
}
