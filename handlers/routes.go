package handlers

import (
	"bitbucket.org/mmdatafocus/shopledger_backend/workflow"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the ledger API on r.
func RegisterRoutes(r gin.IRouter) {
	r.POST("/batches", createBatch)
	r.GET("/batches", listBatches)
	r.GET("/batches/availability", batchAvailability)
	r.GET("/batches/:id", getBatch)
	r.PUT("/batches/:id", updateBatch)
	r.DELETE("/batches/:id", deleteBatch)

	r.POST("/distributions", distribute)
	r.POST("/distributions/fan-out", distributeFanOut)

	r.POST("/shops", createShop)
	r.GET("/shops/:id", getShop)
	r.GET("/shops/:id/stock", listShopStock)
	r.POST("/shops/:id/manual-stock", registerManualStock)
	r.POST("/shops/:id/live-stock", addLiveStock)

	r.POST("/consumptions", consume)
	r.POST("/conversions", convertItem)
	r.POST("/spoilages", requestSpoilage)
	r.POST("/spoilages/:id/approve", reviewSpoilage(true))
	r.POST("/spoilages/:id/reject", reviewSpoilage(false))
	r.POST("/transfers", transfer)
	r.POST("/transfers/:group/accept", acceptTransfer)
	r.POST("/transfers/:group/decline", declineTransfer)
	r.POST("/returns", returnStock)
	r.GET("/movements", listMovements)
	r.GET("/movements/:id", getMovement)

	r.POST("/sales", recordSale)

	r.POST("/accounts", createAccount)
	r.GET("/accounts", listAccounts)
	r.GET("/journals", journalBalance)
	r.POST("/journals/reverse", reverseJournal)

	r.GET("/metrics", gin.WrapH(workflow.MetricsHandler()))
}
