// Package server exposes the match index over a read only HTTP API.
// Handlers never write to the store. Serving and scanning the same
// datadir from two processes at once is not supported, the store has a
// single writer and no cross process locking.
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/opcat-tools/catwatch/internal/config"
	"github.com/opcat-tools/catwatch/internal/logging"
)

// NewRouter assembles the read only API routes.
func NewRouter(api *ApiHandler) *gin.Engine {
	router := gin.Default()
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: true,
	}))

	router.GET("/info", api.GetInfo)
	router.GET("/checkpoint", api.GetCheckpoint)
	router.GET("/total-cat-txs", api.GetTotalCatTxs)
	router.GET("/cat-txs/:blockheight", ParseBlockHeightMiddleware, api.GetCatTxsByHeight)
	router.GET("/series", api.GetSeries)
	router.GET("/report", api.GetReport)

	return router
}

func RunServer(api *ApiHandler) {
	gin.SetMode(gin.ReleaseMode)

	router := NewRouter(api)
	if err := router.Run(config.HTTPHost); err != nil {
		logging.L.Err(err).Msg("could not run server")
	}
}
