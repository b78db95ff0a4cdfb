package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opcat-tools/catwatch/internal/logging"
)

// ParseBlockHeightMiddleware pulls :blockheight out of the path and
// stores it in the gin context for the handler.
func ParseBlockHeightMiddleware(c *gin.Context) {
	heightStr := c.Param("blockheight")
	if heightStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "block height is required"})
		c.Abort()
		return
	}

	height, err := strconv.ParseUint(heightStr, 10, 64)
	if err != nil {
		logging.L.Err(err).Msg("could not parse block height")
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse block height"})
		c.Abort()
		return
	}

	c.Set("blockheight", height)
	c.Next()
}

func blockHeightFromContext(c *gin.Context) (uint64, bool) {
	value, exists := c.Get("blockheight")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blockheight not found"})
		return 0, false
	}
	height, ok := value.(uint64)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid blockheight type"})
		return 0, false
	}
	return height, true
}
