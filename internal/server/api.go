package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opcat-tools/catwatch/internal/config"
	"github.com/opcat-tools/catwatch/internal/logging"
	"github.com/opcat-tools/catwatch/internal/report"
	"github.com/opcat-tools/catwatch/internal/storage"
)

// maxSeriesSpan caps how many heights a single series request may
// cover, anything larger should go through the csv export.
const maxSeriesSpan = 1_000_000

// ApiHandler serves read only queries against the match index.
type ApiHandler struct {
	Store storage.Store
}

type InfoResponse struct {
	Network      string `json:"network"`
	Checkpoint   uint64 `json:"checkpoint"`
	StoreBackend string `json:"store_backend"`
	MatchMode    string `json:"match_mode"`
}

type CheckpointResponse struct {
	Checkpoint uint64 `json:"checkpoint"`
}

type TotalResponse struct {
	Total uint64 `json:"total"`
}

// checkpointOrZero treats a fresh store as checkpoint 0 instead of an
// error, the read API should work before the first scan.
func (h *ApiHandler) checkpointOrZero(c *gin.Context) (uint64, bool) {
	checkpoint, err := h.Store.Checkpoint()
	if err != nil && errors.Is(err, storage.NoEntryErr{}) {
		return 0, true
	} else if err != nil {
		logging.L.Err(err).Msg("error fetching checkpoint")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return 0, false
	}
	return checkpoint, true
}

func (h *ApiHandler) GetInfo(c *gin.Context) {
	checkpoint, ok := h.checkpointOrZero(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, InfoResponse{
		Network:      config.ChainToString(config.Chain),
		Checkpoint:   checkpoint,
		StoreBackend: config.StoreBackend,
		MatchMode:    config.MatchMode,
	})
}

func (h *ApiHandler) GetCheckpoint(c *gin.Context) {
	checkpoint, ok := h.checkpointOrZero(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, CheckpointResponse{Checkpoint: checkpoint})
}

func (h *ApiHandler) GetTotalCatTxs(c *gin.Context) {
	var start, end uint64
	var err error
	if s := c.Query("start"); s != "" {
		start, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse start"})
			return
		}
	}
	if s := c.Query("end"); s != "" {
		end, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse end"})
			return
		}
	}

	total, err := report.TotalCatTxs(h.Store, start, end)
	if err != nil {
		logging.L.Err(err).Msg("error counting cat txs")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}
	c.JSON(http.StatusOK, TotalResponse{Total: total})
}

// GetCatTxsByHeight serves the matches of a single height as report
// entries, txid plus the tapscripts that triggered the match.
func (h *ApiHandler) GetCatTxsByHeight(c *gin.Context) {
	height, ok := blockHeightFromContext(c)
	if !ok {
		return
	}
	entries, err := report.Matches(h.Store, height)
	if err != nil {
		logging.L.Err(err).Uint64("height", height).Msg("error fetching matches")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *ApiHandler) GetSeries(c *gin.Context) {
	start, end, ok, err := report.IndexedRange(h.Store)
	if err != nil {
		logging.L.Err(err).Msg("error determining indexed range")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}

	// explicit bounds override the indexed range
	if s := c.Query("start"); s != "" {
		start, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse start"})
			return
		}
		ok = true
	}
	if s := c.Query("end"); s != "" {
		end, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse end"})
			return
		}
		ok = true
	}

	if !ok || end <= start {
		c.JSON(http.StatusOK, []report.Point{})
		return
	}
	if end-start > maxSeriesSpan {
		c.JSON(http.StatusBadRequest, gin.H{"error": "series range too large"})
		return
	}

	points, err := report.Series(h.Store, start, end)
	if err != nil {
		logging.L.Err(err).Msg("error building series")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *ApiHandler) GetReport(c *gin.Context) {
	window := config.ReportWindow
	if s := c.Query("window"); s != "" {
		var err error
		window, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse window"})
			return
		}
	}

	entries, err := report.Build(h.Store, window)
	if err != nil {
		logging.L.Err(err).Msg("error building report")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}
	if entries == nil {
		entries = []report.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}
