package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/export"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
	qrcode "github.com/skip2/go-qrcode"
)

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	var dfe *districtstats.DataFormatError
	switch {
	case errors.Is(err, districtstats.ErrNoSnapshot), errors.Is(err, districtstats.ErrUnknownDistrict):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, districtstats.ErrRefreshInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, districtstats.ErrUnknownRankingAxis):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &dfe):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"dataset": dfe.Dataset,
			"row":     dfe.Row,
			"value":   dfe.Value,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// writeBusy answers a refresh request that lost the race with the run in flight.
func (r *Router) writeBusy(c *gin.Context, err error) {
	c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "active": r.svc.Active()})
}

func (r *Router) getStats(c *gin.Context) {
	snap, err := r.svc.Current()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) refreshStats(c *gin.Context) {
	snap, run, err := r.svc.Refresh(c.Request.Context(), districtstats.TriggerManual)
	if errors.Is(err, districtstats.ErrRefreshInProgress) {
		r.writeBusy(c, err)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "snapshot": snap})
}

func (r *Router) startRefresh(c *gin.Context) {
	runID, err := r.svc.Start(districtstats.TriggerManual)
	if errors.Is(err, districtstats.ErrRefreshInProgress) {
		r.writeBusy(c, err)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"runId":   runID,
		"message": "Refresh started. Check progress with GET /api/stats/runs",
	})
}

func (r *Router) cancelRefresh(c *gin.Context) {
	runID := c.Param("runId")
	if !r.svc.Cancel(runID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no running refresh " + runID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runId": runID, "canceled": true})
}

func (r *Router) listRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := r.svc.Runs(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs, "refreshing": r.svc.Refreshing()})
}

func (r *Router) listDistricts(c *gin.Context) {
	snap, err := r.svc.Current()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshotId": snap.ID,
		"computedAt": snap.ComputedAt,
		"items":      snap.Districts,
	})
}

type districtResponse struct {
	model.DistrictStats
	Centroid []float64 `json:"centroid,omitempty"`
}

func (r *Router) getDistrict(c *gin.Context) {
	d, err := r.svc.District(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := districtResponse{DistrictStats: d}
	if geo := r.svc.Geo(); geo != nil {
		if lng, lat, ok := geo.Centroid(d.District); ok {
			resp.Centroid = []float64{lng, lat}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) rankDistricts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	by := c.DefaultQuery("by", "confirmedRatio")
	ranked, err := r.svc.Ranking(by, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"by": by, "items": ranked})
}

func (r *Router) locateDistrict(c *gin.Context) {
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	if errLng != nil || errLat != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lng and lat are required numbers"})
		return
	}
	geo := r.svc.Geo()
	if geo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "boundaries not loaded yet"})
		return
	}
	name, ok := geo.Locate(lng, lat)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no district contains %g,%g", lng, lat)})
		return
	}
	d, err := r.svc.District(name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (r *Router) districtGeoJSON(c *gin.Context) {
	snap, err := r.svc.Current()
	if err != nil {
		writeError(c, err)
		return
	}
	geo := r.svc.Geo()
	if geo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "boundaries not loaded yet"})
		return
	}
	data, err := geo.FeatureCollection(snap)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

func (r *Router) exportDistricts(c *gin.Context) {
	format := c.DefaultQuery("format", export.FormatCSV)
	switch format {
	case export.FormatCSV, export.FormatXLSX, export.FormatParquet:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv, xlsx or parquet"})
		return
	}
	snap, err := r.svc.Current()
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, snap); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+export.FileName(snap, format))
	c.Data(http.StatusOK, export.ContentType(format), buf.Bytes())
}

func (r *Router) shareQR(c *gin.Context) {
	if r.publicURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "PUBLIC_URL is not configured"})
		return
	}
	png, err := qrcode.Encode(r.publicURL, qrcode.Medium, 256)
	if err != nil {
		writeError(c, fmt.Errorf("encode share qr: %w", err))
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
