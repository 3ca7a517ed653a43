// Package server exposes run summaries and per-CID query trees over HTTP.
package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/HORNET-Storage/dht-hop-tracer/analyzer"
	"github.com/HORNET-Storage/dht-hop-tracer/record"
	"github.com/HORNET-Storage/dht-hop-tracer/responders"
	"github.com/HORNET-Storage/dht-hop-tracer/tree"
)

// Handler serves the latest summary and rebuilds trees on request.
type Handler struct {
	config  *analyzer.Config
	mapping *responders.Mapping

	mu      sync.RWMutex
	summary *record.Summary
}

// NewHandler creates a new handler. summary may be nil until a batch has run.
func NewHandler(config *analyzer.Config, mapping *responders.Mapping, summary *record.Summary) *Handler {
	if mapping == nil {
		mapping = responders.NewMapping()
	}
	return &Handler{
		config:  config,
		mapping: mapping,
		summary: summary,
	}
}

// SetSummary replaces the summary being served.
func (h *Handler) SetSummary(summary *record.Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.summary = summary
}

func (h *Handler) currentSummary() *record.Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.summary
}

// NewRouter wires the handler's routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(corsMiddleware())

	router.GET("/health", h.Health)
	router.GET("/summary", h.Summary)
	router.GET("/summary/:cid", h.SummaryCID)
	router.GET("/tree/:cid", h.Tree)

	return router
}

// Health handles basic health check
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "hoptracer",
		"cids":    h.mapping.Len(),
	})
}

// Summary returns the whole run summary
// GET /summary
func (h *Handler) Summary(c *gin.Context) {
	summary := h.currentSummary()
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No summary available",
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// SummaryCID returns the stats of one CID
// GET /summary/:cid
func (h *Handler) SummaryCID(c *gin.Context) {
	summary := h.currentSummary()
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No summary available",
		})
		return
	}

	st, ok := summary.Find(c.Param("cid"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "CID not in summary",
			"cid":   c.Param("cid"),
		})
		return
	}

	c.JSON(http.StatusOK, st)
}

// Tree rebuilds and exports the query tree of one CID. The format query
// parameter selects json (default), cbor or text.
// GET /tree/:cid
func (h *Handler) Tree(c *gin.Context) {
	cid := c.Param("cid")

	config := *h.config
	config.Visualize = false

	report, err := analyzer.Analyze(&config, cid, h.mapping.Responders(cid))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, analyzer.ErrMissingLog) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error":   "Failed to build tree",
			"details": err.Error(),
		})
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "text":
		c.String(http.StatusOK, tree.Print(cid, report.Forest, report.Buckets))
	case "cbor":
		data, err := tree.Export(report.Forest, report.Buckets, h.mapping.Responders(cid)).ToCBOR()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to encode tree",
				"details": err.Error(),
			})
			return
		}
		c.Data(http.StatusOK, "application/cbor", data)
	case "json":
		c.JSON(http.StatusOK, gin.H{
			"cid":    cid,
			"hops":   report.Result,
			"levels": tree.Export(report.Forest, report.Buckets, h.mapping.Responders(cid)),
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown format",
		})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("component", "server").
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
