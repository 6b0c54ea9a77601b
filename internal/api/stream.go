// Package api exposes IAM streams over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/qubiclite/iam/internal/iam"
	"go.uber.org/zap"
)

// StreamHandler serves packet reads and, when a publisher is configured,
// packet publication for one IAM stream.
type StreamHandler struct {
	reader    *iam.Reader
	publisher *iam.Publisher
	onPublish func(address string)
	logger    *zap.Logger
}

// NewStreamHandler creates a StreamHandler. publisher may be nil, in which
// case the stream is served read-only.
func NewStreamHandler(reader *iam.Reader, publisher *iam.Publisher, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{reader: reader, publisher: publisher, logger: logger}
}

// SetPublishHook registers fn to run after every successful publication,
// e.g. to invalidate a fetch cache for the address.
func (h *StreamHandler) SetPublishHook(fn func(address string)) {
	h.onPublish = fn
}

// Register mounts the stream routes on the given router group.
func (h *StreamHandler) Register(rg *gin.RouterGroup) {
	s := rg.Group("/streams")
	{
		s.GET("/:namespace/:position", h.Read)
		s.POST("/:namespace/:position", h.Publish)
	}
	rg.GET("/address/:namespace/:position", h.Address)
}

// Read handles GET /streams/:namespace/:position and returns every valid
// packet at the index.
func (h *StreamHandler) Read(c *gin.Context) {
	idx, ok := parseIndex(c)
	if !ok {
		return
	}

	packets, err := h.reader.Read(c.Request.Context(), idx)
	if err != nil {
		h.logger.Error("read packets", zap.String("index", idx.String()), zap.Error(err))
		var fe *iam.FetchError
		if errors.As(err, &fe) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch candidates from the tangle"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read packets"})
		return
	}
	RecordPacketsRead(len(packets))

	resp := indexFields(idx)
	resp["address"] = h.reader.Address(idx)
	resp["packets"] = packets
	c.JSON(http.StatusOK, resp)
}

type publishRequest struct {
	Message map[string]any `json:"message" binding:"required"`
}

// Publish handles POST /streams/:namespace/:position. It signs and attaches
// a packet.
func (h *StreamHandler) Publish(c *gin.Context) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "publishing is disabled on this node"})
		return
	}
	idx, ok := parseIndex(c)
	if !ok {
		return
	}

	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"message\": {...}}"})
		return
	}

	pub, err := h.publisher.Publish(c.Request.Context(), idx, req.Message)
	if err != nil {
		if errors.Is(err, iam.ErrPacketTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("publish packet", zap.String("index", idx.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish packet"})
		return
	}
	if h.onPublish != nil {
		h.onPublish(pub.Address)
	}

	c.JSON(http.StatusCreated, gin.H{
		"address":   pub.Address,
		"root":      pub.Root.Hash,
		"fragments": len(pub.Fragments) + 1,
	})
}

// Address handles GET /address/:namespace/:position.
func (h *StreamHandler) Address(c *gin.Context) {
	idx, ok := parseIndex(c)
	if !ok {
		return
	}
	resp := indexFields(idx)
	resp["address"] = h.reader.Address(idx)
	c.JSON(http.StatusOK, resp)
}

func parseIndex(c *gin.Context) (iam.Index, bool) {
	pos, err := strconv.ParseUint(c.Param("position"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position must be a non-negative integer"})
		return iam.Index{}, false
	}
	return iam.IndexFor(c.Param("namespace"), pos), true
}

// indexFields describes idx in a response body.
func indexFields(idx iam.Index) gin.H {
	out := gin.H{"index": idx.String()}
	if idx.IsStatement() {
		out["statement"] = string(idx.Statement)
		out["epoch"] = idx.Epoch()
	}
	return out
}
