package handler

import (
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/relnotes/widget-tracker/internal/logger"
)

// apiURLHeader names the upstream chat endpoint for a proxied request.
const apiURLHeader = "X-API-URL"

// maxProxyBodyBytes caps the request body relayed upstream.
const maxProxyBodyBytes = 1 << 20

// ProxyHandler relays the widget's chat requests to the team's upstream
// endpoint. It is a pass-through: no retry, no response rewriting beyond
// relaying status and body.
type ProxyHandler struct {
	client *http.Client
	log    logger.Logger
}

// NewProxyHandler creates a ProxyHandler using client for upstream calls.
func NewProxyHandler(client *http.Client, log logger.Logger) *ProxyHandler {
	return &ProxyHandler{
		client: client,
		log:    log,
	}
}

// Relay forwards the JSON body to the endpoint named by the X-API-URL header.
func (h *ProxyHandler) Relay(c *gin.Context) {
	target := c.GetHeader(apiURLHeader)
	if !validProxyTarget(target) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "missing or invalid " + apiURLHeader + " header",
		})
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxProxyBodyBytes)
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, target, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid proxy request",
		})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Warn("Chat proxy upstream call failed",
			logger.String("target", target),
			logger.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "upstream unavailable",
		})
		return
	}
	defer resp.Body.Close()

	c.Status(resp.StatusCode)
	c.Header("Content-Type", "application/json; charset=utf-8")
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		h.log.Warn("Chat proxy response relay failed",
			logger.Error(err),
		)
	}
}

// validProxyTarget accepts only absolute https URLs with a host.
func validProxyTarget(target string) bool {
	if target == "" {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Host != ""
}
