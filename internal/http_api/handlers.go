package http_api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/agentsolutions/link-manager/internal/models"
	"github.com/gin-gonic/gin"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "agent-solutions-link-manager"

// SubmitRequest represents the JSON body for storing a new solution
type SubmitRequest struct {
	Preview      models.Preview `json:"preview"`
	FullSolution interface{}    `json:"full_solution"`
}

// UnlockRequest represents the JSON body for unlocking a solution
type UnlockRequest struct {
	TxHash     string `json:"tx_hash"`
	BuyerAgent string `json:"buyer_agent"`
}

func previewURL(id string) string {
	return fmt.Sprintf("/api/v1/solutions/%s/preview", id)
}

func unlockURL(id string) string {
	return fmt.Sprintf("/api/v1/solutions/%s/unlock", id)
}

// bearerAuth guards the write path with the shared secret. A missing
// server-side secret is a misconfiguration (500), not an auth failure.
func (s *HTTPServer) bearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			s.logger.Error("LINK_MANAGER_API_KEY not configured, rejecting write request")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "LINK_MANAGER_API_KEY not configured"})
			return
		}
		auth := c.GetHeader("Authorization")
		if auth != "Bearer "+s.apiKey {
			s.logger.Warn("Unauthorized write attempt", "remote", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// respondError maps domain failures onto status codes. Anything outside
// the taxonomy (storage failures included) is a 500.
func (s *HTTPServer) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Solution not found"})
	case errors.Is(err, models.ErrReplayDetected):
		c.JSON(http.StatusConflict, gin.H{"error": "tx_hash already used"})
	default:
		s.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// submitSolution is the handler for POST /api/v1/solutions.
func (s *HTTPServer) submitSolution(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	solution, err := s.manager.Submit(req.Preview, req.FullSolution)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          solution.ID,
		"preview_url": previewURL(solution.ID),
		"created_at":  solution.CreatedAt,
	})
}

// getPreview is the handler for GET /api/v1/solutions/:id/preview.
// Preview fields are spread at the top level of the response.
func (s *HTTPServer) getPreview(c *gin.Context) {
	solution, err := s.manager.Preview(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	body := gin.H{}
	for k, v := range solution.Preview {
		body[k] = v
	}
	body["id"] = solution.ID
	body["price"] = models.FixedPrice()
	body["unlock_url"] = unlockURL(solution.ID)
	body["payment_count"] = solution.PaymentCount()
	body["created_at"] = solution.CreatedAt

	c.JSON(http.StatusOK, body)
}

// unlockSolution is the handler for POST /api/v1/solutions/:id/unlock.
func (s *HTTPServer) unlockSolution(c *gin.Context) {
	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	solution, payment, err := s.manager.Unlock(c.Param("id"), req.TxHash, req.BuyerAgent)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            solution.ID,
		"preview":       solution.Preview,
		"full_solution": solution.FullSolution,
		"payment":       payment,
	})
}

// getSolution is the handler for GET /api/v1/solutions/:id. The caller
// identifies itself with the x-agent-id header; without a recorded payment
// it gets the paywall body, never the payload.
func (s *HTTPServer) getSolution(c *gin.Context) {
	agent := c.GetHeader("x-agent-id")

	solution, paid, err := s.manager.Resolve(c.Param("id"), agent)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if !paid {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":          "Payment required",
			"price":          models.FixedPrice(),
			"wallet_address": s.walletAddress,
			"unlock_url":     unlockURL(solution.ID),
			"preview":        solution.Preview,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            solution.ID,
		"preview":       solution.Preview,
		"full_solution": solution.FullSolution,
	})
}

// health is the handler for GET /health.
func (s *HTTPServer) health(c *gin.Context) {
	count, err := s.manager.Count()
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"service":   ServiceName,
		"solutions": count,
		"uptime":    s.manager.Uptime().Seconds(),
	})
}
