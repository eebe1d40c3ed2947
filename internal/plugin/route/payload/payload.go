// Package payload serves the business endpoint: numeric and text analysis
// of a JSON payload.
package payload

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/pan1c/payload-analyzer/internal/analyze"
	registryroute "github.com/pan1c/payload-analyzer/internal/registry/route"
)

// Request is the /payload input schema. Text is a pointer so that presence
// is required but an empty string is still valid input.
type Request struct {
	Numbers []float64 `json:"numbers" binding:"required,min=1"`
	Text    *string   `json:"text" binding:"required"`
}

// Response is the /payload output schema.
type Response struct {
	Numeric analyze.NumericSummary `json:"numeric"`
	Text    analyze.TextSummary    `json:"text"`
}

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 0,
		Type:  registryroute.RouteTypeMain,
		Loader: func(r *gin.Engine) error {
			r.POST("/payload", handle)
			return nil
		},
	})
}

func handle(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		// Every validation failure is a 400 with a structured body, never
		// the framework default.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	numeric, err := analyze.Numbers(req.Numbers)
	if err != nil {
		// Unreachable via binding validation, but the computation's own
		// contract is still honored. Anything else is a server error.
		log.Error("Numeric analysis rejected validated input", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}

	c.JSON(http.StatusOK, Response{
		Numeric: numeric,
		Text:    analyze.Text(*req.Text),
	})
}
