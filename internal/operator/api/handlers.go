package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trigg3rX/pumpkit-operator/internal/operator/registration"
)

type handler struct {
	deps Dependencies
}

// Health is 200 once the operator is registered and the watcher is live
func (h *handler) Health(c *gin.Context) {
	registered := h.deps.Operator.Status() == registration.Registered
	live := h.deps.Watcher != nil && h.deps.Watcher.Live()

	body := gin.H{
		"registered":   registered,
		"watcher_live": live,
		"timestamp":    time.Now().UTC(),
	}
	if !registered || !live {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "healthy"
	c.JSON(http.StatusOK, body)
}

func (h *handler) Status(c *gin.Context) {
	body := gin.H{
		"operator":     h.deps.Operator.Address().Hex(),
		"registration": h.deps.Operator.Status().String(),
		"chain_id":     h.deps.ChainID,
		"watcher_live": h.deps.Watcher != nil && h.deps.Watcher.Live(),
	}
	if h.deps.Dispatcher != nil {
		stats := h.deps.Dispatcher.Stats()
		body["in_flight"] = stats.InFlight
		body["received"] = stats.Received
		body["outcomes"] = stats.Outcomes
	}
	c.JSON(http.StatusOK, body)
}
