package handlers

import (
	"net/http"
	"time"

	"rfsentry/internal/models"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK       = "ok"
	statusArmed    = "armed"
	statusDisarmed = "disarmed"
	statusTested   = "test_triggered"
	statusPolicy   = "policy_updated"

	errArmSentry    = "failed to arm sentry"
	errDisarmSentry = "failed to disarm sentry"
	errTriggerTest  = "failed to trigger test alert"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include the live sentry snapshot.
func (h *Handler) respondWithStatus(c *gin.Context, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	resp["sentry"] = h.services.Monitoring.Status(c.Request.Context())
	c.JSON(http.StatusOK, resp)
}

// testRequest is the optional payload for the manual trigger.
type testRequest struct {
	DeviceID string `json:"device_id,omitempty"`
}

// PolicyRequest is an exported model for Swagger docs of the policy payload.
type PolicyRequest struct {
	// Whitelist maps device address -> display name
	Whitelist map[string]string `json:"whitelist" example:"AA:BB:CC:DD:EE:FF:My phone"`
	// RSSI rise in dB within the window that counts as an approach
	ApproachDelta int `json:"approach_delta" example:"5"`
	// Absolute floor in dBm below which devices are ignored
	RSSIAlertThreshold int `json:"rssi_alert_threshold" example:"-85"`
	// Sliding window, e.g. "10s"
	ApproachWindow string `json:"approach_window" example:"10s"`
	// Minimum alert duration before clear, e.g. "15s"
	CooldownWindow string `json:"cooldown_window" example:"15s"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Sentry status
// @Description  Live tracking snapshot: armed flag, alerting flag, tracked devices and engine counters.
// @Tags         sentry
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sentry/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Status(c.Request.Context()))
}

// @Summary      Arm sentry
// @Tags         sentry
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, sentry"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sentry/arm [post]
// @Security     BearerAuth
func (h *Handler) armSentry(c *gin.Context) {
	if err := h.services.Sentry.Arm(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errArmSentry, "sentry_arm_failed", err)
		return
	}
	h.respondWithStatus(c, statusArmed, gin.H{})
}

// @Summary      Disarm sentry
// @Description  Suppresses new alerts and clears any active one.
// @Tags         sentry
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sentry/disarm [post]
// @Security     BearerAuth
func (h *Handler) disarmSentry(c *gin.Context) {
	if err := h.services.Sentry.Disarm(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDisarmSentry, "sentry_disarm_failed", err)
		return
	}
	h.respondWithStatus(c, statusDisarmed, gin.H{})
}

// @Summary      Trigger test alert
// @Description  Injects a synthetic approach through the real detection path. Empty body targets the built-in test device.
// @Tags         sentry
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sentry/test [post]
// @Security     BearerAuth
func (h *Handler) triggerTest(c *gin.Context) {
	var req testRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}
	}
	if err := h.services.Sentry.TriggerTest(c.Request.Context(), req.DeviceID); err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errTriggerTest, "sentry_test_failed", err, "device", req.DeviceID)
		return
	}
	h.respondWithStatus(c, statusTested, gin.H{"device_id": req.DeviceID})
}

// @Summary      Get detection policy
// @Tags         sentry
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sentry/policy [get]
// @Security     BearerAuth
func (h *Handler) getPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Sentry.Policy(c.Request.Context()))
}

// @Summary      Update detection policy
// @Description  Replaces the whole policy atomically; invalid policies are rejected and the running one stays in force.
// @Tags         sentry
// @Accept       json
// @Produce      json
// @Param        body  body   PolicyRequest  true  "Policy payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/sentry/policy [put]
// @Security     BearerAuth
func (h *Handler) updatePolicy(c *gin.Context) {
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	policy, err := req.toPolicy()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.services.Sentry.UpdatePolicy(c.Request.Context(), policy); err != nil {
		if h.log != nil {
			h.log.Errorw("policy_update_rejected", "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatus(c, statusPolicy, gin.H{})
}

// toPolicy converts the wire shape (durations as strings) to the domain policy.
func (r PolicyRequest) toPolicy() (models.PolicyConfig, error) {
	window, err := time.ParseDuration(r.ApproachWindow)
	if err != nil {
		return models.PolicyConfig{}, err
	}
	cooldown, err := time.ParseDuration(r.CooldownWindow)
	if err != nil {
		return models.PolicyConfig{}, err
	}
	return models.PolicyConfig{
		Whitelist:          r.Whitelist,
		ApproachDelta:      r.ApproachDelta,
		RSSIAlertThreshold: r.RSSIAlertThreshold,
		ApproachWindow:     window,
		CooldownWindow:     cooldown,
	}, nil
}
