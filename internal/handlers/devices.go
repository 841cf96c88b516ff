package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      List tracked devices
// @Description  Devices currently inside the tracking window, with live RSSI, delta and alert state.
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) getDevices(c *gin.Context) {
	st := h.services.Monitoring.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count":   len(st.Devices),
		"devices": st.Devices,
	})
}

// @Summary      List devices that have alerted
// @Description  Persisted record of every device that ever triggered an alert, most recent first.
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices/alerted [get]
// @Security     BearerAuth
func (h *Handler) getAlertedDevices(c *gin.Context) {
	devices, err := h.services.Monitoring.AlertedDevices(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load alerted devices", "devices_alerted_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}
