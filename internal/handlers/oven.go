package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reflow_oven/internal/reflow"
	"reflow_oven/internal/service"
)

const (
	statusOK        = "ok"
	statusRequested = "requested"

	errGetState        = "failed to load state"
	errCommandFailed   = "failed to send command"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	if st, err := h.services.Monitoring.GetState(c.Request.Context()); err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// command runs one panel action. An offline controller is a conflict, not
// a server error: the request was fine, the loop just isn't there.
func (h *Handler) command(c *gin.Context, name string, fn func(ctx context.Context) error) {
	if err := fn(c.Request.Context()); err != nil {
		if errors.Is(err, service.ErrControllerOffline) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errCommandFailed, "oven_command_failed", err,
			"command", name, "operator_id", operatorID(c))
		return
	}
	if h.log != nil {
		h.log.Infow("oven_command", "command", name, "operator_id", operatorID(c))
	}
	h.respondWithStatusAndState(c, statusRequested, gin.H{"command": name})
}

// AckRequest answers a fault prompt.
type AckRequest struct {
	// Resume continues the interrupted stage; false abandons the run.
	Resume *bool `json:"resume" binding:"required" example:"true"`
}

// ProfileResponse describes one solder profile.
type ProfileResponse struct {
	Label                  string  `json:"label" example:"leaded"`
	SoakMinC               float64 `json:"soak_min_c" example:"135"`
	SoakMaxC               float64 `json:"soak_max_c" example:"180"`
	SoakStepC              float64 `json:"soak_step_c" example:"6"`
	SoakMicroPeriodSeconds float64 `json:"soak_micro_period_s" example:"10"`
	ReflowMaxC             float64 `json:"reflow_max_c" example:"225"`
	CoolMinC               float64 `json:"cool_min_c" example:"50"`
	SamplingPeriodSeconds  float64 `json:"sampling_period_s" example:"1"`
}

func toProfileResponse(p reflow.Profile) ProfileResponse {
	return ProfileResponse{
		Label:                  p.Label,
		SoakMinC:               p.SoakMin,
		SoakMaxC:               p.SoakMax,
		SoakStepC:              p.SoakStep,
		SoakMicroPeriodSeconds: p.SoakMicroPeriod.Seconds(),
		ReflowMaxC:             p.ReflowMax,
		CoolMinC:               p.CoolMin,
		SamplingPeriodSeconds:  p.SamplingPeriod.Seconds(),
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, controller"
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	controller := "offline"
	if h.services.Controller != nil && h.services.Controller.Online() {
		controller = "online"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     statusOK,
		"controller": controller,
	})
}

// @Summary      Start a run
// @Description  Starts the selected profile when the oven is idle. The run begins with the probe check.
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, command, state"
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "controller offline"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/start [post]
// @Security     BearerAuth
func (h *Handler) startRun(c *gin.Context) {
	h.command(c, "start", h.services.Oven.Start)
}

// @Summary      Stop the run
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/stop [post]
// @Security     BearerAuth
func (h *Handler) stopRun(c *gin.Context) {
	h.command(c, "stop", h.services.Oven.Stop)
}

// @Summary      Pause the run
// @Description  Switches the heater off and waits in FAULT until acknowledged.
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/pause [post]
// @Security     BearerAuth
func (h *Handler) pauseRun(c *gin.Context) {
	h.command(c, "pause", h.services.Oven.Pause)
}

// @Summary      Toggle profile
// @Description  Idle: switches leaded / lead-free. FAULT: flips the resume choice. Probe check: cancels the run. Every call counts, so two calls in quick succession cancel out.
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/profile/toggle [post]
// @Security     BearerAuth
func (h *Handler) toggleProfile(c *gin.Context) {
	h.command(c, "toggle_profile", h.services.Oven.ToggleProfile)
}

// @Summary      Confirm probe placement
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/probe/confirm [post]
// @Security     BearerAuth
func (h *Handler) confirmProbe(c *gin.Context) {
	h.command(c, "confirm_probe", h.services.Oven.ConfirmProbe)
}

// @Summary      Acknowledge a fault
// @Description  Resume is refused by the controller until the sensor has recovered. Ignored outside FAULT.
// @Tags         oven
// @Accept       json
// @Produce      json
// @Param        body  body      AckRequest  true  "Resume or abandon"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/oven/ack [post]
// @Security     BearerAuth
func (h *Handler) acknowledgeFault(c *gin.Context) {
	var req AckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	p := service.AckParams{Resume: *req.Resume}
	h.command(c, "acknowledge", func(ctx context.Context) error {
		return h.services.Oven.Acknowledge(ctx, p)
	})
}

// @Summary      Get oven state
// @Tags         oven
// @Produce      json
// @Success      200  {object}  models.OvenState
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "oven_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      List profiles
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]ProfileResponse  "leaded, lead_free"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/oven/profiles [get]
// @Security     BearerAuth
func (h *Handler) getProfiles(c *gin.Context) {
	t := h.services.Profiles.Table()
	c.JSON(http.StatusOK, gin.H{
		"leaded":    toProfileResponse(t.Leaded),
		"lead_free": toProfileResponse(t.LeadFree),
	})
}
