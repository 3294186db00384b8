// Package v0 provides the REST API handlers for the attendance bridge.
package v0

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/attendkit/punchbridge/internal/api/common"
	"github.com/attendkit/punchbridge/internal/coordinator"
	"github.com/attendkit/punchbridge/internal/filter"
	"github.com/attendkit/punchbridge/internal/scheduler"
	"github.com/attendkit/punchbridge/internal/service"
	"github.com/attendkit/punchbridge/internal/telemetry"
)

// DeviceConfigRequest is the PUT /device/config body
type DeviceConfigRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// AutoSyncRequest is the PUT /autosync body
type AutoSyncRequest struct {
	Enabled bool `json:"enabled"`
}

// Routes defines the routes for the bridge API with dependency injection
type Routes struct {
	service   service.BridgeService
	scheduler scheduler.Scheduler
	metrics   *telemetry.Metrics
}

// NewRoutes creates a new Routes instance with the provided dependencies
func NewRoutes(svc service.BridgeService, sched scheduler.Scheduler, metrics *telemetry.Metrics) *Routes {
	return &Routes{
		service:   svc,
		scheduler: sched,
		metrics:   metrics,
	}
}

// Router creates a new router for the bridge API
func Router(svc service.BridgeService, sched scheduler.Scheduler, metrics *telemetry.Metrics) http.Handler {
	routes := NewRoutes(svc, sched, metrics)

	r := chi.NewRouter()

	r.Get("/device/config", routes.getDeviceConfig)
	r.Put("/device/config", routes.putDeviceConfig)
	r.Get("/device/state", routes.getDeviceState)

	r.Get("/attendance", routes.getAttendance)
	r.Get("/users", routes.getUsers)

	r.Get("/autosync", routes.getAutoSync)
	r.Put("/autosync", routes.putAutoSync)
	r.Post("/sync", routes.postSync)
	r.Post("/sync/{date}", routes.postSyncDate)

	return r
}

// HealthRouter creates a router for health check endpoints
func HealthRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteSuccessResponse(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	return r
}

// getDeviceConfig handles GET /api/v0/device/config
func (rr *Routes) getDeviceConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := rr.service.GetDeviceConfig()
	common.WriteSuccessResponse(w, http.StatusOK, map[string]any{
		"host": cfg.Host,
		"port": cfg.Port,
	})
}

// putDeviceConfig handles PUT /api/v0/device/config
func (rr *Routes) putDeviceConfig(w http.ResponseWriter, r *http.Request) {
	var req DeviceConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := rr.service.SetDeviceConfig(req.Host, req.Port); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	common.WriteSuccessResponse(w, http.StatusOK, map[string]any{
		"host": req.Host,
		"port": req.Port,
	})
}

// getDeviceState handles GET /api/v0/device/state
func (rr *Routes) getDeviceState(w http.ResponseWriter, _ *http.Request) {
	state := rr.service.DeviceState()
	fields := map[string]any{"busy": state.Busy}
	if state.BusySince != nil {
		fields["busySince"] = state.BusySince
	}
	if state.CooldownUntil != nil {
		fields["cooldownUntil"] = state.CooldownUntil
	}
	common.WriteSuccessResponse(w, http.StatusOK, fields)
}

// getAttendance handles GET /api/v0/attendance
func (rr *Routes) getAttendance(w http.ResponseWriter, r *http.Request) {
	ftype := r.URL.Query().Get("type")
	value := r.URL.Query().Get("value")

	report, err := rr.service.FetchAttendance(r.Context(), ftype, value)
	if err != nil {
		rr.recordDeviceFailure(err)
		rr.writeServiceError(w, err)
		return
	}
	rr.metrics.RecordDeviceAction("ok")

	common.WriteSuccessResponse(w, http.StatusOK, map[string]any{
		"logs":    report.Logs,
		"summary": report.Summary,
		"status":  report.Status,
	})
}

// getUsers handles GET /api/v0/users
func (rr *Routes) getUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rr.service.ListUsers(r.Context())
	if err != nil {
		rr.recordDeviceFailure(err)
		rr.writeServiceError(w, err)
		return
	}
	rr.metrics.RecordDeviceAction("ok")

	common.WriteSuccessResponse(w, http.StatusOK, map[string]any{
		"users": users,
	})
}

// getAutoSync handles GET /api/v0/autosync
func (rr *Routes) getAutoSync(w http.ResponseWriter, _ *http.Request) {
	state := rr.scheduler.State()
	fields := map[string]any{"enabled": state.Enabled}
	if state.LastResult != nil {
		fields["lastResult"] = state.LastResult
	}
	if state.LastAttempt != nil {
		fields["lastAttempt"] = state.LastAttempt
	}
	common.WriteSuccessResponse(w, http.StatusOK, fields)
}

// putAutoSync handles PUT /api/v0/autosync
func (rr *Routes) putAutoSync(w http.ResponseWriter, r *http.Request) {
	var req AutoSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := rr.scheduler.SetEnabled(r.Context(), req.Enabled); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	common.WriteSuccessResponse(w, http.StatusOK, map[string]any{
		"enabled": req.Enabled,
	})
}

// postSync handles POST /api/v0/sync (yesterday)
func (rr *Routes) postSync(w http.ResponseWriter, r *http.Request) {
	rr.triggerSync(w, r, "")
}

// postSyncDate handles POST /api/v0/sync/{date}
func (rr *Routes) postSyncDate(w http.ResponseWriter, r *http.Request) {
	rr.triggerSync(w, r, chi.URLParam(r, "date"))
}

// triggerSync runs a manual sync and writes the recorded result
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request, date string) {
	result, err := rr.scheduler.TriggerSync(r.Context(), date)
	if err != nil {
		rr.recordDeviceFailure(err)
		rr.metrics.RecordSyncResult("error")
		rr.writeServiceError(w, err)
		return
	}
	rr.metrics.RecordDeviceAction("ok")
	rr.metrics.RecordSyncResult(string(result.Outcome))

	common.WriteSuccessResponse(w, http.StatusOK, map[string]any{
		"result": result,
	})
}

// writeServiceError maps pipeline errors onto envelope failures
func (rr *Routes) writeServiceError(w http.ResponseWriter, err error) {
	var verr *filter.ValidationError
	if errors.As(err, &verr) {
		common.WriteErrorResponse(w, verr.Message, http.StatusBadRequest)
		return
	}
	if coordinator.IsBusy(err) {
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
		return
	}
	if coordinator.IsCooldown(err) {
		common.WriteErrorResponse(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	var cerr *coordinator.CommunicationError
	if errors.As(err, &cerr) {
		common.WriteErrorResponse(w, cerr.Message, http.StatusBadGateway)
		return
	}
	common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
}

// recordDeviceFailure counts a failed device action. Validation errors are
// rejected before the device is touched, so they never reach the counter.
func (rr *Routes) recordDeviceFailure(err error) {
	var verr *filter.ValidationError
	if errors.As(err, &verr) {
		return
	}
	rr.metrics.RecordDeviceAction(deviceOutcome(err))
}

// deviceOutcome classifies a pipeline error for the device-action counter
func deviceOutcome(err error) string {
	switch {
	case coordinator.IsBusy(err):
		return "busy"
	case coordinator.IsCooldown(err):
		return "cooldown"
	default:
		return "error"
	}
}
