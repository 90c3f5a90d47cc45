package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stadtportal/be-mm-reports/internal/client"
	"github.com/stadtportal/be-mm-reports/internal/platform/apperrors"
	"github.com/stadtportal/be-mm-reports/internal/platform/logger"
	"github.com/stadtportal/be-mm-reports/internal/repository"
	"github.com/stadtportal/be-mm-reports/internal/service"
)

// RateLimit is the submission rate limit applied per device.
type RateLimit struct {
	MaxReports int
	Window     time.Duration
}

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	reports   *service.ReportService
	routing   *service.RoutingService
	geocoder  *client.GeocodingClient
	rateLimit RateLimit
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	reports *service.ReportService,
	routing *service.RoutingService,
	geocoder *client.GeocodingClient,
	rateLimit RateLimit,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		reports:   reports,
		routing:   routing,
		geocoder:  geocoder,
		rateLimit: rateLimit,
		log:       log,
	}
}

// actor returns the acting admin identity for audit attribution.
func actor(r *http.Request) string {
	if v := r.Header.Get("X-Admin-User"); v != "" {
		return v
	}
	return "admin"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = &apperrors.Error{Code: apperrors.ErrCodeInternal, Message: "internal error"}
	}

	status := apperrors.HTTPStatus(appErr)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}

// ── Public: report submission ────────────────────────────────────────────────

type createReportRequest struct {
	Category     string               `json:"category"`
	Latitude     float64              `json:"latitude"`
	Longitude    float64              `json:"longitude"`
	Address      *string              `json:"address"`
	District     *string              `json:"district"`
	Comment      string               `json:"comment"`
	Urgency      string               `json:"urgency"`
	ContactEmail *string              `json:"contact_email"`
	DeviceID     string               `json:"device_id"`
	Photos       []service.PhotoInput `json:"photos"`
}

// CreateReport handles public report submissions.
func (h *HTTPHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	if len(req.Photos) == 0 {
		h.writeError(w, r, apperrors.InvalidInput("photos", "at least one photo is required"))
		return
	}
	if req.DeviceID == "" {
		h.writeError(w, r, apperrors.InvalidInput("device_id", "device ID is required"))
		return
	}

	if !h.allowSubmission(w, r, req.DeviceID) {
		return
	}

	// Geocoding is best-effort: a missing address never blocks a submission.
	if req.Address == nil && h.geocoder != nil {
		geo, err := h.geocoder.ReverseGeocode(r.Context(), req.Latitude, req.Longitude)
		if err != nil {
			h.log.Warn().Err(err).Msg("Reverse geocoding failed")
		} else if geo != nil {
			if geo.Address != "" {
				req.Address = &geo.Address
			}
			if req.District == nil {
				req.District = geo.District
			}
		}
	}

	report, err := h.reports.Create(r.Context(), &service.CreateReportInput{
		Category:     req.Category,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Address:      req.Address,
		District:     req.District,
		Comment:      req.Comment,
		Urgency:      req.Urgency,
		ContactEmail: req.ContactEmail,
		DeviceID:     req.DeviceID,
		Photos:       req.Photos,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// allowSubmission enforces the per-device rate limit. A counting failure
// fails open: intake availability outranks limit precision.
func (h *HTTPHandler) allowSubmission(w http.ResponseWriter, r *http.Request, deviceID string) bool {
	if h.rateLimit.MaxReports <= 0 {
		return true
	}

	since := time.Now().Add(-h.rateLimit.Window)
	count, err := h.reports.CountByDeviceSince(r.Context(), deviceID, since)
	if err != nil {
		h.log.Warn().Err(err).Msg("Rate limit count failed, allowing submission")
		return true
	}

	remaining := int64(h.rateLimit.MaxReports) - count
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.rateLimit.MaxReports))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

	if count >= int64(h.rateLimit.MaxReports) {
		w.Header().Set("Retry-After", strconv.Itoa(int(h.rateLimit.Window.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":   "RATE_LIMITED",
			"message": fmt.Sprintf("submission limit of %d reports per %s reached", h.rateLimit.MaxReports, h.rateLimit.Window),
		})
		return false
	}
	return true
}

// GetPublicStatus handles public status lookups by ticket code.
func (h *HTTPHandler) GetPublicStatus(w http.ResponseWriter, r *http.Request) {
	ticketCode := r.PathValue("ticketCode")
	if ticketCode == "" {
		h.writeError(w, r, apperrors.InvalidInput("ticket_code", "ticket code is required"))
		return
	}

	view, err := h.reports.PublicStatus(r.Context(), ticketCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ── Admin: reports ───────────────────────────────────────────────────────────

func reportFilterFromQuery(r *http.Request) repository.ReportFilter {
	q := r.URL.Query()

	var filter repository.ReportFilter
	if v := q.Get("status"); v != "" {
		status := repository.Status(v)
		filter.Status = &status
	}
	if v := q.Get("category"); v != "" {
		category := repository.Category(v)
		filter.Category = &category
	}
	if v := q.Get("district"); v != "" {
		filter.District = &v
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	return filter
}

// ListReports handles admin report listing with filters and pagination.
func (h *HTTPHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	filter := reportFilterFromQuery(r)

	reports, total, err := h.reports.ListReports(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"total":   total,
	})
}

// GetReport handles admin report detail requests, audit trail included.
func (h *HTTPHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, audit, err := h.reports.GetReportDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"audit":  audit,
	})
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

// ChangeStatus handles admin status changes.
func (h *HTTPHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	report, err := h.reports.ChangeStatus(r.Context(), r.PathValue("id"), req.Status, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type forwardRequest struct {
	AuthorityName  string `json:"authority_name"`
	AuthorityEmail string `json:"authority_email"`
	Comment        string `json:"comment"`
}

// ForwardReport handles manual forwarding to a named authority.
func (h *HTTPHandler) ForwardReport(w http.ResponseWriter, r *http.Request) {
	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	err := h.reports.ForwardManually(r.Context(), r.PathValue("id"), req.AuthorityName, req.AuthorityEmail, req.Comment, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"forwarded_to": req.AuthorityName})
}

type reforwardRequest struct {
	Reason         string `json:"reason"`
	AuthorityName  string `json:"authority_name"`
	AuthorityEmail string `json:"authority_email"`
}

// ReforwardReport handles repeated forwarding of an already handled report.
func (h *HTTPHandler) ReforwardReport(w http.ResponseWriter, r *http.Request) {
	var req reforwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	err := h.reports.Reforward(r.Context(), r.PathValue("id"), req.Reason, req.AuthorityName, req.AuthorityEmail, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reforwarded"})
}

// AutoForwardReport retries rule-based forwarding for a report that is still
// unassigned, e.g. after a matching rule was created.
func (h *HTTPHandler) AutoForwardReport(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.AutoForward(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "forward attempted"})
}

// ExportReports handles report data exports in CSV or JSON.
func (h *HTTPHandler) ExportReports(w http.ResponseWriter, r *http.Request) {
	filter := reportFilterFromQuery(r)

	rows, err := h.reports.ExportReports(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	filename := "reports-" + time.Now().Format("20060102") + "." + format

	switch format {
	case "json":
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
		writeJSON(w, http.StatusOK, rows)
	case "csv":
		data, err := service.RenderCSV(rows)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		h.writeError(w, r, apperrors.InvalidInput("format", "format must be csv or json"))
	}
}

// ── Admin: routing rules ─────────────────────────────────────────────────────

// ListRoutingRules handles routing rule listing, highest priority first.
func (h *HTTPHandler) ListRoutingRules(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	rules, err := h.routing.ListRules(r.Context(), activeOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// CreateRoutingRule handles routing rule creation.
func (h *HTTPHandler) CreateRoutingRule(w http.ResponseWriter, r *http.Request) {
	var in service.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	rule, err := h.routing.CreateRule(r.Context(), &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRoutingRule handles routing rule updates.
func (h *HTTPHandler) UpdateRoutingRule(w http.ResponseWriter, r *http.Request) {
	var in service.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	rule, err := h.routing.UpdateRule(r.Context(), r.PathValue("id"), &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRoutingRule handles routing rule deletion.
func (h *HTTPHandler) DeleteRoutingRule(w http.ResponseWriter, r *http.Request) {
	if err := h.routing.DeleteRule(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
