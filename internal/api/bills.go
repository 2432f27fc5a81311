package api

import (
	"fmt"
	"net/http"

	"github.com/bher20/wattscope/internal/auth"
	"github.com/bher20/wattscope/internal/billing"
)

func currentUserID(r *http.Request) string {
	u, _ := auth.UserFromContext(r.Context())
	return u.ID
}

// @Summary List saved usage, newest first
// @Tags bills
// @Security BearerAuth
// @Produce json
// @Success 200 {array} storage.UsageEvent
// @Router /api/v1/bills [get]
func (h *handlers) listBills(w http.ResponseWriter, r *http.Request) {
	events, err := h.Billing.ListUsage(r.Context(), currentUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// @Summary Save an appliance run
// @Tags bills
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body billing.UsageInput true "usage"
// @Success 201 {object} storage.UsageEvent
// @Failure 400 {object} errorResponse
// @Router /api/v1/bills [post]
func (h *handlers) saveBill(w http.ResponseWriter, r *http.Request) {
	var in billing.UsageInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	ev, err := h.Billing.SaveUsage(r.Context(), currentUserID(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// @Summary Delete a saved usage entry
// @Tags bills
// @Security BearerAuth
// @Param id path string true "usage event id"
// @Success 204
// @Failure 404 {object} errorResponse
// @Router /api/v1/bills/{id} [delete]
func (h *handlers) deleteBill(w http.ResponseWriter, r *http.Request) {
	if err := h.Billing.DeleteUsage(r.Context(), currentUserID(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Cumulative bill across saved usage
// @Tags bills
// @Security BearerAuth
// @Produce json
// @Success 200 {object} billing.Summary
// @Router /api/v1/bills/summary [get]
func (h *handlers) billSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Billing.Summary(r.Context(), currentUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// @Summary Download the statement
// @Tags bills
// @Security BearerAuth
// @Param format query string false "xlsx (default) or pdf"
// @Success 200 {file} file
// @Router /api/v1/bills/export [get]
func (h *handlers) exportBills(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	var (
		render      func(*billing.Statement) ([]byte, error)
		contentType string
	)
	switch format {
	case "xlsx":
		render, contentType = billing.ExportXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		render, contentType = billing.ExportPDF, "application/pdf"
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	st, err := h.Billing.Statement(r.Context(), currentUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := render(st)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=bill-%s.%s", st.Summary.GeneratedAt.Format("2006-01-02"), format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
