package api

import (
	"net/http"

	"github.com/bher20/wattscope/internal/appliances"
	"github.com/bher20/wattscope/internal/auth"
	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/tariff"
)

// TariffDTO is a category with its slab table.
type TariffDTO struct {
	Category    tariff.Category `json:"category"`
	Description string          `json:"description"`
	Slabs       []tariff.Slab   `json:"slabs"`
}

func tariffDTO(t tariff.Table) TariffDTO {
	return TariffDTO{Category: t.Category, Description: t.Category.Description(), Slabs: t.Slabs}
}

// listTariffs lists the slab tables in use
// @Summary List tariff tables
// @Tags tariffs
// @Produce json
// @Success 200 {array} TariffDTO
// @Router /api/v1/tariffs [get]
func (h *handlers) listTariffs(w http.ResponseWriter, r *http.Request) {
	tables := h.Billing.Engine().Tables()
	out := make([]TariffDTO, 0, len(tariff.Categories()))
	for _, c := range tariff.Categories() {
		out = append(out, tariffDTO(tables.Table(c)))
	}
	writeJSON(w, http.StatusOK, out)
}

// getTariff returns one category's slab table
// @Summary Get a tariff table
// @Tags tariffs
// @Produce json
// @Param category path string true "LT-I, LT-II or an alias such as residential"
// @Success 200 {object} TariffDTO
// @Failure 404 {object} errorResponse
// @Router /api/v1/tariffs/{category} [get]
func (h *handlers) getTariff(w http.ResponseWriter, r *http.Request) {
	c, err := tariff.ParseCategory(r.PathValue("category"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tariffDTO(h.Billing.Engine().Tables().Table(c)))
}

// @Summary List appliances
// @Tags tariffs
// @Produce json
// @Success 200 {array} appliances.Appliance
// @Router /api/v1/appliances [get]
func (h *handlers) listAppliances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, appliances.All())
}

type unitsResponse struct {
	billing.Usage
	Units float64 `json:"units"`
}

// units converts an appliance run to kWh
// @Summary Units consumed by one appliance run
// @Tags calculator
// @Accept json
// @Produce json
// @Param body body billing.UsageInput true "usage"
// @Success 200 {object} unitsResponse
// @Failure 400 {object} errorResponse
// @Router /api/v1/units [post]
func (h *handlers) units(w http.ResponseWriter, r *http.Request) {
	var in billing.UsageInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := billing.Normalize(in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unitsResponse{
		Usage: u,
		Units: tariff.ComputeUnits(u.PowerWatts, float64(u.Hours), float64(u.Minutes)),
	})
}

type calculateRequest struct {
	billing.UsageInput
	Category string `json:"category,omitempty"`
}

// calculate prices a single appliance run
// @Summary Estimate the bill for one appliance run
// @Description The category comes from the signed-in user, else from the body.
// @Tags calculator
// @Accept json
// @Produce json
// @Param body body calculateRequest true "usage"
// @Success 200 {object} billing.Estimate
// @Failure 400 {object} errorResponse
// @Router /api/v1/calculate [post]
func (h *handlers) calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	var category tariff.Category
	if u, ok := auth.UserFromContext(r.Context()); ok {
		category = tariff.Category(u.Category)
	} else {
		if req.Category == "" {
			writeError(w, http.StatusBadRequest, "category is required")
			return
		}
		c, err := tariff.ParseCategory(req.Category)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		category = c
	}

	est, err := h.Billing.Calculate(r.Context(), req.UsageInput, category)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

type cumulativeRequest struct {
	TotalUnits float64 `json:"total_units"`
	Category   string  `json:"category"`
}

// cumulative prices a total consumption
// @Summary Price a total consumption
// @Tags calculator
// @Accept json
// @Produce json
// @Param body body cumulativeRequest true "units and category"
// @Success 200 {object} tariff.CumulativeBill
// @Failure 400 {object} errorResponse
// @Router /api/v1/cumulative [post]
func (h *handlers) cumulative(w http.ResponseWriter, r *http.Request) {
	var req cumulativeRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := tariff.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bill, err := h.Billing.Cumulative(req.TotalUnits, c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}
