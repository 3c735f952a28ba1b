package httptransport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"annotation-service/internal/entity"
	"annotation-service/internal/service"
)

// reserved query parameters that are not result filters
var reservedParams = map[string]bool{"page": true, "page_size": true, "direction": true}

func filtersFrom(q url.Values) (service.Filters, error) {
	raw := map[string]string{}
	for key := range q {
		if reservedParams[key] {
			continue
		}
		raw[key] = q.Get(key)
	}
	return service.ParseFilters(raw)
}

func intParam(q url.Values, key string, def int) (int, bool) {
	v := q.Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// ListResults godoc
// @Summary List results of a task
// @Description Pages are 0-based. Any result field may be used as a filter; separate alternatives with ';'. counts covers all results of the task.
// @Tags results
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Param page query int false "page (0-based)"
// @Param page_size query int false "page size (default 100)"
// @Param status query string false "e.g. to_validate;done (encode ; as %3B)"
// @Success 200 {object} service.ResultPage
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /tasks/{task}/results [get]
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, ok := intParam(q, "page", 0)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid page")
		return
	}
	size, ok := intParam(q, "page_size", service.DefaultPageSize)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid page_size")
		return
	}
	filters, err := filtersFrom(q)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	out, err := h.results.List(r.Context(), chi.URLParam(r, "task"), page, size, filters)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetResult godoc
// @Summary Get the result of one item
// @Tags results
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Param dataID path string true "data item id"
// @Success 200 {object} entity.Result
// @Failure 404 {object} apiError
// @Router /tasks/{task}/results/{dataID} [get]
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.Get(r.Context(), chi.URLParam(r, "task"), chi.URLParam(r, "dataID"))
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type neighborResp struct {
	Found  bool           `json:"found"`
	Result *entity.Result `json:"result,omitempty"`
}

// NeighborResult godoc
// @Summary Find the next or previous matching result
// @Tags results
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Param dataID path string true "data item id to start from (excluded)"
// @Param direction query string false "next (default) | previous"
// @Success 200 {object} neighborResp
// @Failure 400 {object} apiError
// @Router /tasks/{task}/results/{dataID}/next [get]
func (h *Handler) NeighborResult(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := service.ParseDirection(q.Get("direction"))
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	filters, err := filtersFrom(q)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	res, found, err := h.results.Neighbor(r.Context(), chi.URLParam(r, "task"), chi.URLParam(r, "dataID"), filters, dir)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, neighborResp{Found: found, Result: res})
}

type bulkStatusDTO struct {
	DataIDs []string `json:"data_ids"`
	Status  *string  `json:"status,omitempty"`
}

type bulkStatusResp struct {
	Changed int `json:"changed"`
}

// BulkStatus godoc
// @Summary Unassign or move many results
// @Description Admin only. Without status every listed item is unassigned; with status each item not already there gets a fresh job at that status.
// @Tags results
// @Accept json
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Param request body bulkStatusDTO true "items"
// @Success 200 {object} bulkStatusResp
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /tasks/{task}/results/status [post]
func (h *Handler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var dto bulkStatusDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	var status *entity.Status
	if dto.Status != nil {
		s, ok := entity.ParseStatus(*dto.Status)
		if !ok {
			writeErr(w, http.StatusBadRequest, "unknown status")
			return
		}
		status = &s
	}
	n, err := h.results.BulkStatus(r.Context(), Caller(r.Context()), chi.URLParam(r, "task"), dto.DataIDs, status)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkStatusResp{Changed: n})
}

// GetLabel godoc
// @Summary Get the label of one item
// @Tags labels
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Param dataID path string true "data item id"
// @Success 200 {object} entity.Label
// @Failure 404 {object} apiError
// @Router /tasks/{task}/labels/{dataID} [get]
func (h *Handler) GetLabel(w http.ResponseWriter, r *http.Request) {
	label, err := h.labels.Get(r.Context(), chi.URLParam(r, "task"), chi.URLParam(r, "dataID"))
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

type putLabelDTO struct {
	Annotations json.RawMessage `json:"annotations"`
}

// PutLabel godoc
// @Summary Replace the annotations of one item
// @Tags labels
// @Accept json
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Param dataID path string true "data item id"
// @Param request body putLabelDTO true "annotations"
// @Success 200 {object} entity.Label
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /tasks/{task}/labels/{dataID} [put]
func (h *Handler) PutLabel(w http.ResponseWriter, r *http.Request) {
	var dto putLabelDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	label, err := h.labels.Put(r.Context(), Caller(r.Context()), chi.URLParam(r, "task"), chi.URLParam(r, "dataID"), dto.Annotations)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}
