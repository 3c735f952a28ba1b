package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"annotation-service/internal/entity"
	"annotation-service/internal/service"
)

type nextJobDTO struct {
	Objective string `json:"objective"`
}

type nextJobResp struct {
	Available bool        `json:"available"`
	Job       *entity.Job `json:"job,omitempty"`
}

// NextJob godoc
// @Summary Get the caller's next job
// @Description Resumes the caller's recorded job if it still exists, otherwise assigns the oldest open one. Asking for to_annotate also serves pending corrections first.
// @Tags jobs
// @Accept json
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Param request body nextJobDTO true "objective: to_annotate | to_validate"
// @Success 200 {object} nextJobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /tasks/{task}/jobs/next [post]
func (h *Handler) NextJob(w http.ResponseWriter, r *http.Request) {
	var dto nextJobDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	objective, ok := entity.ParseStatus(dto.Objective)
	if !ok {
		writeErr(w, http.StatusBadRequest, "unknown objective")
		return
	}
	job, ok, err := h.jobs.AssignNext(r.Context(), chi.URLParam(r, "task"), objective, Caller(r.Context()))
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nextJobResp{Available: ok, Job: job})
}

// GetJob godoc
// @Summary Get a job
// @Tags jobs
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Param id path string true "job id"
// @Success 200 {object} entity.Job
// @Failure 404 {object} apiError
// @Router /tasks/{task}/jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "task"), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type updateJobDTO struct {
	ID        string  `json:"id,omitempty"`
	Interrupt bool    `json:"interrupt,omitempty"`
	Status    *string `json:"status,omitempty"`
}

type updateJobResp struct {
	Job    *entity.Job    `json:"job"`
	Next   *entity.Job    `json:"next,omitempty"`
	Result *entity.Result `json:"result,omitempty"`
}

// UpdateJob godoc
// @Summary Pause or close a job
// @Description Set interrupt to pause the timer, or status to close the job. Only the holder may update; otherwise 410 is returned and the client should fetch a new job.
// @Tags jobs
// @Accept json
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Param id path string true "job id"
// @Param request body updateJobDTO true "update"
// @Success 200 {object} updateJobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 410 {object} apiError
// @Router /tasks/{task}/jobs/{id} [put]
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var dto updateJobDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	id := chi.URLParam(r, "id")
	if dto.ID != "" && dto.ID != id {
		writeErr(w, http.StatusBadRequest, "body id does not match path id")
		return
	}

	upd := service.JobUpdate{Interrupt: dto.Interrupt}
	if dto.Status != nil {
		status, ok := entity.ParseStatus(*dto.Status)
		if !ok {
			writeErr(w, http.StatusBadRequest, "unknown status")
			return
		}
		upd.Status = &status
	}

	out, err := h.jobs.UpdateJob(r.Context(), chi.URLParam(r, "task"), id, Caller(r.Context()), upd)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updateJobResp{Job: out.Job, Next: out.Next, Result: out.Result})
}
