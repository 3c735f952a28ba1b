package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"annotation-service/internal/entity"
	"annotation-service/internal/service"
)

type Handler struct {
	tasks   *service.TaskService
	jobs    *service.JobService
	results *service.ResultService
	labels  *service.LabelService
	users   *service.UserService
	logger  *slog.Logger
}

// Services bundles the domain services served over HTTP.
type Services struct {
	Tasks   *service.TaskService
	Jobs    *service.JobService
	Results *service.ResultService
	Labels  *service.LabelService
	Users   *service.UserService
}

func NewHandler(svc Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		tasks:   svc.Tasks,
		jobs:    svc.Jobs,
		results: svc.Results,
		labels:  svc.Labels,
		users:   svc.Users,
		logger:  logger,
	}
}

type createUserDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type userResp struct {
	Username         string            `json:"username"`
	Role             entity.UserRole   `json:"role"`
	LastAssignedJobs map[string]string `json:"last_assigned_jobs"`
}

func toUserResp(u *entity.User) userResp {
	return userResp{Username: u.Username, Role: u.Role, LastAssignedJobs: u.LastAssignedJobs}
}

// CreateUser godoc
// @Summary Create a user
// @Description Admin only. Password is stored as a bcrypt hash.
// @Tags users
// @Accept json
// @Produce json
// @Param X-Username header string true "caller"
// @Param request body createUserDTO true "user"
// @Success 201 {object} userResp
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 409 {object} apiError
// @Router /users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var dto createUserDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	role, err := service.ParseRole(dto.Role)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	u, err := h.users.Register(r.Context(), Caller(r.Context()), dto.Username, dto.Password, role)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResp(u))
}

// GetUser godoc
// @Summary Get a user
// @Description Users may read themselves; admins may read anyone.
// @Tags users
// @Produce json
// @Param X-Username header string true "caller"
// @Param username path string true "username"
// @Success 200 {object} userResp
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /users/{username} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller := Caller(r.Context())
	username := chi.URLParam(r, "username")
	if username != caller {
		admin, err := h.users.IsAdmin(r.Context(), caller)
		if err != nil {
			writeServiceErr(w, r, h.logger, err)
			return
		}
		if !admin {
			writeServiceErr(w, r, h.logger, service.ErrForbidden)
			return
		}
	}
	u, err := h.users.Get(r.Context(), username)
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResp(u))
}

type createTaskDTO struct {
	Name    string `json:"name"`
	Dataset struct {
		Path string `json:"path"`
	} `json:"dataset"`
	Spec struct {
		DataType    string          `json:"data_type"`
		LabelSchema json.RawMessage `json:"label_schema,omitempty"`
	} `json:"spec"`
}

// CreateTask godoc
// @Summary Create a task
// @Description Admin only. Creates one to_annotate job, result and empty label per data item of the dataset. Re-posting an unfinished task resumes it.
// @Tags tasks
// @Accept json
// @Produce json
// @Param X-Username header string true "caller"
// @Param request body createTaskDTO true "task"
// @Success 201 {object} entity.Task
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 409 {object} apiError
// @Router /tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var dto createTaskDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	task, err := h.tasks.Create(r.Context(), Caller(r.Context()), service.CreateTaskRequest{
		Name:    dto.Name,
		Dataset: entity.DatasetSpec{Path: dto.Dataset.Path},
		Spec:    service.SpecRequest{DataType: dto.Spec.DataType, LabelSchema: dto.Spec.LabelSchema},
	})
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks godoc
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Param X-Username header string true "caller"
// @Success 200 {array} entity.Task
// @Router /tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type taskResp struct {
	entity.Task
	Spec *entity.Spec `json:"spec,omitempty"`
}

// GetTask godoc
// @Summary Get a task and its spec
// @Tags tasks
// @Produce json
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Success 200 {object} taskResp
// @Failure 404 {object} apiError
// @Router /tasks/{task} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), chi.URLParam(r, "task"))
	if err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	resp := taskResp{Task: *task}
	if spec, err := h.tasks.Spec(r.Context(), task.SpecID); err == nil {
		resp.Spec = spec
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteTask godoc
// @Summary Delete a task
// @Description Admin only. Removes jobs, results, labels and user queue entries of the task.
// @Tags tasks
// @Param X-Username header string true "caller"
// @Param task path string true "task name"
// @Success 204
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /tasks/{task} [delete]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Delete(r.Context(), Caller(r.Context()), chi.URLParam(r, "task")); err != nil {
		writeServiceErr(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
