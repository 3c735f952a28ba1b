package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "annotation-service/internal/transport/http/docs"
)

// RouterOptions wires optional endpoints.
type RouterOptions struct {
	Metrics  http.Handler
	Observer RequestObserver
	Swagger  bool
}

func Routes(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.logger, opts.Observer))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Swagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Post("/users", h.CreateUser)
		r.Get("/users/{username}", h.GetUser)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", h.CreateTask)
			r.Get("/", h.ListTasks)

			r.Route("/{task}", func(r chi.Router) {
				r.Get("/", h.GetTask)
				r.Delete("/", h.DeleteTask)

				r.Post("/jobs/next", h.NextJob)
				r.Get("/jobs/{id}", h.GetJob)
				r.Put("/jobs/{id}", h.UpdateJob)

				r.Get("/results", h.ListResults)
				r.Post("/results/status", h.BulkStatus)
				r.Get("/results/{dataID}", h.GetResult)
				r.Get("/results/{dataID}/next", h.NeighborResult)

				r.Get("/labels/{dataID}", h.GetLabel)
				r.Put("/labels/{dataID}", h.PutLabel)
			})
		})
	})

	return r
}
