package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"annotation-service/internal/entity"
	"annotation-service/internal/metrics"
	"annotation-service/internal/repository/pebbledb"
	"annotation-service/internal/service"
	httptransport "annotation-service/internal/transport/http"
)

// ---- fakes ----

type datasetStub struct{}

func (datasetStub) ResolveOrCreate(ctx context.Context, spec entity.DatasetSpec) (*entity.Dataset, []string, error) {
	if spec.Path != "images" {
		return nil, nil, errors.New("unknown dataset")
	}
	return &entity.Dataset{ID: "ds-images", Path: spec.Path, Size: 2}, []string{"a.jpg", "b.jpg"}, nil
}

func (datasetStub) Thumbnail(ctx context.Context, datasetID, dataID string) ([]byte, error) {
	return []byte(dataID), nil
}

func (datasetStub) Delete(ctx context.Context, datasetID string) error { return nil }

// ---- helpers ----

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	eng, err := pebbledb.OpenInMemory()
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	locker := service.NewLocalLocker()
	users := service.NewUserService(eng).WithCost(bcrypt.MinCost)
	if _, err := users.Create(context.Background(), "root", "pw", entity.RoleAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	h := httptransport.NewHandler(httptransport.Services{
		Tasks:   service.NewTaskService(eng, datasetStub{}, users, locker),
		Jobs:    service.NewJobService(eng, locker),
		Results: service.NewResultService(eng, datasetStub{}, users, locker),
		Labels:  service.NewLabelService(eng),
		Users:   users,
	}, nil)
	m := metrics.New()
	return httptransport.Routes(h, httptransport.RouterOptions{Metrics: m.Handler(), Observer: m, Swagger: true})
}

type call struct {
	router http.Handler
	t      *testing.T
}

func (c call) do(method, path, user, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(httptransport.UsernameHeader, user)
	}
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, req)
	return rr
}

func (c call) expect(rr *httptest.ResponseRecorder, code int) {
	c.t.Helper()
	if rr.Code != code {
		c.t.Fatalf("expected %d, got %d, body=%s", code, rr.Code, rr.Body.String())
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json: %v, body=%s", err, rr.Body.String())
	}
	return v
}

func setup(t *testing.T) call {
	c := call{router: newTestRouter(t), t: t}
	c.expect(c.do(http.MethodPost, "/users", "root", `{"username":"alice","password":"pw"}`), http.StatusCreated)
	c.expect(c.do(http.MethodPost, "/users", "root", `{"username":"bob","password":"pw"}`), http.StatusCreated)
	c.expect(c.do(http.MethodPost, "/tasks", "root", `{"name":"t1","dataset":{"path":"images"},"spec":{"data_type":"image","label_schema":{"classes":["cat"]}}}`), http.StatusCreated)
	return c
}

type jobEnvelope struct {
	Available bool       `json:"available"`
	Job       entity.Job `json:"job"`
}

// ---- tests ----

func TestHTTP_Health(t *testing.T) {
	c := call{router: newTestRouter(t), t: t}
	rr := c.do(http.MethodGet, "/health", "", "")
	c.expect(rr, http.StatusOK)
	if rr.Body.String() != "ok" {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestHTTP_MissingIdentity_401(t *testing.T) {
	c := call{router: newTestRouter(t), t: t}
	c.expect(c.do(http.MethodGet, "/tasks", "", ""), http.StatusUnauthorized)
}

func TestHTTP_Users(t *testing.T) {
	c := setup(t)
	c.expect(c.do(http.MethodPost, "/users", "alice", `{"username":"eve","password":"pw"}`), http.StatusForbidden)
	c.expect(c.do(http.MethodPost, "/users", "root", `{"username":"alice","password":"pw"}`), http.StatusConflict)
	c.expect(c.do(http.MethodPost, "/users", "root", `{"username":"eve","password":"pw","role":"wizard"}`), http.StatusBadRequest)

	rr := c.do(http.MethodGet, "/users/alice", "alice", "")
	c.expect(rr, http.StatusOK)
	if strings.Contains(rr.Body.String(), "password") {
		t.Fatalf("password leaked: %s", rr.Body.String())
	}
	c.expect(c.do(http.MethodGet, "/users/bob", "alice", ""), http.StatusForbidden)
	c.expect(c.do(http.MethodGet, "/users/bob", "root", ""), http.StatusOK)
}

func TestHTTP_Tasks(t *testing.T) {
	c := setup(t)
	c.expect(c.do(http.MethodPost, "/tasks", "root", `{"name":"t1","dataset":{"path":"images"},"spec":{"data_type":"image"}}`), http.StatusConflict)
	c.expect(c.do(http.MethodPost, "/tasks", "alice", `{"name":"t2","dataset":{"path":"images"},"spec":{"data_type":"image"}}`), http.StatusForbidden)
	c.expect(c.do(http.MethodPost, "/tasks", "root", `{"name":"bad:name","dataset":{"path":"images"},"spec":{"data_type":"image"}}`), http.StatusBadRequest)

	rr := c.do(http.MethodGet, "/tasks/t1", "alice", "")
	c.expect(rr, http.StatusOK)
	got := decode[map[string]any](t, rr)
	if got["ready"] != true || got["spec"] == nil {
		t.Fatalf("unexpected task: %v", got)
	}

	list := decode[[]entity.Task](t, c.do(http.MethodGet, "/tasks", "alice", ""))
	if len(list) != 1 || list[0].Name != "t1" {
		t.Fatalf("tasks = %+v", list)
	}

	c.expect(c.do(http.MethodDelete, "/tasks/t1", "alice", ""), http.StatusForbidden)
	c.expect(c.do(http.MethodDelete, "/tasks/t1", "root", ""), http.StatusNoContent)
	c.expect(c.do(http.MethodGet, "/tasks/t1", "root", ""), http.StatusNotFound)
}

func TestHTTP_JobFlow(t *testing.T) {
	c := setup(t)

	rr := c.do(http.MethodPost, "/tasks/t1/jobs/next", "alice", `{"objective":"to_annotate"}`)
	c.expect(rr, http.StatusOK)
	next := decode[jobEnvelope](t, rr)
	if !next.Available || next.Job.DataID != "a.jpg" {
		t.Fatalf("unexpected next job: %+v", next)
	}
	jobPath := "/tasks/t1/jobs/" + next.Job.ID

	c.expect(c.do(http.MethodGet, jobPath, "bob", ""), http.StatusOK)
	c.expect(c.do(http.MethodPut, jobPath, "bob", `{"status":"to_validate"}`), http.StatusGone)
	c.expect(c.do(http.MethodPut, jobPath, "alice", `{"id":"other","interrupt":true}`), http.StatusBadRequest)
	c.expect(c.do(http.MethodPut, jobPath, "alice", `{"status":"done"}`), http.StatusBadRequest)
	c.expect(c.do(http.MethodPut, jobPath, "alice", `{"status":"bogus"}`), http.StatusBadRequest)
	c.expect(c.do(http.MethodPut, jobPath, "alice", `{"interrupt":true}`), http.StatusOK)

	rr = c.do(http.MethodPut, jobPath, "alice", `{"id":"`+next.Job.ID+`","status":"to_validate"}`)
	c.expect(rr, http.StatusOK)
	out := decode[struct {
		Next   entity.Job    `json:"next"`
		Result entity.Result `json:"result"`
	}](t, rr)
	if out.Next.Objective != entity.StatusToValidate || out.Result.Status != entity.StatusToValidate {
		t.Fatalf("unexpected update response: %s", rr.Body.String())
	}
	c.expect(c.do(http.MethodGet, jobPath, "alice", ""), http.StatusNotFound)

	validation := decode[jobEnvelope](t, c.do(http.MethodPost, "/tasks/t1/jobs/next", "bob", `{"objective":"to_validate"}`))
	if !validation.Available || validation.Job.ID != out.Next.ID {
		t.Fatalf("expected bob to get %s, got %+v", out.Next.ID, validation)
	}
	none := decode[jobEnvelope](t, c.do(http.MethodPost, "/tasks/t1/jobs/next", "alice", `{"objective":"to_validate"}`))
	if none.Available {
		t.Fatalf("expected no job for alice, got %+v", none)
	}

	c.expect(c.do(http.MethodPost, "/tasks/t1/jobs/next", "alice", `{"objective":"sleep"}`), http.StatusBadRequest)
	c.expect(c.do(http.MethodPost, "/tasks/nope/jobs/next", "alice", `{"objective":"to_annotate"}`), http.StatusNotFound)
}

func TestHTTP_Results(t *testing.T) {
	c := setup(t)
	next := decode[jobEnvelope](t, c.do(http.MethodPost, "/tasks/t1/jobs/next", "alice", `{"objective":"to_annotate"}`))
	c.expect(c.do(http.MethodPut, "/tasks/t1/jobs/"+next.Job.ID, "alice", `{"status":"to_validate"}`), http.StatusOK)

	rr := c.do(http.MethodGet, "/tasks/t1/results?page_size=1&page=1", "alice", "")
	c.expect(rr, http.StatusOK)
	page := decode[service.ResultPage](t, rr)
	if page.Total != 2 || len(page.Items) != 1 || page.Items[0].DataID != "b.jpg" || string(page.Items[0].Thumbnail) != "b.jpg" {
		t.Fatalf("unexpected page: %+v", page)
	}

	page = decode[service.ResultPage](t, c.do(http.MethodGet, "/tasks/t1/results?status=to_validate%3Bdone", "alice", ""))
	if page.Total != 1 || page.Items[0].DataID != "a.jpg" {
		t.Fatalf("unexpected filtered page: %+v", page)
	}
	c.expect(c.do(http.MethodGet, "/tasks/t1/results?colour=red", "alice", ""), http.StatusBadRequest)
	c.expect(c.do(http.MethodGet, "/tasks/t1/results?page=x", "alice", ""), http.StatusBadRequest)

	res := decode[entity.Result](t, c.do(http.MethodGet, "/tasks/t1/results/a.jpg", "alice", ""))
	if len(res.FinishedJobIDs) != 1 || res.FinishedJobIDs[0] != next.Job.ID {
		t.Fatalf("unexpected result: %+v", res)
	}

	nb := decode[struct {
		Found  bool          `json:"found"`
		Result entity.Result `json:"result"`
	}](t, c.do(http.MethodGet, "/tasks/t1/results/b.jpg/next?direction=previous", "alice", ""))
	if !nb.Found || nb.Result.DataID != "a.jpg" {
		t.Fatalf("unexpected neighbour: %+v", nb)
	}
	nb2 := decode[map[string]any](t, c.do(http.MethodGet, "/tasks/t1/results/b.jpg/next", "alice", ""))
	if nb2["found"] != false {
		t.Fatalf("expected nothing after the last item: %v", nb2)
	}
	c.expect(c.do(http.MethodGet, "/tasks/t1/results/a.jpg/next?direction=sideways", "alice", ""), http.StatusBadRequest)

	c.expect(c.do(http.MethodPost, "/tasks/t1/results/status", "alice", `{"data_ids":["a.jpg"]}`), http.StatusForbidden)
	rr = c.do(http.MethodPost, "/tasks/t1/results/status", "root", `{"data_ids":["a.jpg","b.jpg"],"status":"done"}`)
	c.expect(rr, http.StatusOK)
	if got := decode[map[string]int](t, rr); got["changed"] != 2 {
		t.Fatalf("changed = %v", got)
	}
}

func TestHTTP_Labels(t *testing.T) {
	c := setup(t)

	label := decode[entity.Label](t, c.do(http.MethodGet, "/tasks/t1/labels/a.jpg", "alice", ""))
	if string(label.Annotations) != "[]" {
		t.Fatalf("annotations = %s", label.Annotations)
	}
	c.expect(c.do(http.MethodPut, "/tasks/t1/labels/a.jpg", "alice", `{"annotations":[{"class":"cat"}]}`), http.StatusOK)
	label = decode[entity.Label](t, c.do(http.MethodGet, "/tasks/t1/labels/a.jpg", "alice", ""))
	if string(label.Annotations) != `[{"class":"cat"}]` {
		t.Fatalf("annotations = %s", label.Annotations)
	}
	c.expect(c.do(http.MethodPut, "/tasks/t1/labels/zzz.jpg", "alice", `{"annotations":[]}`), http.StatusNotFound)
	c.expect(c.do(http.MethodPut, "/tasks/t1/labels/a.jpg", "alice", `{"annotations":[],"extra":1}`), http.StatusBadRequest)
}

func TestHTTP_MetricsAndSwagger(t *testing.T) {
	c := setup(t)
	c.do(http.MethodPost, "/tasks/t1/jobs/next", "alice", `{"objective":"to_annotate"}`)

	rr := c.do(http.MethodGet, "/metrics", "", "")
	c.expect(rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `route="/tasks/{task}/jobs/next"`) {
		t.Fatalf("expected route label in metrics output")
	}

	rr = c.do(http.MethodGet, "/swagger/doc.json", "", "")
	c.expect(rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "/tasks/{task}/jobs/next") {
		t.Fatalf("swagger doc missing paths")
	}
}
