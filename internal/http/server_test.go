package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/example/washops/backend/internal/appstate"
	"github.com/example/washops/backend/internal/backend"
	"github.com/example/washops/backend/internal/backend/backendtest"
	"github.com/example/washops/backend/internal/db"
	"github.com/example/washops/backend/internal/export"
	"github.com/example/washops/backend/internal/jobwizard"
	"github.com/example/washops/backend/internal/lifecycle"
	"github.com/example/washops/backend/internal/models"
	"github.com/example/washops/backend/internal/onboarding"
	"github.com/example/washops/backend/internal/repository"
	"github.com/example/washops/backend/internal/service"
)

type testAPI struct {
	t       *testing.T
	engine  *gin.Engine
	backend *backendtest.Server
	session string
}

func newTestAPI(t *testing.T, allowCancel bool) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.New("file:"+t.Name()+"?mode=memory&cache=shared", false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	fake := backendtest.New()
	t.Cleanup(fake.Close)

	console := service.NewConsoleService(
		appstate.NewStore(repository.NewSessionRepository(gdb)),
		repository.NewJobEventRepository(gdb),
		backend.NewClient(fake.URL, 2*time.Second),
		nil,
		service.Options{Instance: "test", SearchDebounce: time.Millisecond, AllowCancel: allowCancel, IdleTTL: time.Hour},
	)
	return &testAPI{t: t, engine: NewServer(console).Engine, backend: fake}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a.session != "" {
		req.Header.Set(SessionHeader, a.session)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

// expect performs a request, checks the status and decodes the body into out.
func (a *testAPI) expect(status int, method, path string, body, out any) {
	a.t.Helper()
	rec := a.do(method, path, body)
	if rec.Code != status {
		a.t.Fatalf("%s %s: expected %d, got %d: %s", method, path, status, rec.Code, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %s: %v", method, path, rec.Body.String(), err)
		}
	}
}

func (a *testAPI) login() {
	a.t.Helper()
	var resp struct {
		Session models.ConsoleSession `json:"session"`
	}
	a.expect(http.StatusCreated, http.MethodPost, "/api/session", gin.H{"user_id": 7, "shop_id": 1, "access_token": "tok"}, &resp)
	a.session = resp.Session.ID.String()
}

type errorBody struct {
	Error      string            `json:"error"`
	Violations map[string]string `json:"violations"`
}

type onboardingResp struct {
	ID     uuid.UUID           `json:"id"`
	Row    uuid.UUID           `json:"row"`
	State  onboarding.State    `json:"state"`
	Result *onboarding.Outcome `json:"result"`
}

type jobWizardResp struct {
	ID     uuid.UUID          `json:"id"`
	State  jobwizard.State    `json:"state"`
	Result *jobwizard.Outcome `json:"result"`
}

func TestSessionIsRequired(t *testing.T) {
	api := newTestAPI(t, false)

	api.expect(http.StatusUnauthorized, http.MethodGet, "/api/jobs", nil, nil)
	api.session = uuid.NewString()
	api.expect(http.StatusUnauthorized, http.MethodGet, "/api/jobs", nil, nil)
	api.session = ""
	api.expect(http.StatusBadRequest, http.MethodPost, "/api/session", gin.H{"user_id": 7}, nil)

	api.login()
	var current struct {
		Session             models.ConsoleSession `json:"session"`
		CancellationEnabled bool                  `json:"cancellationEnabled"`
	}
	api.expect(http.StatusOK, http.MethodGet, "/api/session", nil, &current)
	if current.Session.UserID != 7 || current.CancellationEnabled {
		t.Fatalf("unexpected session %+v", current)
	}
	api.expect(http.StatusOK, http.MethodPatch, "/api/session/notifications", gin.H{"count": 3}, nil)
	api.expect(http.StatusNoContent, http.MethodDelete, "/api/session", nil, nil)
	api.expect(http.StatusUnauthorized, http.MethodGet, "/api/session", nil, nil)
}

func TestIndividualOnboardingOverHTTP(t *testing.T) {
	api := newTestAPI(t, false)
	api.login()

	var ob onboardingResp
	api.expect(http.StatusCreated, http.MethodPost, "/api/onboarding", gin.H{"mode": "new"}, &ob)
	if len(ob.State.Makes) != 2 || ob.State.CurrentStep != 0 {
		t.Fatalf("unexpected initial state %+v", ob.State)
	}
	base := "/api/onboarding/" + ob.ID.String()

	api.expect(http.StatusConflict, http.MethodPost, base+"/goto", gin.H{"step": 3}, nil)

	api.expect(http.StatusOK, http.MethodPut, base+"/steps/account", gin.H{"account_type": "INDIVIDUAL"}, nil)
	api.expect(http.StatusOK, http.MethodPost, base+"/next", nil, nil)

	var invalid errorBody
	api.expect(http.StatusUnprocessableEntity, http.MethodPost, base+"/next", nil, &invalid)
	if invalid.Violations["first_name"] == "" || invalid.Violations["phone_number"] == "" {
		t.Fatalf("expected customer violations, got %+v", invalid)
	}
	api.expect(http.StatusUnprocessableEntity, http.MethodPut, base+"/steps/customer", "{not json", nil)

	steps := []struct {
		key  string
		form gin.H
	}{
		{"customer", gin.H{"first_name": " Jane ", "last_name": "Roe", "phone_number": "0911222333"}},
		{"carType", gin.H{"car_type": "SEDAN"}},
		{"carMake", gin.H{"car_make": backendtest.MakeToyota}},
		{"carDetails", gin.H{"car_model": backendtest.ModelCorolla, "year": 2019}},
		{"license", gin.H{"plate_number": "AB-77777"}},
	}
	for _, s := range steps {
		var set struct {
			Violations map[string]string `json:"violations"`
		}
		api.expect(http.StatusOK, http.MethodPut, base+"/steps/"+s.key, s.form, &set)
		if len(set.Violations) != 0 {
			t.Fatalf("step %s still invalid: %v", s.key, set.Violations)
		}
		api.expect(http.StatusOK, http.MethodPost, base+"/next", nil, nil)
	}

	var done onboardingResp
	api.expect(http.StatusOK, http.MethodPost, base+"/submit", nil, &done)
	if done.Result == nil || done.Result.Redirect != fmt.Sprintf("/customers/%d", done.Result.CustomerID) {
		t.Fatalf("unexpected outcome %+v", done.Result)
	}
	created, ok := api.backend.Customer(done.Result.CustomerID)
	if !ok || created.FirstName != "Jane" {
		t.Fatalf("customer not created as expected: %+v", created)
	}
	api.expect(http.StatusConflict, http.MethodPost, base+"/submit", nil, nil)
	if got := api.backend.Calls("POST /customers/onboard_individual/"); got != 1 {
		t.Fatalf("expected a single create call, got %d", got)
	}

	api.expect(http.StatusNoContent, http.MethodDelete, base, nil, nil)
	api.expect(http.StatusNotFound, http.MethodGet, base, nil, nil)
}

func TestBackendRejectionKeepsWizardForRetry(t *testing.T) {
	api := newTestAPI(t, false)
	api.login()

	var ob onboardingResp
	api.expect(http.StatusCreated, http.MethodPost, "/api/onboarding", gin.H{"mode": "add-vehicle", "customer_id": backendtest.CustomerJane}, &ob)
	base := "/api/onboarding/" + ob.ID.String()

	api.expect(http.StatusOK, http.MethodPut, base+"/steps/carType", gin.H{"car_type": "SUV"}, nil)
	api.expect(http.StatusOK, http.MethodPut, base+"/steps/carMake", gin.H{"car_make_text": "Lada"}, nil)
	api.expect(http.StatusOK, http.MethodPut, base+"/steps/carDetails", gin.H{"car_model_text": "Niva"}, nil)
	api.expect(http.StatusOK, http.MethodPut, base+"/steps/license", gin.H{"plate_number": "AA-12345"}, nil)

	var rejected errorBody
	api.expect(http.StatusBadGateway, http.MethodPost, base+"/submit", nil, &rejected)
	if rejected.Error != "Plate number already exists" {
		t.Fatalf("backend detail must surface, got %q", rejected.Error)
	}
	var state onboardingResp
	api.expect(http.StatusOK, http.MethodGet, base, nil, &state)
	if state.State.Draft.License.PlateNumber != "AA-12345" || state.State.Error == "" {
		t.Fatalf("draft must be kept with the error: %+v", state.State)
	}

	api.expect(http.StatusOK, http.MethodPut, base+"/steps/license", gin.H{"plate_number": "AA-99999"}, nil)
	var done onboardingResp
	api.expect(http.StatusOK, http.MethodPost, base+"/submit", nil, &done)
	if done.Result == nil || done.Result.Car == nil || done.Result.Car.PlateNumber != "AA-99999" {
		t.Fatalf("unexpected outcome %+v", done.Result)
	}
}

func TestEditModeLocksAccountType(t *testing.T) {
	api := newTestAPI(t, false)
	api.login()

	var ob onboardingResp
	api.expect(http.StatusCreated, http.MethodPost, "/api/onboarding", gin.H{"mode": "edit", "customer_id": backendtest.CustomerJane}, &ob)
	if !ob.State.AccountTypeLocked || ob.State.Draft.Customer.FirstName != "Jane" {
		t.Fatalf("edit mode must prefill and lock: %+v", ob.State)
	}
	base := "/api/onboarding/" + ob.ID.String()
	api.expect(http.StatusConflict, http.MethodPut, base+"/steps/account", gin.H{"account_type": "CORPORATE"}, nil)

	api.expect(http.StatusNotFound, http.MethodPost, "/api/onboarding", gin.H{"mode": "edit", "customer_id": 999}, nil)
}

func TestCorporateFleetRowsOverHTTP(t *testing.T) {
	api := newTestAPI(t, false)
	api.login()

	var ob onboardingResp
	api.expect(http.StatusCreated, http.MethodPost, "/api/onboarding", gin.H{"mode": "new"}, &ob)
	base := "/api/onboarding/" + ob.ID.String()
	api.expect(http.StatusOK, http.MethodPut, base+"/steps/account", gin.H{"account_type": "CORPORATE"}, nil)
	api.expect(http.StatusOK, http.MethodPut, base+"/steps/customer", gin.H{"company_name": "Blue Nile Logistics", "phone_number": "0116000000"}, nil)

	var state onboardingResp
	api.expect(http.StatusOK, http.MethodGet, base, nil, &state)
	if len(state.State.Draft.Fleet) != 1 {
		t.Fatalf("fleet must start with one row, got %d", len(state.State.Draft.Fleet))
	}
	first := state.State.Draft.Fleet[0].ID
	api.expect(http.StatusConflict, http.MethodDelete, base+"/cars/"+first.String(), nil, nil)

	var added onboardingResp
	api.expect(http.StatusCreated, http.MethodPost, base+"/cars", nil, &added)
	second := added.Row

	var withModels struct {
		Models []models.CarModel `json:"models"`
	}
	api.expect(http.StatusOK, http.MethodPost, base+"/cars/"+second.String()+"/make", gin.H{"make_id": backendtest.MakeIsuzu}, &withModels)
	if len(withModels.Models) != 1 || withModels.Models[0].Name != "D-Max" {
		t.Fatalf("row must load its own models, got %+v", withModels.Models)
	}

	api.expect(http.StatusOK, http.MethodPut, base+"/cars/"+first.String(), gin.H{"make_text": "Toyota", "model_text": "Hilux", "plate_number": "CD-1"}, nil)
	api.expect(http.StatusOK, http.MethodPut, base+"/cars/"+second.String(), gin.H{"make": backendtest.MakeIsuzu, "model": 20, "plate_number": "CD-2"}, nil)
	api.expect(http.StatusNotFound, http.MethodPut, base+"/cars/"+uuid.NewString(), gin.H{"plate_number": "X"}, nil)
	api.expect(http.StatusBadRequest, http.MethodDelete, base+"/cars/not-a-uuid", nil, nil)

	api.expect(http.StatusOK, http.MethodPost, base+"/next", nil, nil)
	api.expect(http.StatusOK, http.MethodPost, base+"/next", nil, nil)
	var done onboardingResp
	api.expect(http.StatusOK, http.MethodPost, base+"/submit", nil, &done)
	created, _ := api.backend.Customer(done.Result.CustomerID)
	if !created.IsCorporate || created.CompanyName != "Blue Nile Logistics" {
		t.Fatalf("unexpected corporate customer %+v", created)
	}
}

func TestJobWizardAndLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, false)
	api.login()

	var jw jobWizardResp
	api.expect(http.StatusCreated, http.MethodPost, "/api/job-wizards", nil, &jw)
	base := "/api/job-wizards/" + jw.ID.String()

	var search struct {
		Results []models.Customer `json:"results"`
	}
	api.expect(http.StatusOK, http.MethodGet, base+"/search?q=J", nil, &search)
	if len(search.Results) != 0 || api.backend.Calls("GET /customers/search/") != 0 {
		t.Fatalf("short queries must not search")
	}
	api.expect(http.StatusOK, http.MethodGet, base+"/search?q=Jane", nil, &search)
	if len(search.Results) != 1 || search.Results[0].ID != backendtest.CustomerJane {
		t.Fatalf("unexpected results %+v", search.Results)
	}

	api.expect(http.StatusOK, http.MethodPost, base+"/customer", search.Results[0], nil)
	api.expect(http.StatusOK, http.MethodPost, base+"/next", nil, &jw)
	if jw.State.Step != jobwizard.StepVehicle || len(jw.State.Cars) != 1 {
		t.Fatalf("unexpected vehicle step %+v", jw.State)
	}
	api.expect(http.StatusUnprocessableEntity, http.MethodPost, base+"/next", nil, nil)
	api.expect(http.StatusNotFound, http.MethodPost, base+"/car", gin.H{"car_id": 9999}, nil)
	api.expect(http.StatusOK, http.MethodPost, base+"/car", gin.H{"car_id": backendtest.CarJaneCorolla}, nil)
	api.expect(http.StatusOK, http.MethodPost, base+"/next", nil, &jw)
	if jw.State.Step != jobwizard.StepServices || len(jw.State.Services) != 2 {
		t.Fatalf("services step must offer active services only: %+v", jw.State.Services)
	}

	api.expect(http.StatusUnprocessableEntity, http.MethodPost, base+"/submit", nil, nil)
	api.expect(http.StatusNotFound, http.MethodPost, fmt.Sprintf("%s/services/%d/toggle", base, backendtest.ServiceEngine), nil, nil)
	api.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("%s/services/%d/toggle", base, backendtest.ServiceExterior), nil, nil)
	api.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("%s/services/%d/toggle", base, backendtest.ServiceInterior), nil, &jw)
	if !jw.State.Total.Equal(decimal.RequireFromString("800.25")) {
		t.Fatalf("unexpected total %s", jw.State.Total)
	}

	var created jobWizardResp
	api.expect(http.StatusCreated, http.MethodPost, base+"/submit", nil, &created)
	job := created.Result.Job
	if created.Result.Redirect != fmt.Sprintf("/operations/%d", job.ID) || len(job.Items) != 2 {
		t.Fatalf("unexpected outcome %+v", created.Result)
	}
	api.expect(http.StatusConflict, http.MethodPost, base+"/submit", nil, nil)

	jobPath := fmt.Sprintf("/api/jobs/%d", job.ID)
	var st lifecycle.State
	api.expect(http.StatusOK, http.MethodGet, jobPath, nil, &st)
	if len(st.Actions) != 1 || st.Actions[0].Action != lifecycle.ActionStart || st.CanCancel {
		t.Fatalf("pending job must offer start only: %+v", st.Actions)
	}

	api.expect(http.StatusOK, http.MethodPost, jobPath+"/start", nil, &st)
	if st.Job.Status != models.JobStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", st.Job.Status)
	}
	api.expect(http.StatusConflict, http.MethodPost, jobPath+"/start", nil, nil)
	if got := api.backend.Calls("PATCH /jobs/:id/"); got != 1 {
		t.Fatalf("rejected start must not reach the backend, got %d patches", got)
	}

	itemID := job.Items[0].ID
	api.expect(http.StatusUnprocessableEntity, http.MethodPost, fmt.Sprintf("%s/items/%d/tasks", jobPath, itemID), gin.H{"staff_id": 0}, nil)
	api.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("%s/items/%d/tasks", jobPath, itemID), gin.H{"staff_id": backendtest.StaffKebede}, &st)
	item, _ := st.Job.Item(itemID)
	if len(item.Tasks) != 1 || item.Tasks[0].TaskName != "Exterior Wash" {
		t.Fatalf("task must be named after the service: %+v", item.Tasks)
	}
	taskID := item.Tasks[0].ID
	if view := st.TaskActions[taskID]; !view.CanStart || view.CanComplete {
		t.Fatalf("pending task actions %+v", view)
	}
	api.expect(http.StatusConflict, http.MethodPost, fmt.Sprintf("%s/tasks/%d/complete", jobPath, taskID), nil, nil)
	api.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("%s/tasks/%d/start", jobPath, taskID), nil, nil)
	api.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("%s/tasks/%d/complete", jobPath, taskID), nil, &st)
	if _, task, _ := st.Job.Task(taskID); task.Status != models.TaskStatusDone {
		t.Fatalf("task must be done, got %s", task.Status)
	}

	api.expect(http.StatusOK, http.MethodPost, jobPath+"/items", gin.H{"service_id": backendtest.ServiceExterior}, &st)
	if len(st.Job.Items) != 3 || !st.Total.Equal(decimal.RequireFromString("1050.25")) {
		t.Fatalf("unexpected items after add: %d total %s", len(st.Job.Items), st.Total)
	}

	api.expect(http.StatusConflict, http.MethodGet, jobPath+"/qc-checklist", nil, nil)
	api.expect(http.StatusOK, http.MethodPost, jobPath+"/send-to-qc", nil, nil)
	var checklist struct {
		Items []models.QCChecklistEntry `json:"items"`
	}
	api.expect(http.StatusOK, http.MethodGet, jobPath+"/qc-checklist", nil, &checklist)
	if len(checklist.Items) != 2 {
		t.Fatalf("expected 2 checklist rows, got %d", len(checklist.Items))
	}
	api.expect(http.StatusOK, http.MethodPost, jobPath+"/qc-checklist", gin.H{"updates": []gin.H{{"id": checklist.Items[0].ID, "checked": true}}}, &checklist)
	if !checklist.Items[0].Checked {
		t.Fatalf("checklist update must be applied")
	}

	var payErr errorBody
	api.expect(http.StatusUnprocessableEntity, http.MethodPost, jobPath+"/complete", gin.H{"payment_method": "CARD"}, &payErr)
	api.expect(http.StatusOK, http.MethodPost, jobPath+"/complete", gin.H{"payment_method": "CARD", "transaction_reference": "TX-42", "status": "PAID"}, &st)
	if st.Job.Status != models.JobStatusPaid || st.Job.TransactionReference != "TX-42" || !st.Terminal || len(st.Actions) != 0 {
		t.Fatalf("unexpected paid state %+v", st)
	}
	api.expect(http.StatusForbidden, http.MethodPost, jobPath+"/cancel", nil, nil)
	api.expect(http.StatusConflict, http.MethodPost, jobPath+"/items", gin.H{"service_id": backendtest.ServiceExterior}, nil)

	var events []models.JobEvent
	api.expect(http.StatusOK, http.MethodGet, jobPath+"/events", nil, &events)
	kinds := make([]models.JobEventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	want := []models.JobEventKind{
		models.JobEventStatusChanged,
		models.JobEventTaskAssigned,
		models.JobEventTaskStarted,
		models.JobEventTaskCompleted,
		models.JobEventItemAdded,
		models.JobEventStatusChanged,
		models.JobEventStatusChanged,
	}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected journal %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected journal %v", kinds)
		}
	}
}

func TestCancelWhenEnabled(t *testing.T) {
	api := newTestAPI(t, true)
	api.login()
	api.backend.PutJob(models.Job{ID: 77, Status: models.JobStatusQC})

	var st lifecycle.State
	api.expect(http.StatusOK, http.MethodGet, "/api/jobs/77", nil, &st)
	if !st.CanCancel {
		t.Fatalf("cancel must be offered when enabled")
	}
	for _, a := range st.Actions {
		if a.Action != lifecycle.ActionComplete {
			t.Fatalf("cancel must not be a primary action: %+v", st.Actions)
		}
	}
	api.expect(http.StatusOK, http.MethodPost, "/api/jobs/77/cancel", nil, &st)
	if st.Job.Status != models.JobStatusCancelled || st.CanCancel {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestJobListAndExport(t *testing.T) {
	api := newTestAPI(t, false)
	api.login()
	now := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	api.backend.PutJob(models.Job{ID: 1, Status: models.JobStatusPaid, CreatedAt: now, Customer: models.Customer{ID: 42, FirstName: "Jane", LastName: "Doe"},
		Items: []models.JobItem{{ID: 1, Service: models.Service{Name: "Exterior Wash"}, Price: decimal.NewFromInt(250)}}})
	api.backend.PutJob(models.Job{ID: 2, Status: models.JobStatusPending, CreatedAt: now.Add(time.Hour)})

	var jobs []models.Job
	api.expect(http.StatusOK, http.MethodGet, "/api/jobs?status=PAID", nil, &jobs)
	if len(jobs) != 1 || jobs[0].ID != 1 {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	api.expect(http.StatusBadRequest, http.MethodGet, "/api/jobs?customer=abc", nil, nil)

	rec := api.do(http.MethodGet, "/api/jobs/export?status=PAID", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != export.ContentType {
		t.Fatalf("export: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 || rows[1][2] != "Jane Doe" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestReferenceDataAndBackendErrors(t *testing.T) {
	api := newTestAPI(t, false)
	api.login()

	var staff []models.Staff
	api.expect(http.StatusOK, http.MethodGet, "/api/reference/staff", nil, &staff)
	if len(staff) != 1 || staff[0].ID != backendtest.StaffKebede {
		t.Fatalf("only active staff expected, got %+v", staff)
	}
	var carModels []models.CarModel
	api.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/reference/car-makes/%d/models", backendtest.MakeToyota), nil, &carModels)
	if len(carModels) != 2 {
		t.Fatalf("unexpected models %+v", carModels)
	}

	api.backend.FailNext("GET /services/", http.StatusServiceUnavailable, "maintenance")
	var failure errorBody
	api.expect(http.StatusBadGateway, http.MethodGet, "/api/reference/services", nil, &failure)
	if failure.Error != "maintenance" {
		t.Fatalf("unexpected error %q", failure.Error)
	}
	api.expect(http.StatusNotFound, http.MethodGet, "/api/jobs/555", nil, nil)
	api.expect(http.StatusBadRequest, http.MethodGet, "/api/jobs/abc", nil, nil)
}
