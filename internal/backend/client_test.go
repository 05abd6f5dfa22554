package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/example/washops/backend/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second)
}

func TestListUnwrapsPaginationEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/search/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "jane" || r.URL.Query().Get("type") != "all" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"count":1,"next":null,"results":[{"id":7,"first_name":"Jane","phone_number":"0911"}]}`))
	})

	got, err := c.SearchCustomers(context.Background(), "jane")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != 7 || got[0].FirstName != "Jane" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestListAcceptsBareArrays(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"Toyota"},{"id":2,"name":"Isuzu"}]`))
	})
	makes, err := c.CarMakes(context.Background())
	if err != nil {
		t.Fatalf("car makes: %v", err)
	}
	if len(makes) != 2 || makes[1].Name != "Isuzu" {
		t.Fatalf("unexpected makes %+v", makes)
	}
}

func TestActiveServicesDropsInactiveEntries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"id":1,"name":"Wash","price":"250.00","is_active":true},
			{"id":2,"name":"Retired","price":"90.00","is_active":false}
		]}`))
	})
	list, err := c.ActiveServices(context.Background())
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	if len(list) != 1 || list[0].ID != 1 || list[0].Price.String() != "250" {
		t.Fatalf("unexpected services %+v", list)
	}
}

func TestErrorStatusesCarryBackendDetail(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail field", http.StatusBadRequest, `{"detail":"Plate number already exists"}`, "Plate number already exists"},
		{"error field", http.StatusConflict, `{"error":"job is closed"}`, "job is closed"},
		{"no body", http.StatusNotFound, ``, "Not Found"},
		{"redirect", http.StatusFound, `<html></html>`, "Found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.GetJob(context.Background(), 5)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Fatalf("status %d", apiErr.StatusCode)
			}
			if got := Detail(err, "fallback"); got != tc.want {
				t.Fatalf("detail %q want %q", got, tc.want)
			}
		})
	}
}

func TestDetailFallsBackForTransportErrors(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.GetJob(context.Background(), 1)
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if got := Detail(err, "Failed to load job"); got != "Failed to load job" {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestWithTokenSendsBearerAndLeavesOriginalAnonymous(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})
	authed := c.WithToken("tok-1")
	if _, err := authed.ActiveStaff(context.Background()); err != nil {
		t.Fatalf("staff: %v", err)
	}
	if _, err := c.ActiveStaff(context.Background()); err != nil {
		t.Fatalf("staff: %v", err)
	}
	if len(seen) != 2 || seen[0] != "Bearer tok-1" || seen[1] != "" {
		t.Fatalf("unexpected authorization headers %q", seen)
	}
}

func TestUpdateJobSendsPatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/jobs/9/" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var patch models.JobPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Errorf("decode: %v", err)
		}
		if patch.Status != models.JobStatusPaid || patch.PaymentMethod != models.PaymentCard || patch.TransactionReference != "TX-1" {
			t.Errorf("unexpected patch %+v", patch)
		}
		_, _ = w.Write([]byte(`{"id":9,"status":"PAID","payment_method":"CARD","transaction_reference":"TX-1"}`))
	})
	job, err := c.UpdateJob(context.Background(), 9, models.JobPatch{
		Status:               models.JobStatusPaid,
		PaymentMethod:        models.PaymentCard,
		TransactionReference: "TX-1",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if job.Status != models.JobStatusPaid {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestListJobsEncodesFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "QC" || q.Get("customer") != "12" || q.Get("date_from") != "2024-01-01" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Has("search") {
			t.Errorf("empty search must be omitted")
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	jobs, err := c.ListJobs(context.Background(), models.JobFilter{Status: models.JobStatusQC, Customer: 12, DateFrom: "2024-01-01"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if jobs == nil || len(jobs) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", jobs)
	}
}
