package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/oumiche/impact-auto-plus-sub006/internal/adapter/fsm"
	adapter "github.com/oumiche/impact-auto-plus-sub006/internal/adapter/http"
	"github.com/oumiche/impact-auto-plus-sub006/internal/adapter/sqlite"
	"github.com/oumiche/impact-auto-plus-sub006/internal/app"
	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
)

// noopPublisher is a no-op EventPublisher for tests.
type noopPublisher struct{}

func (p *noopPublisher) Publish(_ context.Context, _ domain.TransitionRecord, _ domain.Intervention) error {
	return nil
}

// newTestServer creates a full-stack httptest.Server with SQLite in-memory.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	codes := app.NewCodeService(store, store)
	workflows := app.NewWorkflowService(store, fsm.New(), codes, &noopPublisher{})

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("atelieriq", "0.1.0"))
	adapter.Register(api, workflows, codes)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

// doRequest performs an HTTP request with context (avoids noctx linter).
func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}

	return resp
}

func mustCreateIntervention(t *testing.T, srv *httptest.Server, tenantID string) adapter.InterventionResponse {
	t.Helper()

	body := fmt.Sprintf(`{"tenant_id":%q,"vehicle_id":"v-1","title":"Brake noise","priority":"high"}`, tenantID)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("create intervention: status = %d, body = %s", resp.StatusCode, raw)
	}

	var iv adapter.InterventionResponse
	if err := json.NewDecoder(resp.Body).Decode(&iv); err != nil {
		t.Fatalf("decode intervention: %v", err)
	}
	return iv
}

func mustTransition(t *testing.T, srv *httptest.Server, id, target string) adapter.InterventionResponse {
	t.Helper()

	body := fmt.Sprintf(`{"target":%q,"actor":"tester"}`, target)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions/"+id+"/transitions", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("transition to %s: status = %d, body = %s", target, resp.StatusCode, raw)
	}

	var iv adapter.InterventionResponse
	if err := json.NewDecoder(resp.Body).Decode(&iv); err != nil {
		t.Fatalf("decode intervention: %v", err)
	}
	return iv
}

// --- Interventions ---

func TestCreateIntervention(t *testing.T) {
	srv := newTestServer(t)

	iv := mustCreateIntervention(t, srv, "t-1")

	if iv.ID == "" {
		t.Error("ID should not be empty")
	}
	if iv.Status != "reported" {
		t.Errorf("Status = %q, want reported", iv.Status)
	}
	if iv.Stage != "intake" {
		t.Errorf("Stage = %q, want intake", iv.Stage)
	}
	if iv.Progress != 0 {
		t.Errorf("Progress = %d, want 0", iv.Progress)
	}
	if iv.Version != 1 {
		t.Errorf("Version = %d, want 1", iv.Version)
	}
	if !strings.HasPrefix(iv.Code, "INT-") {
		t.Errorf("Code = %q, want INT- prefix from the default template", iv.Code)
	}
}

func TestCreateIntervention_InvalidPriority(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions",
		`{"tenant_id":"t-1","vehicle_id":"v-1","title":"X","priority":"urgent"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d (schema validation)", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestGetIntervention_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/interventions/missing", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestListInterventions_FilterByTenant(t *testing.T) {
	srv := newTestServer(t)

	mustCreateIntervention(t, srv, "t-1")
	mustCreateIntervention(t, srv, "t-1")
	mustCreateIntervention(t, srv, "t-2")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/interventions?tenant_id=t-1", "")
	defer resp.Body.Close()

	var list []adapter.InterventionResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("list has %d entries, want 2", len(list))
	}
}

// --- Transitions ---

func TestTransition_HappyPathMintsQuoteCode(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, "t-1")

	updated := mustTransition(t, srv, iv.ID, "in_prediagnostic")
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}
	if updated.QuoteCode != "" {
		t.Errorf("QuoteCode = %q, none expected yet", updated.QuoteCode)
	}

	mustTransition(t, srv, iv.ID, "prediagnostic_completed")
	updated = mustTransition(t, srv, iv.ID, "in_quote")

	if !strings.HasPrefix(updated.QuoteCode, "QT-") {
		t.Errorf("QuoteCode = %q, want QT- prefix minted on entering in_quote", updated.QuoteCode)
	}
	if updated.Stage != "quoting" {
		t.Errorf("Stage = %q, want quoting", updated.Stage)
	}
}

func TestTransition_Invalid_ReturnsAllowedSet(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, "t-1")

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions/"+iv.ID+"/transitions",
		`{"target":"in_repair","actor":"tester"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	raw, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"in_prediagnostic", "cancelled"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("error body should list allowed status %q, got: %s", want, raw)
		}
	}
}

func TestTransition_ForcedWithoutComment(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, "t-1")

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions/"+iv.ID+"/transitions",
		`{"target":"in_repair","actor":"admin","force":true}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestTransition_ForcedWithComment(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, "t-1")

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions/"+iv.ID+"/transitions",
		`{"target":"in_repair","actor":"admin","comment":"authorized by phone","force":true}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var updated adapter.InterventionResponse
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Status != "in_repair" {
		t.Errorf("Status = %q, want in_repair", updated.Status)
	}
	if updated.StartedDate == nil {
		t.Error("StartedDate should be stamped")
	}
}

func TestHistory(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, "t-1")
	mustTransition(t, srv, iv.ID, "in_prediagnostic")
	mustTransition(t, srv, iv.ID, "cancelled")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/interventions/"+iv.ID+"/history", "")
	defer resp.Body.Close()

	var records []adapter.TransitionRecordResponse
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("history has %d records, want 2", len(records))
	}
	if records[0].To != "in_prediagnostic" || records[1].To != "cancelled" {
		t.Errorf("history order = [%s, %s]", records[0].To, records[1].To)
	}
}

func TestHistory_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/interventions/missing/history", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// --- Invoice ---

func TestInvoice_FullLifecycle(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, "t-1")

	for _, target := range []string{
		"in_prediagnostic", "prediagnostic_completed", "in_quote", "quote_received",
		"in_approval", "approved", "in_repair", "repair_completed", "in_reception", "vehicle_received",
	} {
		mustTransition(t, srv, iv.ID, target)
	}

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions/"+iv.ID+"/invoice", `{"actor":"billing"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("invoice: status = %d, body = %s", resp.StatusCode, raw)
	}

	var invoiced adapter.InterventionResponse
	if err := json.NewDecoder(resp.Body).Decode(&invoiced); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(invoiced.InvoiceCode, "INV-") {
		t.Errorf("InvoiceCode = %q, want INV- prefix", invoiced.InvoiceCode)
	}
	if invoiced.InvoicedAt == nil {
		t.Error("InvoicedAt should be set")
	}
	if invoiced.Progress != 100 {
		t.Errorf("Progress = %d, want 100 once invoiced", invoiced.Progress)
	}

	// A second invoice attempt is rejected.
	resp2 := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions/"+iv.ID+"/invoice", `{"actor":"billing"}`)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("second invoice: status = %d, want %d", resp2.StatusCode, http.StatusBadRequest)
	}
}

func TestInvoice_NotInvoiceableYet(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, "t-1")

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions/"+iv.ID+"/invoice", `{"actor":"billing"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

// --- Workflow introspection ---

func TestDescribeWorkflow(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/workflow", "")
	defer resp.Body.Close()

	var out struct {
		Statuses []adapter.WorkflowStatusInfo `json:"statuses"`
		Terminal []string                     `json:"terminal"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode workflow: %v", err)
	}

	if len(out.Statuses) != 12 {
		t.Errorf("statuses has %d entries, want 12", len(out.Statuses))
	}
	if len(out.Terminal) != 2 {
		t.Errorf("terminal = %v, want 2 entries", out.Terminal)
	}
}

func TestDescribeWorkflow_FromFilter(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/workflow?from=reported", "")
	defer resp.Body.Close()

	var out struct {
		Statuses []adapter.WorkflowStatusInfo `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode workflow: %v", err)
	}
	if len(out.Statuses) != 1 {
		t.Fatalf("statuses has %d entries, want 1", len(out.Statuses))
	}
	s := out.Statuses[0]
	if s.Status != "reported" {
		t.Errorf("Status = %q, want reported", s.Status)
	}
	if len(s.Next) != 2 || s.Next[0] != "in_prediagnostic" || s.Next[1] != "cancelled" {
		t.Errorf("Next = %v, want [in_prediagnostic cancelled]", s.Next)
	}
}

// --- Codes ---

func TestGenerateCode_SequentialPerTenant(t *testing.T) {
	srv := newTestServer(t)

	generate := func(tenantID string) string {
		t.Helper()
		body := fmt.Sprintf(`{"tenant_id":%q,"entity_type":"quote"}`, tenantID)
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/codes", body)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			t.Fatalf("generate code: status = %d, body = %s", resp.StatusCode, raw)
		}
		var out struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode code: %v", err)
		}
		return out.Code
	}

	first := generate("t-1")
	second := generate("t-1")
	other := generate("t-2")

	if first == second {
		t.Errorf("codes should be distinct, both = %q", first)
	}
	if !strings.HasSuffix(first, "-0001") || !strings.HasSuffix(second, "-0002") {
		t.Errorf("codes = %q, %q: want sequential suffixes", first, second)
	}
	if !strings.HasSuffix(other, "-0001") {
		t.Errorf("t-2 code = %q, want its own counter starting at 0001", other)
	}
}

func TestCodeFormats_CreateAndUse(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/code-formats",
		`{"tenant_id":"t-1","entity_type":"quote","template":"DEVIS-{YEAR}-{SEQUENCE:5}"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("create format: status = %d, body = %s", resp.StatusCode, raw)
	}

	var format adapter.CodeFormatResponse
	if err := json.NewDecoder(resp.Body).Decode(&format); err != nil {
		t.Fatalf("decode format: %v", err)
	}
	if !format.Active {
		t.Error("new format should be active")
	}

	codeResp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/codes", `{"tenant_id":"t-1","entity_type":"quote"}`)
	defer codeResp.Body.Close()

	var out struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(codeResp.Body).Decode(&out); err != nil {
		t.Fatalf("decode code: %v", err)
	}
	if !strings.HasPrefix(out.Code, "DEVIS-") || !strings.HasSuffix(out.Code, "-00001") {
		t.Errorf("code = %q, want the tenant format applied", out.Code)
	}
}

func TestCodeFormats_InvalidTemplate(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/code-formats",
		`{"tenant_id":"t-1","entity_type":"quote","template":"QT-{DAY}"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestCodeFormats_Deactivate(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/code-formats",
		`{"tenant_id":"t-1","entity_type":"quote","template":"DEVIS-{SEQUENCE:5}"}`)
	var format adapter.CodeFormatResponse
	if err := json.NewDecoder(resp.Body).Decode(&format); err != nil {
		t.Fatalf("decode format: %v", err)
	}
	resp.Body.Close()

	del := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/code-formats/"+format.ID, "")
	defer del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Errorf("delete: status = %d, want %d", del.StatusCode, http.StatusNoContent)
	}

	missing := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/code-formats/missing", "")
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing: status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}
