package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"doradori/backend/internal/domain"
	"doradori/backend/internal/service"
	"doradori/backend/internal/store/memory"
)

// newTestAPI builds the full stack over the seeded in-memory store so
// handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	svc := service.New(memory.NewSeeded(), service.Options{})
	return New(svc, Options{AllowedOrigin: "*"})
}

func serve(t *testing.T, api *API, method string, target string, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealthOnEveryAlias(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/", "/health", "/api", "/api/health"} {
		rec := serve(t, api, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}

		var body domain.HealthStatus
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode body: %v", path, err)
		}
		if body.Status != "ok" || body.Timestamp == "" {
			t.Fatalf("%s: unexpected health body %+v", path, body)
		}
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	rec := serve(t, newTestAPI(t), http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleKPIsShape(t *testing.T) {
	rec := serve(t, newTestAPI(t), http.MethodGet, "/api/kpis", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	for _, key := range []string{
		"totalActiveStyles", "totalActiveStylesChange", "stylesAtRiskCount", "stylesAtRiskChange",
		"revenueLast30d", "revenueLast30dChange", "averageReturnRate", "averageReturnRateChange",
	} {
		if _, ok := body[key]; !ok {
			t.Fatalf("expected key %q in %v", key, body)
		}
	}
	if body["totalActiveStyles"] != float64(5) {
		t.Fatalf("expected 5 active styles, got %v", body["totalActiveStyles"])
	}
}

func TestReportEndpointsReturnArrays(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{
		"/top-skus",
		"/stockout-risks",
		"/trends/channel-performance",
		"/trends/return-rate-by-category",
		"/trends/units-vs-returns",
		"/trends/fabric-usage",
		"/alerts?severity=all",
		"/schema",
	} {
		rec := serve(t, api, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		var body []map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: expected array body: %v", path, err)
		}
		if len(body) == 0 {
			t.Fatalf("%s: expected entries for seeded data", path)
		}
	}
}

func TestTopSKUsLimitedAndOrdered(t *testing.T) {
	rec := serve(t, newTestAPI(t), http.MethodGet, "/api/top-skus", "")

	var body []domain.TopSKU
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) > 5 {
		t.Fatalf("expected at most 5 entries, got %d", len(body))
	}
	for i := 1; i < len(body); i++ {
		if body[i].OneMonthSalesUnits > body[i-1].OneMonthSalesUnits {
			t.Fatalf("expected descending sales, got %+v", body)
		}
	}
}

func TestMasterTableSearch(t *testing.T) {
	rec := serve(t, newTestAPI(t), http.MethodGet, "/api/master-table?search=dress", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var page domain.MasterTablePage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if page.Total != 2 || page.Pagination.Total != 2 || len(page.Data) != 2 {
		t.Fatalf("expected two dresses, got %+v", page.Pagination)
	}
	if page.Data[0].StyleID() != "DD-DR-023" || page.Data[1].StyleID() != "DD-DR-031" {
		t.Fatalf("expected style_id ascending order, got %q, %q", page.Data[0].StyleID(), page.Data[1].StyleID())
	}

	limited := serve(t, newTestAPI(t), http.MethodGet, "/master-table?limit=3", "")
	if err := json.NewDecoder(limited.Body).Decode(&page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(page.Data) != 3 {
		t.Fatalf("expected limit to cap rows, got %d", len(page.Data))
	}
}

func TestStyleUpdateStatusCodes(t *testing.T) {
	api := newTestAPI(t)

	rec := serve(t, api, http.MethodPut, "/api/master-table/DD-DR-001", `{"total_revenue": 1, "roas": 2}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("derived-only payload: expected 400, got %d", rec.Code)
	}

	rec = serve(t, api, http.MethodPut, "/api/master-table/NOPE-1", `{"color": "Red"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing style: expected 404, got %d", rec.Code)
	}

	rec = serve(t, api, http.MethodPut, "/api/master-table/%20", `{"color": "Red"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank id: expected 400, got %d", rec.Code)
	}

	rec = serve(t, api, http.MethodPut, "/api/master-table/DD-DR-001", `{"color":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("broken JSON: expected 400, got %d", rec.Code)
	}

	rec = serve(t, api, http.MethodPut, "/master-table/dd-dr-001%20", `{"price_myntra": 999, "total_revenue": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Row map[string]any `json:"row"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Row["style_id"] != "DD-DR-001" || resp.Row["price_myntra"] != float64(999) {
		t.Fatalf("unexpected row %v", resp.Row)
	}
	if resp.Row["revenue_myntra"] != float64(96*999) {
		t.Fatalf("expected recomputed revenue_myntra, got %v", resp.Row["revenue_myntra"])
	}
}

func TestMasterTableExportIsWorkbook(t *testing.T) {
	rec := serve(t, newTestAPI(t), http.MethodGet, "/api/master-table/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("unexpected content type %q", got)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("expected header plus 6 styles, got %d rows", len(rows))
	}
	if rows[0][0] != "style_id" || rows[1][0] != "DD-CO-045" {
		t.Fatalf("unexpected first cells %q / %q", rows[0][0], rows[1][0])
	}
}

func TestStyleNamedExportIsUpdatable(t *testing.T) {
	repo := memory.New(domain.Row{
		domain.ColStyleID:   "export",
		domain.ColStyleName: "Export Kurta",
		"color":             "Blue",
	})
	api := New(service.New(repo, service.Options{}), Options{AllowedOrigin: "*"})

	for _, path := range []string{"/master-table/export", "/api/master-table/export"} {
		rec := serve(t, api, http.MethodPut, path, `{"color": "Red"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (body: %s)", path, rec.Code, rec.Body.String())
		}
		var resp struct {
			Row map[string]any `json:"row"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: decode body: %v", path, err)
		}
		if resp.Row["style_id"] != "export" || resp.Row["color"] != "Red" {
			t.Fatalf("%s: unexpected row %v", path, resp.Row)
		}
	}

	rec := serve(t, api, http.MethodGet, "/master-table/export", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("expected workbook export, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}
