package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/gomega"
	"github.com/tedsuo/ifrit"

	"github.com/raysh454/comply/internal/app"
	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/server"
	"github.com/raysh454/comply/internal/testutil"
)

type testEnv struct {
	*server.Server
	app      *app.Application
	analyzer *testutil.FakeAnalyzer
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	cfg := app.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "comply.db")
	logger := &testutil.DummyLogger{}
	fa := &testutil.FakeAnalyzer{}

	a, err := app.NewApplication(cfg, logger, nil, fa)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	s := server.NewServer(server.Config{ListenAddr: ":0", Logger: logger}, a.Orch, a.Metrics)
	return &testEnv{Server: s, app: a, analyzer: fa}
}

func (e *testEnv) startDispatcher(t *testing.T) {
	t.Helper()
	g := NewWithT(t)
	process := ifrit.Background(e.app.Dispatcher)
	g.Eventually(process.Ready()).Should(BeClosed())
	t.Cleanup(func() {
		process.Signal(os.Interrupt)
		g.Eventually(process.Wait()).Should(Receive())
	})
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// seed creates an account with a project and a website and returns the
// website id.
func seed(t *testing.T, s http.Handler, account string, tier model.Tier) string {
	t.Helper()
	expectStatus(t, doJSON(t, s, "PUT", "/accounts/"+account, fmt.Sprintf(`{"tier":%q}`, tier)), http.StatusOK)
	expectStatus(t, doJSON(t, s, "POST", "/accounts/"+account+"/projects", `{"slug":"shop","name":"Shop"}`), http.StatusCreated)

	rec := doJSON(t, s, "POST", "/accounts/"+account+"/projects/shop/websites", `{"origin":"https://shop.example.com"}`)
	expectStatus(t, rec, http.StatusCreated)
	var w model.Website
	decodeJSON(t, rec, &w)
	return w.ID
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/healthz", "")

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_CORS_Preflight(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "OPTIONS", "/accounts/acct-1/schedules/abc", "")

	expectStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, PATCH, DELETE" {
		t.Errorf("unexpected allowed methods %q", got)
	}
}

// ─── Accounts ──────────────────────────────────────────────────────────

func TestServer_SyncAccount(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "PUT", "/accounts/acct-1", `{"tier":"pro"}`)
	expectStatus(t, rec, http.StatusOK)

	var acct model.Account
	decodeJSON(t, rec, &acct)
	if acct.ID != "acct-1" || acct.Tier != model.TierPro {
		t.Errorf("unexpected account %+v", acct)
	}

	expectStatus(t, doJSON(t, s, "PUT", "/accounts/acct-1", `{"tier":"platinum"}`), http.StatusBadRequest)
	expectStatus(t, doJSON(t, s, "PUT", "/accounts/acct-1", `{invalid}`), http.StatusBadRequest)
}

func TestServer_GetAccount_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	expectStatus(t, doJSON(t, s, "GET", "/accounts/ghost", ""), http.StatusNotFound)
	expectStatus(t, doJSON(t, s, "GET", "/accounts/ghost/usage", ""), http.StatusNotFound)
}

func TestServer_Usage(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	seed(t, s, "acct-1", model.TierFree)

	rec := doJSON(t, s, "GET", "/accounts/acct-1/usage", "")
	expectStatus(t, rec, http.StatusOK)

	var report app.UsageReport
	decodeJSON(t, rec, &report)
	if report.Projects.Used != 1 || report.Projects.Limit != 3 || report.Projects.Remaining != 2 {
		t.Errorf("unexpected project usage %+v", report.Projects)
	}
	if report.Scans.Used != 0 || report.Scans.Limit != 10 {
		t.Errorf("unexpected scan usage %+v", report.Scans)
	}
}

// ─── Projects & websites ───────────────────────────────────────────────

func TestServer_ProjectQuota(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	expectStatus(t, doJSON(t, s, "PUT", "/accounts/acct-1", `{"tier":"free"}`), http.StatusOK)

	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"slug":"p%d","name":"P%d"}`, i, i)
		expectStatus(t, doJSON(t, s, "POST", "/accounts/acct-1/projects", body), http.StatusCreated)
	}

	rec := doJSON(t, s, "POST", "/accounts/acct-1/projects", `{"slug":"p4","name":"P4"}`)
	expectStatus(t, rec, http.StatusForbidden)

	var e server.ErrorResponse
	decodeJSON(t, rec, &e)
	if !strings.Contains(e.Error, "Project limit of 3") {
		t.Errorf("unexpected error %q", e.Error)
	}

	rec = doJSON(t, s, "GET", "/accounts/acct-1/projects", "")
	expectStatus(t, rec, http.StatusOK)
	var ps []model.Project
	decodeJSON(t, rec, &ps)
	if len(ps) != 3 {
		t.Errorf("expected 3 projects, got %d", len(ps))
	}
}

func TestServer_CreateProject_InvalidJSON(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	expectStatus(t, doJSON(t, s, "POST", "/accounts/acct-1/projects", `{invalid}`), http.StatusBadRequest)
}

func TestServer_Websites(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	seed(t, s, "acct-1", model.TierPro)

	expectStatus(t, doJSON(t, s, "POST", "/accounts/acct-1/projects/shop/websites", `{"origin":"ftp://nope"}`), http.StatusBadRequest)
	expectStatus(t, doJSON(t, s, "POST", "/accounts/acct-1/projects/missing/websites", `{"origin":"https://a.example"}`), http.StatusNotFound)

	rec := doJSON(t, s, "GET", "/accounts/acct-1/projects/shop/websites", "")
	expectStatus(t, rec, http.StatusOK)
	var ws []model.Website
	decodeJSON(t, rec, &ws)
	if len(ws) != 1 || ws[0].Slug != "shop.example.com" {
		t.Errorf("unexpected websites %+v", ws)
	}
}

// ─── Scans ─────────────────────────────────────────────────────────────

func TestServer_StartScan(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	s := newTestServer(t)
	s.startDispatcher(t)
	site := seed(t, s, "acct-1", model.TierPro)

	rec := doJSON(t, s, "POST", "/accounts/acct-1/websites/"+site+"/scans", `{"scan_options":{"seo":true}}`)
	expectStatus(t, rec, http.StatusAccepted)
	var scan model.ScanRecord
	decodeJSON(t, rec, &scan)
	if scan.Status != model.ScanPending || !scan.ScanOptions.SEO || scan.ScanOptions.GDPR {
		t.Fatalf("unexpected scan %+v", scan)
	}

	g.Eventually(func() model.ScanStatus {
		rec := doJSON(t, s, "GET", "/accounts/acct-1/scans/"+scan.ID, "")
		var got model.ScanRecord
		_ = json.NewDecoder(rec.Body).Decode(&got)
		return got.Status
	}).Should(Equal(model.ScanCompleted))

	rec = doJSON(t, s, "GET", "/accounts/acct-1/websites/"+site+"/scans?limit=5", "")
	expectStatus(t, rec, http.StatusOK)
	var scans []model.ScanRecord
	decodeJSON(t, rec, &scans)
	if len(scans) != 1 {
		t.Fatalf("expected 1 scan, got %d", len(scans))
	}

	expectStatus(t, doJSON(t, s, "GET", "/accounts/other/scans/"+scan.ID, ""), http.StatusForbidden)
	expectStatus(t, doJSON(t, s, "GET", "/accounts/acct-1/scans/nope", ""), http.StatusNotFound)
}

func TestServer_StartScan_DefaultOptionsWithEmptyBody(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	site := seed(t, s, "acct-1", model.TierPro)

	rec := doJSON(t, s, "POST", "/accounts/acct-1/websites/"+site+"/scans", "")
	expectStatus(t, rec, http.StatusAccepted)
	var scan model.ScanRecord
	decodeJSON(t, rec, &scan)
	if !scan.ScanOptions.GDPR || !scan.ScanOptions.Accessibility || !scan.ScanOptions.Security {
		t.Fatalf("expected default options, got %+v", scan.ScanOptions)
	}
}

func TestServer_StartScan_Conflict(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	site := seed(t, s, "acct-1", model.TierPro)

	// no dispatcher running, so the first scan stays pending
	expectStatus(t, doJSON(t, s, "POST", "/accounts/acct-1/websites/"+site+"/scans", "{}"), http.StatusAccepted)
	expectStatus(t, doJSON(t, s, "POST", "/accounts/acct-1/websites/"+site+"/scans", "{}"), http.StatusConflict)
}

func TestServer_StartScan_Forbidden(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	site := seed(t, s, "acct-1", model.TierPro)
	expectStatus(t, doJSON(t, s, "PUT", "/accounts/intruder", `{"tier":"pro"}`), http.StatusOK)

	expectStatus(t, doJSON(t, s, "POST", "/accounts/intruder/websites/"+site+"/scans", "{}"), http.StatusForbidden)
	expectStatus(t, doJSON(t, s, "POST", "/accounts/acct-1/websites/missing/scans", "{}"), http.StatusNotFound)
}

// ─── Schedules ─────────────────────────────────────────────────────────

func TestServer_Schedules(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	site := seed(t, s, "acct-1", model.TierPro)

	rec := doJSON(t, s, "POST", "/accounts/acct-1/schedules",
		fmt.Sprintf(`{"website_id":%q,"frequency":"weekly","time_of_day":"09:00","day_of_week":1}`, site))
	expectStatus(t, rec, http.StatusCreated)
	var def model.ScanDefinition
	decodeJSON(t, rec, &def)
	if !def.IsActive || def.DayOfWeek == nil || *def.DayOfWeek != 1 {
		t.Fatalf("unexpected definition %+v", def)
	}
	if def.NextRun.Weekday() != time.Monday || def.NextRun.Hour() != 9 {
		t.Fatalf("unexpected next run %v", def.NextRun)
	}

	rec = doJSON(t, s, "PATCH", "/accounts/acct-1/schedules/"+def.ID, `{"frequency":"monthly","day_of_month":31}`)
	expectStatus(t, rec, http.StatusOK)
	var updated model.ScanDefinition
	decodeJSON(t, rec, &updated)
	if updated.Frequency != model.FrequencyMonthly || updated.DayOfWeek != nil || updated.DayOfMonth == nil {
		t.Fatalf("unexpected update %+v", updated)
	}

	rec = doJSON(t, s, "DELETE", "/accounts/acct-1/schedules/"+def.ID, "")
	expectStatus(t, rec, http.StatusOK)
	var deactivated model.ScanDefinition
	decodeJSON(t, rec, &deactivated)
	if deactivated.IsActive {
		t.Fatal("expected definition to be inactive")
	}

	rec = doJSON(t, s, "GET", "/accounts/acct-1/schedules", "")
	expectStatus(t, rec, http.StatusOK)
	var defs []model.ScanDefinition
	decodeJSON(t, rec, &defs)
	if len(defs) != 1 {
		t.Fatalf("definitions are never deleted, got %d", len(defs))
	}

	expectStatus(t, doJSON(t, s, "GET", "/accounts/other/schedules/"+def.ID, ""), http.StatusForbidden)
}

func TestServer_Schedules_Validation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	site := seed(t, s, "acct-1", model.TierPro)

	cases := []string{
		`{"website_id":%q,"frequency":"hourly","time_of_day":"09:00"}`,
		`{"website_id":%q,"frequency":"daily","time_of_day":"25:00"}`,
		`{"website_id":%q,"frequency":"weekly","time_of_day":"09:00"}`,
		`{"website_id":%q,"frequency":"monthly","time_of_day":"09:00","day_of_month":32}`,
		`{"website_id":%q,"frequency":"daily","time_of_day":"09:00","scan_options":{}}`,
	}
	for _, c := range cases {
		rec := doJSON(t, s, "POST", "/accounts/acct-1/schedules", fmt.Sprintf(c, site))
		expectStatus(t, rec, http.StatusBadRequest)
	}
}

// ─── Operations ────────────────────────────────────────────────────────

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/healthz", "")
	expectStatus(t, rec, http.StatusOK)
	var h server.HealthResponse
	decodeJSON(t, rec, &h)
	if h.Status != "ok" {
		t.Errorf("unexpected health %+v", h)
	}

	site := seed(t, s, "acct-1", model.TierPro)
	expectStatus(t, doJSON(t, s, "POST", "/accounts/acct-1/websites/"+site+"/scans", "{}"), http.StatusAccepted)

	rec = doJSON(t, s, "GET", "/metrics", "")
	expectStatus(t, rec, http.StatusOK)
	var snap map[string]any
	decodeJSON(t, rec, &snap)
	if snap["scans_launched"] != float64(1) {
		t.Errorf("expected scans_launched 1, got %v", snap["scans_launched"])
	}
}

func TestServer_SwaggerDoc(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/swagger/doc.json", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "/accounts/{account}/schedules") {
		t.Errorf("swagger document is missing schedule routes")
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func TestServer_ScanWebSocket(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.analyzer.Block = make(chan struct{})
	s.startDispatcher(t)
	site := seed(t, s, "acct-1", model.TierPro)

	rec := doJSON(t, s, "POST", "/accounts/acct-1/websites/"+site+"/scans", "{}")
	expectStatus(t, rec, http.StatusAccepted)
	var scan model.ScanRecord
	decodeJSON(t, rec, &scan)

	ts := httptest.NewServer(s)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/accounts/acct-1/scans/" + scan.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var first dispatch.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.ScanID != scan.ID || first.Status.Terminal() {
		t.Fatalf("unexpected snapshot %+v", first)
	}

	close(s.analyzer.Block)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var last dispatch.Event
	for {
		var ev dispatch.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read: %v", err)
			}
			break
		}
		last = ev
	}
	if last.Type != dispatch.EventResult || last.Status != model.ScanCompleted {
		t.Fatalf("unexpected final event %+v", last)
	}
}

func TestServer_ScanWebSocket_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/ws/accounts/acct-1/scans/missing", "")
	expectStatus(t, rec, http.StatusNotFound)
}
