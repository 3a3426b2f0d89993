package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jimpitan/internal/adapter/repo"
	"jimpitan/internal/connectivity"
	"jimpitan/internal/domain"
	"jimpitan/internal/gatekeeper"
	"jimpitan/internal/http/handlers"
	"jimpitan/internal/i18n"
	"jimpitan/internal/infra"
	"jimpitan/internal/queue"
	"jimpitan/internal/session"
	"jimpitan/internal/submission"
)

type stubChecker struct{}

func (stubChecker) UploadStatus(context.Context, domain.Category) (bool, error) { return false, nil }

type stubWriter struct {
	mu    sync.Mutex
	names []string
}

func (w *stubWriter) SubmitDonation(_ context.Context, _ domain.Category, p domain.DonationPayload) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.names = append(w.names, p.NamaDonatur)
	return nil
}

type stubReplayer struct {
	mu    sync.Mutex
	count int
}

func (r *stubReplayer) Replay(context.Context, domain.PendingSyncItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

type fixture struct {
	handler  http.Handler
	writer   *stubWriter
	replayer *stubReplayer
	session  *session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := infra.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jimpitan.db"), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	runner := infra.NewSQLRunner(db, logger)

	now := func() time.Time { return time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC) }
	broker := session.NewBroker(nil)
	gate := gatekeeper.New(gatekeeper.Options{
		Checker:  stubChecker{},
		Dates:    repo.NewUploadDateRepository(runner),
		Location: time.UTC,
		Now:      now,
		OnChange: func(s domain.CategoryUploadState) { broker.Publish(session.UploadStateEvent(s)) },
	})
	replayer := &stubReplayer{}
	q := queue.New(queue.Options{Repo: repo.NewPendingRepository(runner), Replayer: replayer, Now: now})
	monitor := connectivity.NewMonitor(connectivity.MonitorOptions{Initial: true})
	writer := &stubWriter{}
	coord := submission.New(submission.Options{
		Writer:       writer,
		Gate:         gate,
		Queue:        q,
		Connectivity: monitor,
		Now:          now,
	})
	sess := session.New(session.Options{
		Roster:      domain.Roster{domain.CategoryKulon: {"Pak A", "Pak B"}},
		Gate:        gate,
		Coordinator: coord,
		Queue:       q,
		Monitor:     monitor,
		Broker:      broker,
	})
	app := handlers.NewApp(sess, i18n.New("id"), nil)
	h := NewRouter(app, RouterOptions{DefaultLocale: "id", Logger: logger})
	return &fixture{handler: h, writer: writer, replayer: replayer, session: sess}
}

func (f *fixture) do(t *testing.T, method, target, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&decoded); err != nil {
			t.Fatalf("decode %s %s: %v", method, target, err)
		}
	}
	return rr, decoded
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr, body := f.do(t, http.MethodGet, "/v1/healthz", "")
	if rr.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", rr.Code, body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	rr, body := f.do(t, http.MethodGet, "/v1/categories", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("categories status = %d", rr.Code)
	}
	items, _ := body["items"].([]any)
	if len(items) != 3 {
		t.Fatalf("expected 3 categories, got %v", body)
	}
	second := items[1].(map[string]any)
	if second["key"] != "kategori2" || second["label"] != "RT Kulon" || second["state"] != "unknown" {
		t.Fatalf("kulon = %v", second)
	}
}

func TestSwitchCategoryRejectsUnknown(t *testing.T) {
	f := newFixture(t)
	rr, body := f.do(t, http.MethodPut, "/v1/category", `{"category":"kategori9"}`)
	if rr.Code != http.StatusBadRequest || body["error"] != "validation" {
		t.Fatalf("unknown category = %d %v", rr.Code, body)
	}
	rr, _ = f.do(t, http.MethodPut, "/v1/category", `{"category":"kategori2","extra":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field accepted: %d", rr.Code)
	}
}

func TestDraftsRequireCategory(t *testing.T) {
	f := newFixture(t)
	rr, body := f.do(t, http.MethodPut, "/v1/drafts/Pak%20A", `{"amount":1000}`)
	if rr.Code != http.StatusBadRequest || body["error"] != "validation" {
		t.Fatalf("upsert without category = %d %v", rr.Code, body)
	}
}

func TestDraftFlowAndSubmit(t *testing.T) {
	f := newFixture(t)
	if rr, body := f.do(t, http.MethodPut, "/v1/category", `{"category":"RT Kulon"}`); rr.Code != http.StatusOK {
		t.Fatalf("switch = %d %v", rr.Code, body)
	}

	rr, body := f.do(t, http.MethodPut, "/v1/drafts/Pak%20B", `{"amount":500}`)
	if rr.Code != http.StatusCreated || body["inserted"] != true {
		t.Fatalf("insert = %d %v", rr.Code, body)
	}
	rr, body = f.do(t, http.MethodPut, "/v1/drafts/Pak%20B", `{"amount":1500}`)
	if rr.Code != http.StatusOK || body["inserted"] != false {
		t.Fatalf("replace = %d %v", rr.Code, body)
	}
	if rr, body = f.do(t, http.MethodPut, "/v1/drafts/Pak%20A", `{"amount":0}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("zero amount = %d %v", rr.Code, body)
	}
	_, _ = f.do(t, http.MethodPut, "/v1/drafts/Pak%20A", `{"amount":1000}`)

	rr, body = f.do(t, http.MethodGet, "/v1/drafts", "")
	if rr.Code != http.StatusOK || body["total"] != float64(2500) || body["total_formatted"] != "Rp 2.500" || body["all_entered"] != true {
		t.Fatalf("drafts = %d %v", rr.Code, body)
	}
	entries := body["entries"].([]any)
	if entries[0].(map[string]any)["donor_name"] != "Pak A" {
		t.Fatalf("entries not in roster order: %v", entries)
	}
	if _, body = f.do(t, http.MethodGet, "/v1/drafts", "", "Accept-Language", "en-US"); body["total_formatted"] != "Rp 2,500" {
		t.Fatalf("english total = %v", body["total_formatted"])
	}

	rr, body = f.do(t, http.MethodPost, "/v1/submit", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("submit = %d %v", rr.Code, body)
	}
	if msg, _ := body["message"].(string); !strings.HasPrefix(msg, "Berhasil upload 2 data RT Kulon") {
		t.Fatalf("message = %q", msg)
	}
	if len(f.writer.names) != 2 || f.writer.names[0] != "Pak A" {
		t.Fatalf("writes = %v", f.writer.names)
	}

	rr, body = f.do(t, http.MethodPut, "/v1/drafts/Pak%20A", `{"amount":1000}`)
	if rr.Code != http.StatusConflict || body["error"] != "already_uploaded" {
		t.Fatalf("upsert after upload = %d %v", rr.Code, body)
	}
	if body["message"] != "RT Kulon sudah upload hari ini" {
		t.Fatalf("locked message = %v", body["message"])
	}
}

func TestSubmitEmptyBatch(t *testing.T) {
	f := newFixture(t)
	_, _ = f.do(t, http.MethodPut, "/v1/category", `{"category":"kategori2"}`)
	rr, body := f.do(t, http.MethodPost, "/v1/submit", "", "X-Locale", "en")
	if rr.Code != http.StatusBadRequest || body["error"] != "empty_batch" || body["message"] != "Nothing to upload yet" {
		t.Fatalf("empty submit = %d %v", rr.Code, body)
	}
}

func TestRemoveAndClearDrafts(t *testing.T) {
	f := newFixture(t)
	_, _ = f.do(t, http.MethodPut, "/v1/category", `{"category":"kategori2"}`)
	_, _ = f.do(t, http.MethodPut, "/v1/drafts/Pak%20A", `{"amount":1000}`)
	_, _ = f.do(t, http.MethodPut, "/v1/drafts/Pak%20B", `{"amount":1000}`)

	rr, body := f.do(t, http.MethodDelete, "/v1/drafts/Pak%20A", "")
	if rr.Code != http.StatusOK || body["removed"] != true {
		t.Fatalf("remove = %d %v", rr.Code, body)
	}
	if _, body = f.do(t, http.MethodDelete, "/v1/drafts/Nobody", ""); body["removed"] != false {
		t.Fatalf("remove absent = %v", body)
	}
	if rr, _ = f.do(t, http.MethodDelete, "/v1/drafts", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("clear = %d", rr.Code)
	}
	if _, body = f.do(t, http.MethodGet, "/v1/drafts", ""); body["total"] != float64(0) {
		t.Fatalf("drafts after clear = %v", body)
	}
}

func TestOfflineSubmitQueuesThenDrains(t *testing.T) {
	f := newFixture(t)
	rr, body := f.do(t, http.MethodPost, "/v1/connectivity", `{"online":false}`)
	if rr.Code != http.StatusOK || body["changed"] != true || body["online"] != false {
		t.Fatalf("connectivity = %d %v", rr.Code, body)
	}
	if rr, body = f.do(t, http.MethodPut, "/v1/category", `{"category":"kategori2"}`); body["upload_state"].(map[string]any)["state"] != "ready" {
		t.Fatalf("offline switch = %d %v", rr.Code, body)
	}
	_, _ = f.do(t, http.MethodPut, "/v1/drafts/Pak%20A", `{"amount":1000}`)
	_, _ = f.do(t, http.MethodPut, "/v1/drafts/Pak%20B", `{"amount":2000}`)

	rr, body = f.do(t, http.MethodPost, "/v1/submit", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("offline submit = %d %v", rr.Code, body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "2 data disimpan") {
		t.Fatalf("offline message = %q", msg)
	}
	if len(f.writer.names) != 0 {
		t.Fatalf("offline submit reached the writer: %v", f.writer.names)
	}

	rr, body = f.do(t, http.MethodGet, "/v1/pending", "")
	if rr.Code != http.StatusOK || body["count"] != float64(2) {
		t.Fatalf("pending = %d %v", rr.Code, body)
	}
	first := body["items"].([]any)[0].(map[string]any)
	if first["idempotency_key"] == "" || first["payload"].(map[string]any)["nama_donatur"] != "Pak A" {
		t.Fatalf("pending item = %v", first)
	}

	_, _ = f.do(t, http.MethodPost, "/v1/connectivity", `{"online":true}`)
	rr, body = f.do(t, http.MethodPost, "/v1/pending/drain", "")
	if rr.Code != http.StatusOK || body["replayed"] != float64(2) || body["remaining"] != float64(0) {
		t.Fatalf("drain = %d %v", rr.Code, body)
	}
	if _, body = f.do(t, http.MethodGet, "/v1/status", ""); body["pending_count"] != float64(0) || body["online"] != true {
		t.Fatalf("status = %v", body)
	}
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	rr, body := f.do(t, http.MethodPost, "/v1/visibility", `{"visible":false}`)
	if rr.Code != http.StatusAccepted || body["visible"] != false {
		t.Fatalf("visibility = %d %v", rr.Code, body)
	}
}

func TestCORSPreflight(t *testing.T) {
	logger := zerolog.New(io.Discard)
	h := NewRouter(handlers.NewApp(nil, nil, nil), RouterOptions{AllowedOrigins: []string{"http://localhost:3000"}, Logger: logger})
	req := httptest.NewRequest(http.MethodOptions, "/v1/drafts/Pak%20A", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("preflight = %d %v", rr.Code, rr.Header())
	}
}

func TestStatusStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/status/stream", nil)
	req.Header.Set("X-Locale", "en")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, map[string]any) {
		t.Helper()
		var name string
		var data map[string]any
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err != nil {
					t.Fatalf("decode event: %v", err)
				}
			case line == "" && name != "":
				return name, data
			}
		}
	}

	if name, _ := readEvent(); name != "status" {
		t.Fatalf("first event = %q", name)
	}
	offline := false
	f.session.Publish(session.Event{Kind: session.EventConnectivity, Online: &offline})
	name, data := readEvent()
	if name != "connectivity" || data["online"] != false || data["message"] != "Offline mode: entries will be kept on this device" {
		t.Fatalf("event = %q %v", name, data)
	}
}
