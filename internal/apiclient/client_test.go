package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"jimpitan/internal/domain"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) APIToken(context.Context) (string, error) { return s.token, s.err }

func newTestServer(t *testing.T, register func(r chi.Router)) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	register(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, baseURL string, tokens TokenSource) *Client {
	t.Helper()
	client, err := NewClient(Options{BaseURL: baseURL + "/", Tokens: tokens, RequestTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error when base url missing")
	}
}

func TestUploadStatus(t *testing.T) {
	ts := newTestServer(t, func(r chi.Router) {
		r.Get("/api/upload-status", func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("kategori"); got != "RT Kulon" {
				t.Fatalf("kategori = %q, want RT Kulon", got)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Fatalf("unexpected auth header: %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]bool{"already_uploaded": true})
		})
	})

	client := newTestClient(t, ts.URL+"/api", staticTokens{token: "tok"})
	uploaded, err := client.UploadStatus(context.Background(), domain.CategoryKulon)
	if err != nil {
		t.Fatalf("UploadStatus error: %v", err)
	}
	if !uploaded {
		t.Fatalf("expected already_uploaded true")
	}
}

func TestUploadStatusExpiredTokenOmitsHeader(t *testing.T) {
	ts := newTestServer(t, func(r chi.Router) {
		r.Get("/upload-status", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "" {
				t.Fatalf("expected no auth header, got %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]bool{"already_uploaded": false})
		})
	})

	client := newTestClient(t, ts.URL, staticTokens{err: domain.ErrTokenExpired})
	uploaded, err := client.UploadStatus(context.Background(), domain.CategoryTengah)
	if err != nil {
		t.Fatalf("UploadStatus error: %v", err)
	}
	if uploaded {
		t.Fatalf("expected already_uploaded false")
	}
}

func TestSubmitDonationSendsPayload(t *testing.T) {
	var got domain.DonationPayload
	ts := newTestServer(t, func(r chi.Router) {
		r.Post("/donasi", func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
	})

	client := newTestClient(t, ts.URL, nil)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	payload := domain.NewDonationPayload(domain.CategoryKidul, domain.DonationDraft{DonorName: "Pak A", Amount: 500}, at)
	if err := client.SubmitDonation(context.Background(), domain.CategoryKidul, payload); err != nil {
		t.Fatalf("SubmitDonation error: %v", err)
	}
	if got != payload {
		t.Fatalf("payload mismatch: got %+v want %+v", got, payload)
	}
}

func TestSubmitDonationErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "already uploaded by message",
			status: http.StatusBadRequest,
			body:   `{"error":"RT Kulon sudah upload hari ini"}`,
			check: func(t *testing.T, err error) {
				var target *domain.AlreadyUploadedError
				if !errors.As(err, &target) {
					t.Fatalf("expected AlreadyUploadedError, got %T %v", err, err)
				}
				if target.Category != domain.CategoryKulon {
					t.Fatalf("category = %q", target.Category)
				}
			},
		},
		{
			name:   "already uploaded by code on 5xx",
			status: http.StatusInternalServerError,
			body:   `{"error":"nope","code":"already_uploaded"}`,
			check: func(t *testing.T, err error) {
				var target *domain.AlreadyUploadedError
				if !errors.As(err, &target) {
					t.Fatalf("expected AlreadyUploadedError, got %T %v", err, err)
				}
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   `{"error":"upstream down"}`,
			check: func(t *testing.T, err error) {
				var target *domain.ServerError
				if !errors.As(err, &target) || target.StatusCode != http.StatusBadGateway {
					t.Fatalf("expected ServerError 502, got %v", err)
				}
				if !domain.Retryable(err) {
					t.Fatalf("expected retryable")
				}
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `slow down`,
			check: func(t *testing.T, err error) {
				var target *domain.ServerError
				if !errors.As(err, &target) || !target.RateLimited() {
					t.Fatalf("expected rate limited ServerError, got %v", err)
				}
				if target.Message != "slow down" {
					t.Fatalf("message = %q", target.Message)
				}
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":"token invalid"}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Fatalf("expected ErrUnauthorized, got %v", err)
				}
				if domain.Retryable(err) {
					t.Fatalf("401 must not be retryable")
				}
			},
		},
		{
			name:   "validation rejected",
			status: http.StatusUnprocessableEntity,
			body:   `{"error":"nominal invalid"}`,
			check: func(t *testing.T, err error) {
				var target *domain.RejectedError
				if !errors.As(err, &target) || target.Message != "nominal invalid" {
					t.Fatalf("expected RejectedError, got %v", err)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, func(r chi.Router) {
				r.Post("/donasi", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
					_, _ = io.WriteString(w, tc.body)
				})
			})
			client := newTestClient(t, ts.URL, nil)
			payload := domain.NewDonationPayload(domain.CategoryKulon, domain.DonationDraft{DonorName: "Pak B", Amount: 1000}, time.Now())
			err := client.SubmitDonation(context.Background(), domain.CategoryKulon, payload)
			if err == nil {
				t.Fatalf("expected error")
			}
			tc.check(t, err)
		})
	}
}

func TestSubmitDonationNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	client := newTestClient(t, base, nil)
	payload := domain.NewDonationPayload(domain.CategoryTengah, domain.DonationDraft{DonorName: "Pak C", Amount: 1}, time.Now())
	err := client.SubmitDonation(context.Background(), domain.CategoryTengah, payload)
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T %v", err, err)
	}
}

func TestReplaySendsBytesAndHeaders(t *testing.T) {
	raw := []byte(`{"nama_donatur":"Pak A","kategori_rt":"RT Tengah","nominal":500,"tanggal_input":"2024-05-01T00:00:00Z"}`)
	var body []byte
	ts := newTestServer(t, func(r chi.Router) {
		r.Post("/donasi", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get(HeaderOfflineSync); got != "true" {
				t.Fatalf("offline header = %q", got)
			}
			if got := r.Header.Get(HeaderIdempotencyKey); got != "key-1" {
				t.Fatalf("idempotency header = %q", got)
			}
			body, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		})
	})

	client := newTestClient(t, ts.URL, nil)
	item := domain.PendingSyncItem{
		ID:             1,
		IdempotencyKey: "key-1",
		Type:           domain.SyncTypeDonation,
		Endpoint:       EndpointDonation,
		Method:         "post",
		Payload:        raw,
	}
	if err := client.Replay(context.Background(), item); err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if string(body) != string(raw) {
		t.Fatalf("payload not byte-identical:\n got %s\nwant %s", body, raw)
	}
}

func TestReplayAlreadyUploadedCarriesCategory(t *testing.T) {
	ts := newTestServer(t, func(r chi.Router) {
		r.Post("/donasi", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":"Data sudah diupload"}`)
		})
	})
	client := newTestClient(t, ts.URL, nil)
	item := domain.PendingSyncItem{
		Endpoint: EndpointDonation,
		Method:   http.MethodPost,
		Payload:  []byte(`{"nama_donatur":"Pak A","kategori_rt":"RT Kidul","nominal":500,"tanggal_input":"x"}`),
	}
	err := client.Replay(context.Background(), item)
	var target *domain.AlreadyUploadedError
	if !errors.As(err, &target) || target.Category != domain.CategoryKidul {
		t.Fatalf("expected AlreadyUploadedError for kidul, got %v", err)
	}
}

func TestIsAlreadyUploaded(t *testing.T) {
	cases := []struct {
		code, msg string
		want      bool
	}{
		{"ALREADY_UPLOADED", "", true},
		{"", "Already Uploaded today", true},
		{"", "RT Tengah SUDAH UPLOAD", true},
		{"", "upload hanya dapat dilakukan sekali per hari", true},
		{"", "nominal tidak valid", false},
		{"BAD_REQUEST", "", false},
	}
	for _, tc := range cases {
		if got := IsAlreadyUploaded(tc.code, tc.msg); got != tc.want {
			t.Fatalf("IsAlreadyUploaded(%q, %q) = %v, want %v", tc.code, tc.msg, got, tc.want)
		}
	}
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL, nil)
	if err := client.Ping(context.Background(), ""); err != nil {
		t.Fatalf("any response should count as reachable, got %v", err)
	}
}
