package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rg/smsrelay/internal/metrics"
	"github.com/rg/smsrelay/internal/segment"
	"github.com/rg/smsrelay/internal/sms"
	"github.com/rg/smsrelay/internal/smsconfig"
	"github.com/rg/smsrelay/internal/storage"
	"github.com/rg/smsrelay/internal/validate"
)

type fakeSms struct {
	sendRecord *sms.Record
	sendErr    error
	lastSend   sms.Request
	records    map[string]*sms.Record
	listLimit  int
	previewErr error
}

func (f *fakeSms) Send(_ context.Context, req sms.Request) (*sms.Record, error) {
	f.lastSend = req
	return f.sendRecord, f.sendErr
}

func (f *fakeSms) Get(_ context.Context, id string) (*sms.Record, error) {
	if id == "broken" {
		return nil, errors.New("db down")
	}
	return f.records[id], nil
}

func (f *fakeSms) List(_ context.Context, limit int) ([]*sms.Record, error) {
	f.listLimit = limit
	var out []*sms.Record
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSms) Preview(_ context.Context, message string) (*sms.Preview, error) {
	if f.previewErr != nil {
		return nil, f.previewErr
	}
	return &sms.Preview{Size: len(message), Parts: 1, MaxSmsLength: 160, SuffixTemplate: "[%d/%d]", Content: []string{message}}, nil
}

type fakeConfigs struct {
	current   *storage.Configuration
	created   []smsconfig.Input
	createErr error
}

func (f *fakeConfigs) Current(context.Context) (*storage.Configuration, error) {
	if f.current == nil {
		return nil, smsconfig.ErrNoConfiguration
	}
	return f.current, nil
}

func (f *fakeConfigs) Create(_ context.Context, in smsconfig.Input) (*storage.Configuration, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	f.current = &storage.Configuration{ID: int64(len(f.created)), MaxSmsLength: in.MaxSmsLength, SuffixTemplate: in.SuffixTemplate}
	return f.current, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler http.Handler
	sms     *fakeSms
	configs *fakeConfigs
	reg     *prometheus.Registry
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	ts := &testServer{
		sms:     &fakeSms{records: map[string]*sms.Record{}},
		configs: &fakeConfigs{current: &storage.Configuration{ID: 1, MaxSmsLength: 160, SuffixTemplate: "... - Part %d of %d"}},
		reg:     prometheus.NewRegistry(),
	}
	ts.metrics = metrics.New(ts.reg)
	opts.Metrics = ts.metrics
	opts.Gatherer = ts.reg

	handler, err := NewRouter(ts.sms, ts.configs, opts)
	require.NoError(t, err)
	ts.handler = handler
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSendSms_OK(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.sms.sendRecord = &sms.Record{ID: "abc", Parts: 2}

	rec := ts.do(http.MethodPost, "/api/sms", `{"from":"+15550001111","to":"+15550002222","message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[MessageResponse](t, rec)
	assert.Equal(t, "SMS sent successfully.", resp.Message)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, "abc", resp.ID)
	assert.Equal(t, 2, resp.Parts)
	assert.Equal(t, "+15550002222", ts.sms.lastSend.To)
}

func TestSendSms_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		record *sms.Record
		status int
	}{
		{"validation", validate.Errors{"to": "must not be blank"}, nil, http.StatusBadRequest},
		{"suffix too long", fmt.Errorf("failed to segment message: %w", &segment.SuffixError{Part: 1, Total: 2}), nil, http.StatusUnprocessableEntity},
		{"exhausted", fmt.Errorf("failed to segment message: %w", &segment.ExhaustedError{MaxParts: 3}), nil, http.StatusUnprocessableEntity},
		{"no configuration", fmt.Errorf("failed to load configuration: %w", smsconfig.ErrNoConfiguration), nil, http.StatusServiceUnavailable},
		{"persist", fmt.Errorf("%w: %w", sms.ErrPersist, errors.New("disk full")), nil, http.StatusInternalServerError},
		{"delivery", fmt.Errorf("%w: part 2 of 3: %w", sms.ErrDelivery, errors.New("timeout")), &sms.Record{ID: "kept"}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, Options{})
			ts.sms.sendErr = tt.err
			ts.sms.sendRecord = tt.record

			rec := ts.do(http.MethodPost, "/api/sms", `{"from":"+15550001111","to":"+15550002222","message":"hi"}`)
			assert.Equal(t, tt.status, rec.Code)

			resp := decode[errorResponse](t, rec)
			assert.Equal(t, tt.status, resp.Code)
			if tt.record != nil {
				assert.Equal(t, tt.record.ID, resp.ID)
			}
		})
	}
}

func TestSendSms_ValidationFields(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.sms.sendErr = validate.Errors{"to": "must not be blank", "from": "is not a valid phone number"}

	rec := ts.do(http.MethodPost, "/api/sms", `{"from":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, map[string]string{"to": "must not be blank", "from": "is not a valid phone number"}, resp.Fields)
}

func TestSendSms_InternalErrorIsNotLeaked(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.sms.sendErr = errors.New("pq: password authentication failed")

	rec := ts.do(http.MethodPost, "/api/sms", `{}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestSendSms_BadJSON(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodPost, "/api/sms", `{"from":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "invalid request body")
}

func TestGetSms(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.sms.records["abc"] = &sms.Record{
		ID:       "abc",
		From:     "+15550001111",
		To:       "+15550002222",
		Size:     5,
		Parts:    1,
		SentDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Content:  []string{"hello"},
	}

	rec := ts.do(http.MethodGet, "/api/sms/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[sms.Record](t, rec)
	assert.Equal(t, *ts.sms.records["abc"], got)

	rec = ts.do(http.MethodGet, "/api/sms/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/sms/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListSms(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/sms?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, ts.sms.listLimit)
	assert.JSONEq(t, `{"sms":[]}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/sms?limit=five", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodPost, "/api/sms/preview", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[sms.Preview](t, rec)
	assert.Equal(t, []string{"hello"}, got.Content)

	ts.sms.previewErr = fmt.Errorf("x: %w", &segment.SuffixError{Part: 1, Total: 2})
	rec = ts.do(http.MethodPost, "/api/sms/preview", `{"message":"hello"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestConfiguration(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/sms/configuration", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"maxSmsLength":160,"suffixTemplate":"... - Part %d of %d"}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/sms/configuration", `{"maxSmsLength":70,"suffixTemplate":"(%d/%d)"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"New configuration added.","code":200}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/sms/configuration", "")
	assert.JSONEq(t, `{"maxSmsLength":70,"suffixTemplate":"(%d/%d)"}`, rec.Body.String())
}

func TestConfiguration_Invalid(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodPost, "/api/sms/configuration", `{"maxSmsLength":0,"suffixTemplate":"no slots"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[errorResponse](t, rec)
	assert.Contains(t, resp.Fields, "maxSmsLength")
	assert.Contains(t, resp.Fields, "suffixTemplate")
	assert.Empty(t, ts.configs.created)
}

func TestConfiguration_NoneYet(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.configs.current = nil

	rec := ts.do(http.MethodGet, "/api/sms/configuration", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Options{Health: fakePinger{}})
	rec := ts.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)

	ts = newTestServer(t, Options{Health: fakePinger{err: errors.New("down")}})
	rec = ts.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointAndInstrumentation(t *testing.T) {
	ts := newTestServer(t, Options{})

	ts.do(http.MethodGet, "/api/sms/configuration", "")
	ts.do(http.MethodGet, "/api/sms/nope", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/sms/configuration", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/sms/{id}", "4xx")))

	rec := ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "smsrelay_http_requests_total"))
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.sms.sendErr = validate.Errors{"to": "must not be blank"}

	req := httptest.NewRequest(http.MethodPost, "/api/sms", strings.NewReader(`{}`))
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", decode[errorResponse](t, rec).RequestID)
}
