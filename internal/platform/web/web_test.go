package web_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "defectwatch/internal/platform/errors"
	"defectwatch/internal/platform/web"
)

func reqWithID(method, path, rid string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(web.WithRequest(req.Context(), rid, 0))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) web.Envelope {
	t.Helper()
	var env web.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("envelope decode: %v: %s", err, rec.Body.String())
	}
	return env
}

func TestRespondOK(t *testing.T) {
	rec := httptest.NewRecorder()
	web.RespondOK(rec, reqWithID("GET", "/x", "rid-1"), map[string]string{"a": "b"})

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type = %q", ct)
	}
	env := decodeEnvelope(t, rec)
	if env.StatusCode != 200 || env.RequestID != "rid-1" || env.Data == nil {
		t.Fatalf("bad envelope: %+v", env)
	}
}

func TestRespondErrorCarriesCodeAndReason(t *testing.T) {
	rec := httptest.NewRecorder()
	web.RespondError(rec, reqWithID("GET", "/x", "rid-2"), perr.InsufficientDataf("need more rows"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d, want 422", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Reason != "insufficient_data" {
		t.Fatalf("reason = %q", env.Reason)
	}
	if env.Error != "need more rows" {
		t.Fatalf("error = %q", env.Error)
	}
}

func TestAssignRequestID(t *testing.T) {
	var seen string
	h := web.AssignRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = web.RequestID(r.Context())
	}))

	// generated when absent
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))
	if seen == "" {
		t.Fatal("no request id assigned")
	}
	if rec.Header().Get(web.RequestIDHeader) != seen {
		t.Fatalf("response header %q != context id %q", rec.Header().Get(web.RequestIDHeader), seen)
	}

	// honored when supplied
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set(web.RequestIDHeader, "caller-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "caller-id" {
		t.Fatalf("caller id not honored, got %q", seen)
	}
}

func TestRequireTenant(t *testing.T) {
	var seen int64
	h := web.RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = web.TenantID(r.Context())
		web.RespondOK(w, r, nil)
	}))

	cases := []struct {
		header string
		code   int
	}{
		{"", http.StatusUnprocessableEntity},
		{"abc", http.StatusUnprocessableEntity},
		{"0", http.StatusUnprocessableEntity},
		{"-3", http.StatusUnprocessableEntity},
		{"42", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/x", nil)
		if tc.header != "" {
			req.Header.Set(web.TenantHeader, tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.code {
			t.Fatalf("header %q: code = %d, want %d", tc.header, rec.Code, tc.code)
		}
	}
	if seen != 42 {
		t.Fatalf("tenant id = %d, want 42", seen)
	}
}

func TestRecover(t *testing.T) {
	h := web.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
}

type bindTarget struct {
	Name string   `json:"name" validate:"required"`
	Rate *float64 `json:"rate" validate:"omitempty,gte=0,lte=1"`
}

func TestBindJSON(t *testing.T) {
	ok := httptest.NewRequest("POST", "/x", strings.NewReader(`{"name":"m1","rate":0.2}`))
	var dst bindTarget
	if err := web.BindJSON(ok, &dst); err != nil {
		t.Fatalf("valid body rejected: %v", err)
	}
	if dst.Name != "m1" || dst.Rate == nil || *dst.Rate != 0.2 {
		t.Fatalf("decoded = %+v", dst)
	}

	empty := httptest.NewRequest("POST", "/x", strings.NewReader(""))
	if err := web.BindJSON(empty, &bindTarget{}); perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("empty body code = %v", perr.CodeOf(err))
	}

	invalid := httptest.NewRequest("POST", "/x", strings.NewReader(`{"rate":1.5}`))
	err := web.BindJSON(invalid, &bindTarget{})
	if perr.CodeOf(err) != perr.ErrorCodeValidation {
		t.Fatalf("validation code = %v", perr.CodeOf(err))
	}
	// field names come from json tags
	if msg := err.Error(); !strings.Contains(msg, "name") {
		t.Fatalf("message %q does not name the failing field", msg)
	}
}
