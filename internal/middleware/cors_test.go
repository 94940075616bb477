package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const csrfHeader = "X-Frappe-CSRF-Token"

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		allowed         []string
		origin          string
		wantOrigin      string
		wantCredentials string
	}{
		{
			name:            "explicit origin allowed with credentials",
			allowed:         []string{"https://app.example.com"},
			origin:          "https://app.example.com",
			wantOrigin:      "https://app.example.com",
			wantCredentials: "true",
		},
		{
			name:            "wildcard echoes origin without credentials",
			allowed:         []string{"*"},
			origin:          "https://anywhere.example.com",
			wantOrigin:      "https://anywhere.example.com",
			wantCredentials: "",
		},
		{
			name:            "unlisted origin gets no headers",
			allowed:         []string{"https://app.example.com"},
			origin:          "https://evil.example.com",
			wantOrigin:      "",
			wantCredentials: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.allowed, csrfHeader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/method/x", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredentials {
				t.Errorf("Allow-Credentials = %q, want %q", got, tt.wantCredentials)
			}
			if tt.wantOrigin != "" {
				if got := rec.Header().Get("Access-Control-Expose-Headers"); got != csrfHeader {
					t.Errorf("Expose-Headers = %q", got)
				}
			}
		})
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	reached := false
	handler := CORS([]string{"*"}, csrfHeader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/method/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if reached {
		t.Error("preflight request reached the inner handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
}
