package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ashureev/agentchat/internal/creds"
	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/errs"
	"github.com/ashureev/agentchat/internal/kv"
)

const testCSRFHeader = "X-Frappe-CSRF-Token"

// countingTransport counts requests so tests can assert that configuration
// failures never touch the network.
type countingTransport struct {
	inner http.RoundTripper
	count atomic.Int64
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.count.Add(1)
	return c.inner.RoundTrip(req)
}

func newTestCreds(t *testing.T, serverURL string) *creds.Store {
	t.Helper()
	backing, err := kv.NewStore(kv.StoreTypeMemory)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = backing.Close() })
	return creds.NewStore(backing, serverURL, nil)
}

func newTestManager(t *testing.T, srv *httptest.Server, jar bool) (*Manager, *countingTransport) {
	t.Helper()
	client := srv.Client()
	counter := &countingTransport{inner: client.Transport}
	client.Transport = counter
	if jar {
		j, err := cookiejar.New(nil)
		if err != nil {
			t.Fatalf("new cookie jar: %v", err)
		}
		client.Jar = j
	}
	m := NewManager(Config{
		BaseURL:        srv.URL,
		AllowedOrigins: []string{srv.URL},
		CSRFHeader:     testCSRFHeader,
		LoginPath:      "/api/method/login",
		HTTPClient:     client,
	}, newTestCreds(t, srv.URL))
	return m, counter
}

// loginHandler mimics the remote login contract: form credentials in, sid
// cookie and anti-forgery token out.
func loginHandler(t *testing.T, setCookie bool, body string) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/method/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse login form: %v", err)
		}
		if r.PostFormValue("usr") != "user@example.com" || r.PostFormValue("pwd") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if setCookie {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "sid-value", Path: "/"})
		}
		w.Header().Set(testCSRFHeader, "csrf-token")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc(whoAmIPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(testCSRFHeader, "csrf-token")
		_, _ = w.Write([]byte(`{"message":"user@example.com"}`))
	})
	return mux
}

func TestLoginBlocksInsecureEndpoint(t *testing.T) {
	counter := &countingTransport{inner: http.DefaultTransport}
	m := NewManager(Config{
		BaseURL:        "http://chat.example.com",
		AllowedOrigins: []string{"http://chat.example.com"},
		CSRFHeader:     testCSRFHeader,
		LoginPath:      "/api/method/login",
		HTTPClient:     &http.Client{Transport: counter},
	}, newTestCreds(t, "http://chat.example.com"))

	err := m.Login(context.Background(), "user@example.com", "secret")
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if counter.count.Load() != 0 {
		t.Errorf("insecure endpoint caused %d network calls", counter.count.Load())
	}
}

func TestLoginBlocksUnlistedOrigin(t *testing.T) {
	srv := httptest.NewTLSServer(loginHandler(t, true, `{"message":"Logged In"}`))
	defer srv.Close()

	client := srv.Client()
	counter := &countingTransport{inner: client.Transport}
	client.Transport = counter
	m := NewManager(Config{
		BaseURL:        srv.URL,
		AllowedOrigins: []string{"https://other.example.com"},
		CSRFHeader:     testCSRFHeader,
		LoginPath:      "/api/method/login",
		HTTPClient:     client,
	}, newTestCreds(t, srv.URL))

	err := m.Login(context.Background(), "user@example.com", "secret")
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if counter.count.Load() != 0 {
		t.Errorf("unlisted origin caused %d network calls", counter.count.Load())
	}
}

func TestLoginRejectedCredentials(t *testing.T) {
	srv := httptest.NewTLSServer(loginHandler(t, true, `{"message":"Logged In"}`))
	defer srv.Close()
	m, _ := newTestManager(t, srv, false)

	ctx := context.Background()
	err := m.Login(ctx, "user@example.com", "wrong")
	if !errors.Is(err, errs.ErrAuthentication) {
		t.Fatalf("error = %v, want ErrAuthentication", err)
	}
	if m.Session(ctx) != nil {
		t.Error("rejected login persisted a session")
	}
}

func TestLoginServerError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	m, _ := newTestManager(t, srv, false)

	err := m.Login(context.Background(), "user@example.com", "secret")
	var reqErr *errs.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *errs.RequestError", err)
	}
	if reqErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", reqErr.Status)
	}
}

func TestLoginSuccessWithCookie(t *testing.T) {
	srv := httptest.NewTLSServer(loginHandler(t, true, `{"message":"Logged In"}`))
	defer srv.Close()
	m, _ := newTestManager(t, srv, false)

	ctx := context.Background()
	if err := m.Login(ctx, "user@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	sess := m.Session(ctx)
	if sess == nil {
		t.Fatal("no session persisted")
	}
	if sess.SID != "sid-value" {
		t.Errorf("sid = %q, want sid-value", sess.SID)
	}
	if sess.CSRFToken != "csrf-token" {
		t.Errorf("csrf token = %q", sess.CSRFToken)
	}
	if sess.Username != "user@example.com" {
		t.Errorf("username = %q", sess.Username)
	}

	hints := m.Hints(ctx)
	if hints == nil || hints.LastUsername != "user@example.com" {
		t.Errorf("hints = %+v", hints)
	}

	headers := m.AuthHeaders(ctx)
	if headers.Get(testCSRFHeader) != "csrf-token" {
		t.Errorf("auth headers missing csrf token: %v", headers)
	}
	if headers.Get("Cookie") != "sid=sid-value" {
		t.Errorf("auth headers cookie = %q", headers.Get("Cookie"))
	}
}

func TestLoginSIDFromBody(t *testing.T) {
	srv := httptest.NewTLSServer(loginHandler(t, false, `{"message":"Logged In","sid":"body-sid"}`))
	defer srv.Close()
	m, _ := newTestManager(t, srv, false)

	ctx := context.Background()
	if err := m.Login(ctx, "user@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	sess := m.Session(ctx)
	if sess == nil || sess.SID != "body-sid" {
		t.Errorf("session = %+v, want sid from body", sess)
	}
}

func TestLoginJarManaged(t *testing.T) {
	srv := httptest.NewTLSServer(loginHandler(t, false, `{"message":"Logged In"}`))
	defer srv.Close()
	m, _ := newTestManager(t, srv, true)

	ctx := context.Background()
	if err := m.Login(ctx, "user@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	sess := m.Session(ctx)
	if sess == nil || sess.SID != domain.SIDJarManaged {
		t.Fatalf("session = %+v, want jar-managed sentinel", sess)
	}
	if got := m.AuthHeaders(ctx).Get("Cookie"); got != "" {
		t.Errorf("jar-managed session still sets Cookie header %q", got)
	}
}

func TestLoginWithoutAnySID(t *testing.T) {
	srv := httptest.NewTLSServer(loginHandler(t, false, `{"message":"Logged In"}`))
	defer srv.Close()
	m, _ := newTestManager(t, srv, false)

	err := m.Login(context.Background(), "user@example.com", "secret")
	if !errors.Is(err, errs.ErrProtocol) {
		t.Fatalf("error = %v, want ErrProtocol", err)
	}
}

func TestRefreshTokenUpdatesStoredToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(whoAmIPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "sid=existing-sid" {
			t.Errorf("refresh carried cookie %q", r.Header.Get("Cookie"))
		}
		w.Header().Set(testCSRFHeader, "fresh-token")
		_, _ = w.Write([]byte(`{"message":"user@example.com"}`))
	})
	srv := httptest.NewTLSServer(mux)
	defer srv.Close()
	m, _ := newTestManager(t, srv, false)

	ctx := context.Background()
	m.creds.SaveSession(ctx, &domain.Session{SID: "existing-sid", CSRFToken: "old", Username: "user@example.com"})

	if got := m.RefreshToken(ctx); got != "fresh-token" {
		t.Fatalf("refreshed token = %q, want fresh-token", got)
	}
	if sess := m.Session(ctx); sess == nil || sess.CSRFToken != "fresh-token" {
		t.Errorf("stored session = %+v, want updated token", sess)
	}
}

func TestRefreshTokenAnonymous(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()
	m, counter := newTestManager(t, srv, false)

	if got := m.RefreshToken(context.Background()); got != "" {
		t.Errorf("anonymous refresh returned %q", got)
	}
	if counter.count.Load() != 0 {
		t.Errorf("anonymous refresh made %d network calls", counter.count.Load())
	}
}

func TestLogoutIdempotent(t *testing.T) {
	srv := httptest.NewTLSServer(loginHandler(t, true, `{"message":"Logged In"}`))
	defer srv.Close()
	m, _ := newTestManager(t, srv, false)

	ctx := context.Background()
	if err := m.Login(ctx, "user@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	m.Logout(ctx)
	if m.Session(ctx) != nil {
		t.Error("session survived logout")
	}
	m.Logout(ctx)
	if len(m.AuthHeaders(ctx)) != 0 {
		t.Error("anonymous auth headers not empty")
	}
}
