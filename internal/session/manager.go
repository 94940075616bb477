// Package session owns the credential lifecycle: login, token refresh, and
// logout against the remote method-style API.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/agentchat/internal/creds"
	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/errs"
)

// whoAmIPath is the authenticated endpoint used to refresh the anti-forgery
// token. Standard Frappe method, independent of the app-specific prefix.
const whoAmIPath = "/api/method/frappe.auth.get_logged_user"

const maxLoginBodySize = 1 << 20 // 1MB

// Config holds the endpoint contract for a Manager.
type Config struct {
	BaseURL        string
	AllowedOrigins []string
	CSRFHeader     string
	LoginPath      string
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Manager implements the session state machine: Anonymous -> login ->
// Authenticated -> logout -> Anonymous. There is no automatic
// re-authentication when a token expires mid-flight.
type Manager struct {
	baseURL    string
	origins    []string
	csrfHeader string
	loginPath  string
	creds      *creds.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// NewManager creates a session manager backed by the given credential store.
func NewManager(cfg Config, store *creds.Store) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Manager{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		origins:    cfg.AllowedOrigins,
		csrfHeader: cfg.CSRFHeader,
		loginPath:  cfg.LoginPath,
		creds:      store,
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the configured server base URL without a trailing slash.
func (m *Manager) BaseURL() string {
	return m.baseURL
}

// Client returns the HTTP client shared by all authenticated calls.
func (m *Manager) Client() *http.Client {
	return m.httpClient
}

// CSRFHeader returns the anti-forgery token header name.
func (m *Manager) CSRFHeader() string {
	return m.csrfHeader
}

// Session returns the current session, or nil when anonymous.
func (m *Manager) Session(ctx context.Context) *domain.Session {
	return m.creds.LoadSession(ctx)
}

// Hints returns best-effort login hints, or nil when none are stored.
func (m *Manager) Hints(ctx context.Context) *domain.LoginHints {
	return m.creds.LoadLoginHints(ctx)
}

// AuthHeaders builds the headers every authenticated call must carry: the
// anti-forgery token and, unless the transport's cookie jar owns the session
// cookie, an explicit sid cookie.
func (m *Manager) AuthHeaders(ctx context.Context) http.Header {
	h := http.Header{}
	sess := m.creds.LoadSession(ctx)
	if sess == nil {
		return h
	}
	if sess.CSRFToken != "" {
		h.Set(m.csrfHeader, sess.CSRFToken)
	}
	if !sess.JarManaged() {
		h.Set("Cookie", "sid="+url.QueryEscape(sess.SID))
	}
	return h
}

// checkEndpoint enforces HTTPS and the origin allow-list before any network
// call is issued.
func (m *Manager) checkEndpoint() error {
	u, err := url.Parse(m.baseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: unparseable endpoint %q", errs.ErrConfiguration, m.baseURL)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: insecure endpoint blocked, use https", errs.ErrConfiguration)
	}
	origin := u.Scheme + "://" + u.Host
	for _, allowed := range m.origins {
		if strings.TrimRight(allowed, "/") == origin {
			return nil
		}
	}
	return fmt.Errorf("%w: origin %s not in allow-list", errs.ErrConfiguration, origin)
}

// Login submits credentials and persists the resulting session.
//
// The session identifier is resolved in order: sid cookie on the response,
// jar-managed sentinel when the HTTP client carries a cookie jar, then a sid
// field in the JSON body. A response yielding none of these is a protocol
// error. The immediate token refresh afterwards is best effort.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := m.checkEndpoint(); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("usr", username)
	form.Set("pwd", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+m.loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			m.logger.Warn("failed to close login response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: login rejected with status %d", errs.ErrAuthentication, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoginBodySize))
		return &errs.RequestError{
			Status:     resp.StatusCode,
			StatusText: resp.Status,
			Body:       string(body),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginBodySize))
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}

	sid := sidFromResponse(resp, body, m.httpClient.Jar != nil)
	if sid == "" {
		return fmt.Errorf("%w: login response carried no session identifier", errs.ErrProtocol)
	}

	m.creds.SaveSession(ctx, &domain.Session{
		SID:       sid,
		CSRFToken: resp.Header.Get(m.csrfHeader),
		Username:  username,
	})
	m.creds.SaveLoginHints(ctx, domain.LoginHints{
		LastServerURL: m.baseURL,
		LastUsername:  username,
	})

	// Best effort: some servers only mint the anti-forgery token on an
	// authenticated follow-up call.
	m.RefreshToken(ctx)

	return nil
}

// RefreshToken issues an authenticated who-am-I call and updates the stored
// anti-forgery token when the response carries one. A missing token means
// "unchanged". Never fails the caller; the current token is returned, empty
// when anonymous.
func (m *Manager) RefreshToken(ctx context.Context) string {
	sess := m.creds.LoadSession(ctx)
	if sess == nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+whoAmIPath, nil)
	if err != nil {
		m.logger.Debug("build token refresh request failed", "error", err)
		return sess.CSRFToken
	}
	for key, values := range m.AuthHeaders(ctx) {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Debug("token refresh failed", "error", err)
		return sess.CSRFToken
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if token := resp.Header.Get(m.csrfHeader); token != "" && token != sess.CSRFToken {
		sess.CSRFToken = token
		m.creds.SaveSession(ctx, sess)
	}
	return sess.CSRFToken
}

// Logout destroys the persisted session unconditionally. Idempotent.
func (m *Manager) Logout(ctx context.Context) {
	m.creds.ClearSession(ctx)
}

// sidFromResponse resolves the session identifier from a successful login
// response, in the documented precedence order.
func sidFromResponse(resp *http.Response, body []byte, jarManaged bool) string {
	for _, c := range resp.Cookies() {
		if c.Name == "sid" && c.Value != "" {
			return c.Value
		}
	}
	if jarManaged {
		return domain.SIDJarManaged
	}
	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.SID != "" {
		return parsed.SID
	}
	return ""
}
