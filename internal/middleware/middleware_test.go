package middleware

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/justinas/nosurf"

	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/ratelimit"
	"boq-portal.kz/internal/roles"
	"boq-portal.kz/internal/viewas"
)

func strPtr(s string) *string { return &s }

func testUsers() map[int64]*models.User {
	return map[int64]*models.User{
		1: {ID: 1, FirstName: "Админ", IsActive: true, RoleName: strPtr("admin")},
		2: {ID: 2, FirstName: "Бауыржан", IsActive: true, RoleName: strPtr("Buyer")},
		3: {ID: 3, FirstName: "Отключен", IsActive: false, RoleName: strPtr("estimator")},
	}
}

func loaderFor(users map[int64]*models.User) UserLoader {
	return func(id int64) (*models.User, error) {
		u, ok := users[id]
		if !ok {
			return nil, errors.New("not found")
		}
		return u, nil
	}
}

// testServer поднимает chi-роутер с сессиями. /_login?id=N и /_view?role=R
// выставляют состояние сессии напрямую.
func testServer(t *testing.T, mount func(r chi.Router)) *httptest.Server {
	t.Helper()
	sm := scs.New()
	sm.Store = memstore.New()
	views := viewas.NewManager(sm)
	load := loaderFor(testUsers())

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	r.Get("/_login", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		sm.Put(r.Context(), SessionUserIDKey, id)
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireAuthentication(sm, load), ResolveView(views))
		r.Get("/_view", func(w http.ResponseWriter, r *http.Request) {
			real, _ := RealIdentity(r.Context())
			if err := views.SetRoleView(r.Context(), real, roles.ResolveToken(r.URL.Query().Get("role")), 0, "", nil); err != nil {
				http.Error(w, err.Error(), http.StatusForbidden)
			}
		})
		mount(r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func mustGet(t *testing.T, c *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	resp.Body.Close()
	return resp
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
		want     string
		redirect bool
	}{
		{"/estimator/boq/42", "project-manager", "/project-manager/boq/42", true},
		{"/buyer/dashboard", "admin", "/admin/dashboard", true},
		{"/buyer", "admin", "/admin/dashboard", true},
		{"/buyer/", "admin", "/admin/dashboard", true},
		{"/project-manager/boq/42", "project-manager", "/project-manager/boq/42", false},
		{"/admin", "admin", "/admin", false},
		{"/user/dashboard", "site-engineer", "/site-engineer/dashboard", true},
	}
	for _, tt := range tests {
		got, redirect := CanonicalPath(tt.path, tt.expected)
		if got != tt.want || redirect != tt.redirect {
			t.Errorf("CanonicalPath(%q, %q) = (%q, %v), want (%q, %v)", tt.path, tt.expected, got, redirect, tt.want, tt.redirect)
		}
	}
}

func TestCanonicalPathIsFixedPoint(t *testing.T) {
	for _, d := range roles.All() {
		for _, p := range []string{"/estimator/boq/42", "/x", "/admin/roles"} {
			first, _ := CanonicalPath(p, d.Slug)
			second, redirect := CanonicalPath(first, d.Slug)
			if redirect || second != first {
				t.Errorf("%s: second pass %q -> (%q, %v)", d.Slug, first, second, redirect)
			}
		}
	}
}

func mountGuarded(r chi.Router) {
	r.Route("/{role}", func(r chi.Router) {
		r.Use(RouteGuard)
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			view, _ := ViewFromContext(r.Context())
			w.Header().Set("X-Effective", string(view.Effective))
			w.Header().Set("X-Real", string(view.Real.Role))
		})
	})
}

func TestRouteGuard(t *testing.T) {
	srv := testServer(t, mountGuarded)

	t.Run("без входа", func(t *testing.T) {
		c := newClient(t)
		resp := mustGet(t, c, srv.URL+"/buyer/dashboard")
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
			t.Errorf("got %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}
	})

	t.Run("покупатель на чужом slug", func(t *testing.T) {
		c := newClient(t)
		mustGet(t, c, srv.URL+"/_login?id=2")
		resp := mustGet(t, c, srv.URL+"/admin/users?page=2")
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/buyer/users?page=2" {
			t.Errorf("Location = %q", loc)
		}
		resp = mustGet(t, c, srv.URL+"/buyer/purchases")
		if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Effective") != "buyer" {
			t.Errorf("got %d effective=%q", resp.StatusCode, resp.Header.Get("X-Effective"))
		}
	})

	t.Run("покупатель не может включить просмотр", func(t *testing.T) {
		c := newClient(t)
		mustGet(t, c, srv.URL+"/_login?id=2")
		if resp := mustGet(t, c, srv.URL+"/_view?role=admin"); resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("админ в режиме просмотра", func(t *testing.T) {
		c := newClient(t)
		mustGet(t, c, srv.URL+"/_login?id=1")
		if resp := mustGet(t, c, srv.URL+"/_view?role=projectManager"); resp.StatusCode != http.StatusOK {
			t.Fatalf("view status = %d", resp.StatusCode)
		}
		resp := mustGet(t, c, srv.URL+"/estimator/boq/42")
		if loc := resp.Header.Get("Location"); resp.StatusCode != http.StatusSeeOther || loc != "/project-manager/boq/42" {
			t.Fatalf("got %d %q", resp.StatusCode, loc)
		}
		resp = mustGet(t, c, srv.URL+"/project-manager/boq/42")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if resp.Header.Get("X-Effective") != "projectManager" || resp.Header.Get("X-Real") != "admin" {
			t.Errorf("effective=%q real=%q", resp.Header.Get("X-Effective"), resp.Header.Get("X-Real"))
		}
	})

	t.Run("отключенный пользователь", func(t *testing.T) {
		c := newClient(t)
		mustGet(t, c, srv.URL+"/_login?id=3")
		resp := mustGet(t, c, srv.URL+"/estimator/dashboard")
		if loc := resp.Header.Get("Location"); loc != "/login?err=session_invalid" {
			t.Errorf("Location = %q", loc)
		}
	})
}

func TestRequireRoleUsesRealIdentity(t *testing.T) {
	srv := testServer(t, func(r chi.Router) {
		r.With(RequireRole(roles.Admin)).Get("/manage", func(w http.ResponseWriter, r *http.Request) {})
	})

	c := newClient(t)
	mustGet(t, c, srv.URL+"/_login?id=1")
	mustGet(t, c, srv.URL+"/_view?role=buyer")
	if resp := mustGet(t, c, srv.URL+"/manage"); resp.StatusCode != http.StatusOK {
		t.Errorf("admin previewing buyer: status = %d", resp.StatusCode)
	}

	c = newClient(t)
	mustGet(t, c, srv.URL+"/_login?id=2")
	if resp := mustGet(t, c, srv.URL+"/manage"); resp.StatusCode != http.StatusForbidden {
		t.Errorf("buyer: status = %d", resp.StatusCode)
	}
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	h := RequireRole(roles.Admin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manage", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIdentityFromUser(t *testing.T) {
	legacy := int64(6)
	tests := []struct {
		name string
		user *models.User
		want roles.Role
	}{
		{"по имени", &models.User{ID: 1, RoleName: strPtr("Technical Director")}, roles.TechnicalDirector},
		{"по старому id", &models.User{ID: 2, RoleLegacyID: &legacy}, roles.ProjectManager},
		{"без роли", &models.User{ID: 3}, roles.Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := IdentityFromUser(tt.user)
			if id.Role != tt.want || id.UserID != tt.user.ID {
				t.Errorf("got %+v, want role %q", id, tt.want)
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewKeyed(0.001, 2, time.Minute)
	h := RateLimitMiddleware(limiter)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other ip: status = %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Errorf("RemoteAddr: %q", got)
	}
	req.Header.Set("X-Real-IP", "198.51.100.7")
	if got := ClientIP(req); got != "198.51.100.7" {
		t.Errorf("X-Real-IP: %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.5" {
		t.Errorf("X-Forwarded-For: %q", got)
	}
}

func TestMetricsMiddlewareKeepsStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/x/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x/1", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("generated id %q, header %q", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("incoming id not kept: %q", seen)
	}
}

func TestViewFromContextMissing(t *testing.T) {
	if _, ok := ViewFromContext(context.Background()); ok {
		t.Error("expected no view")
	}
	if CurrentUser(context.Background()) != nil {
		t.Error("expected nil user")
	}
}

func TestCSRFOverPlainHTTP(t *testing.T) {
	srv := httptest.NewServer(CSRF(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, nosurf.Token(r))
	})))
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Jar: jar}

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	token := string(b)
	if token == "" {
		t.Fatal("empty token")
	}

	host := strings.TrimPrefix(srv.URL, "http://")
	tests := []struct {
		name   string
		origin string
		token  string
		want   int
	}{
		{"same origin with token", "http://" + host, token, http.StatusOK},
		{"same origin without token", "http://" + host, "", http.StatusForbidden},
		{"https origin on plain http", "https://" + host, token, http.StatusForbidden},
		{"foreign origin", "http://evil.example", token, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			if tt.token != "" {
				form.Set("csrf_token", tt.token)
			}
			req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Origin", tt.origin)
			resp, err := c.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestIsTLSRequest(t *testing.T) {
	plain := httptest.NewRequest(http.MethodPost, "http://boq.kz/login", nil)
	secure := httptest.NewRequest(http.MethodPost, "https://boq.kz/login", nil)
	secure.TLS = &tls.ConnectionState{}

	tests := []struct {
		name       string
		production bool
		r          *http.Request
		want       bool
	}{
		{"development plain", false, plain, false},
		{"development tls", false, secure, true},
		{"production behind proxy", true, plain, true},
		{"production tls", true, secure, true},
	}
	for _, tt := range tests {
		if got := isTLSRequest(tt.production)(tt.r); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestResolveViewOverride(t *testing.T) {
	srv := testServer(t, func(r chi.Router) {
		r.Get("/_state", func(w http.ResponseWriter, r *http.Request) {
			view, _ := ViewFromContext(r.Context())
			w.Header().Set("X-Effective", view.Effective.String())
			w.Header().Set("X-Previewing", strconv.FormatBool(view.Previewing()))
			if view.Override != nil {
				w.Header().Set("X-Override", view.Override.Role.String())
			}
		})
	})
	c := newClient(t)
	mustGet(t, c, srv.URL+"/_login?id=1")

	tests := []struct {
		role       string
		effective  string
		previewing string
		override   string
	}{
		{"buyer", "buyer", "true", "buyer"},
		{"admin", "admin", "false", ""},
		{"estimator", "estimator", "true", "estimator"},
	}
	for _, tt := range tests {
		mustGet(t, c, srv.URL+"/_view?role="+tt.role)
		resp := mustGet(t, c, srv.URL+"/_state")
		if got := resp.Header.Get("X-Effective"); got != tt.effective {
			t.Errorf("%s: effective = %q", tt.role, got)
		}
		if got := resp.Header.Get("X-Previewing"); got != tt.previewing {
			t.Errorf("%s: previewing = %q", tt.role, got)
		}
		if got := resp.Header.Get("X-Override"); got != tt.override {
			t.Errorf("%s: override = %q", tt.role, got)
		}
	}
}
