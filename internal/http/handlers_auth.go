package http

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	applog "unfinial/internal/log"
)

const (
	authFailed    = "Terjadi error."
	sessionFailed = "Gagal menyimpan sesi. Coba lagi."
)

type landingPage struct {
	APIBaseURL string
}

type loginPage struct {
	Mode       string
	Name       string
	Email      string
	Error      string
	APIBaseURL string
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Halaman tidak ditemukan.").Write(w)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}
	s.render(w, r, NewHTMXResponse(), "landing_page", landingPage{APIBaseURL: s.apiBaseURL})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		page := loginPage{Mode: parseMode(r.URL.Query().Get("mode")), APIBaseURL: s.apiBaseURL}
		s.render(w, r, NewHTMXResponse(), "login_page", page)
	case http.MethodPost:
		s.handleLoginSubmit(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// handleLoginSubmit registers (in register mode) and logs in. On any failure
// the form is shown again with the error and the session is left untouched.
func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAuth)

	form := parseLoginForm(r.PostForm)
	page := loginPage{Mode: form.Mode, Name: form.Name, Email: form.Email, APIBaseURL: s.apiBaseURL}
	fail := func(op string, err error, shown string) {
		atomic.AddInt64(&s.appMetrics.loginFailures, 1)
		logger.WarnContext(ctx, "Authentication failed",
			applog.FieldOperation, op, applog.FieldError, err)
		if shown == "" {
			shown = errorMessage(err, authFailed)
		}
		page.Error = shown
		s.render(w, r, NewHTMXResponse(), "login_page", page)
	}

	if err := form.validate(); err != nil {
		fail(applog.OpLogin, err, "")
		return
	}
	holdOpen(w)
	if form.Mode == modeRegister {
		if _, err := s.backend.Register(ctx, form.Name, form.Email, form.Password); err != nil {
			fail(applog.OpRegister, err, "")
			return
		}
		atomic.AddInt64(&s.appMetrics.registrations, 1)
	}

	token, err := s.backend.Login(ctx, form.Email, form.Password)
	if err != nil {
		fail(applog.OpLogin, err, "")
		return
	}
	userJSON, err := json.Marshal(token.User)
	if err != nil {
		fail(applog.OpLogin, err, "")
		return
	}

	sid := s.cookies.Ensure(w, r)
	if err := s.auth.SetToken(ctx, sid, token.AccessToken); err != nil {
		fail(applog.OpLogin, err, sessionFailed)
		return
	}
	if err := s.auth.SetUserJSON(ctx, sid, string(userJSON)); err != nil {
		_ = s.auth.ClearToken(ctx, sid)
		fail(applog.OpLogin, err, sessionFailed)
		return
	}

	// A fresh login starts from a fresh dashboard and chat.
	s.dashboards.Remove(sid)
	atomic.AddInt64(&s.appMetrics.logins, 1)
	logger.InfoContext(ctx, "User logged in", applog.NewFields().
		WithSession(sid).
		WithOperation(applog.OpLogin).
		ToSlice()...)

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleLogout forgets the token and user record and drops the dashboard.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	sid := s.cookies.ID(r)
	if err := s.auth.ClearToken(ctx, sid); err != nil {
		s.structured.LogError(ctx, "Failed to clear session", err, applog.ComponentAuth, applog.OpLogout,
			applog.NewFields().WithSession(sid))
	}
	s.dashboards.Remove(sid)
	applog.FromContext(ctx).WithComponent(applog.ComponentAuth).InfoContext(ctx, "User logged out",
		applog.NewFields().WithSession(sid).WithOperation(applog.OpLogout).ToSlice()...)

	redirect(w, r, "/login")
}
