package http

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"unfinial/internal/core"
	"unfinial/internal/dashboard"
	applog "unfinial/internal/log"
)

// dashboardPage is the data behind the dashboard page and its partials.
type dashboardPage struct {
	User       *core.User
	View       dashboard.View
	Horizons   []int
	Today      string
	APIBaseURL string
}

// authorize returns the session id and its token. Without a token the
// client is sent to the login page and ok is false. Authorized requests wait
// on the backend, so their write deadline is lifted.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (sid, token string, ok bool) {
	sid = s.cookies.ID(r)
	token, ok = s.auth.Token(r.Context(), sid)
	if !ok {
		redirect(w, r, "/login")
		return "", "", false
	}
	holdOpen(w)
	return sid, token, true
}

// holdOpen clears the server write deadline for a response that waits on the
// backend. Backend calls have no time limit of their own.
func holdOpen(w http.ResponseWriter) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
}

// stale reports whether a full page visit should reload v. A load finished
// moments ago (the redirect after a form post) is reused.
func (s *Server) stale(v dashboard.View) bool {
	return v.LoadedAt.IsZero() || time.Since(v.LoadedAt) >= s.reloadAfter
}

func (s *Server) pageData(r *http.Request, sid string, v dashboard.View) dashboardPage {
	return dashboardPage{
		User:       s.currentUser(r.Context(), sid),
		View:       v,
		Horizons:   core.PredictionHorizons,
		Today:      core.Today(),
		APIBaseURL: s.apiBaseURL,
	}
}

// respond finishes a dashboard action: HTMX receives the refreshed content,
// plain form posts are redirected back to the page.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sid string, d *dashboard.Dashboard) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, NewHTMXResponse(), "dashboard_content", s.pageData(r, sid, d.Snapshot()))
}

// handleDashboard shows the dashboard. Every full page visit reloads it
// unless it was loaded within reloadAfter; HTMX requests reuse what is held.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}
	sid, token, ok := s.authorize(w, r)
	if !ok {
		return
	}

	d, created := s.dashboards.Get(sid)
	if created || (!isHTMX(r) && s.stale(d.Snapshot())) {
		// Failures are shown in the view.
		_ = d.LoadAll(r.Context(), token)
	}

	name := "dashboard_page"
	if isHTMX(r) {
		name = "dashboard_content"
	}
	s.render(w, r, NewHTMXResponse(), name, s.pageData(r, sid, d.Snapshot()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sid, token, ok := s.authorize(w, r)
	if !ok {
		return
	}
	d, _ := s.dashboards.Get(sid)
	_ = d.LoadAll(r.Context(), token)
	s.respond(w, r, sid, d)
}

// handlePrediction changes the forecast horizon or model, which reloads the
// whole dashboard.
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	sid, token, ok := s.authorize(w, r)
	if !ok {
		return
	}
	months, model := parsePredictionQuery(r.URL.Query())
	applog.FromContext(r.Context()).WithComponent(applog.ComponentDashboard).DebugContext(r.Context(),
		"Prediction parameters changed", applog.FieldHorizon, months, applog.FieldModel, model)

	d, _ := s.dashboards.Get(sid)
	_ = d.SetPrediction(r.Context(), token, months, model)
	s.respond(w, r, sid, d)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	sid, token, ok := s.authorize(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	tx := parseTransactionForm(r.PostForm)
	d, _ := s.dashboards.Get(sid)
	if err := d.AddTransaction(ctx, token, tx); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentDashboard).WarnContext(ctx, "Transaction not created",
			applog.NewFields().
				WithSession(sid).
				WithTransaction(string(tx.Type), tx.Category).
				WithOperation(applog.OpCreate).
				WithError(err).
				ToSlice()...)
	} else {
		atomic.AddInt64(&s.appMetrics.transactions, 1)
		s.structured.LogTransactionCreated(ctx, sid, string(tx.Type), tx.Category)
	}
	s.respond(w, r, sid, d)
}

// handleUpload forwards a CSV/XLSX export to the backend. A request without
// a file changes nothing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sid, token, ok := s.authorize(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	d, _ := s.dashboards.Get(sid)

	file, header, err := parseUpload(w, r)
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	switch {
	case errors.Is(err, http.ErrMissingFile):
		s.respond(w, r, sid, d)
		return
	case err != nil:
		d.Reject(err.Error())
		s.respond(w, r, sid, d)
		return
	}
	defer file.Close()

	res, err := d.Upload(ctx, token, header.Filename, file)
	if err != nil {
		s.structured.LogError(ctx, "Upload failed", err, applog.ComponentDashboard, applog.OpUpload,
			applog.NewFields().WithSession(sid).WithUpload(header.Filename, 0, 0))
	} else {
		atomic.AddInt64(&s.appMetrics.uploads, 1)
		s.structured.LogUpload(ctx, sid, header.Filename, res.InsertedRows, res.SkippedRows)
	}
	s.respond(w, r, sid, d)
}

// handleChat relays a question. HTMX receives only the chat panel.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	sid, token, ok := s.authorize(w, r)
	if !ok {
		return
	}

	question := sanitizeInput(r.PostForm.Get("question"))
	d, _ := s.dashboards.Get(sid)
	if question != "" {
		atomic.AddInt64(&s.appMetrics.chatQuestions, 1)
		d.SendChat(r.Context(), token, question)
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/dashboard#chat", http.StatusSeeOther)
		return
	}
	s.render(w, r, NewHTMXResponse(), "chat_panel", s.pageData(r, sid, d.Snapshot()))
}
