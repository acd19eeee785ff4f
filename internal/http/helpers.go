package http

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"unfinial/internal/core"
	"unfinial/internal/format"
	applog "unfinial/internal/log"
	appweb "unfinial/web"
)

// templateFuncs are available to every page and partial.
var templateFuncs = template.FuncMap{
	"idr":        format.IDR,
	"pct":        format.Pct,
	"score":      format.Score,
	"monthLabel": format.MonthLabel,
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// isHTMX reports whether r was issued by HTMX and expects a partial.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// redirect sends the browser to target: a 303 for plain requests, an
// HX-Redirect for HTMX ones.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(target).Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// render executes the named template into a buffer and writes it through
// resp. Nothing is sent when the template fails.
func (s *Server) render(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		InternalServerError("Template tidak tersedia.").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		fields := applog.NewFields()
		fields["template"] = name
		s.structured.LogError(r.Context(), "Template render failed", err, applog.ComponentTemplate, applog.OpRender, fields)
		InternalServerError("Gagal menampilkan halaman.").Write(w)
		return
	}
	resp.BodyHTML(buf.String()).Write(w)
}

// currentUser decodes the stored user record. A missing or malformed
// record yields nil.
func (s *Server) currentUser(ctx context.Context, sessionID string) *core.User {
	raw, ok := s.auth.UserJSON(ctx, sessionID)
	if !ok {
		return nil
	}
	var u core.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil
	}
	return &u
}

// errorMessage is the text shown for err, with fallback for empty messages.
func errorMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
