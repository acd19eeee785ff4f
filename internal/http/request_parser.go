package http

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"unfinial/internal/core"
)

// maxUploadSize caps transaction uploads at 10 MiB.
const maxUploadSize = 10 << 20

const (
	modeLogin    = "login"
	modeRegister = "register"
)

var (
	errMissingCredentials = errors.New("Email dan password wajib diisi.")
	errMissingName        = errors.New("Nama wajib diisi.")
	errUploadTooLarge     = errors.New("Ukuran file maksimal 10 MB.")
	errUploadMalformed    = errors.New("Format upload tidak valid.")
	errUploadExtension    = errors.New("File harus berformat .csv atau .xlsx.")
)

// uploadExtensions are the export formats the backend can import.
var uploadExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

// loginForm is the submitted login or registration form.
type loginForm struct {
	Mode     string
	Name     string
	Email    string
	Password string
}

func parseMode(s string) string {
	if s == modeRegister {
		return modeRegister
	}
	return modeLogin
}

// parseLoginForm reads the login form. The email is normalized; the
// password is passed through untouched.
func parseLoginForm(form url.Values) loginForm {
	return loginForm{
		Mode:     parseMode(form.Get("mode")),
		Name:     sanitizeInput(form.Get("name")),
		Email:    core.SanitizeEmail(form.Get("email")),
		Password: form.Get("password"),
	}
}

func (f loginForm) validate() error {
	if f.Email == "" || f.Password == "" {
		return errMissingCredentials
	}
	if f.Mode == modeRegister && f.Name == "" {
		return errMissingName
	}
	return nil
}

// parseTransactionForm maps the entry form onto a new transaction. An
// unparsable amount is left at zero so validation rejects it.
func parseTransactionForm(form url.Values) core.NewTransaction {
	tx := core.NewTransaction{
		Type:     core.ParseTransactionType(form.Get("type")),
		Category: sanitizeInput(form.Get("category")),
		Date:     strings.TrimSpace(form.Get("date")),
	}
	if amount, err := core.ParseAmount(form.Get("amount")); err == nil {
		tx.Amount = amount
	}
	if note := sanitizeInput(form.Get("note")); note != "" {
		tx.Note = &note
	}
	return tx
}

// parsePredictionQuery reads the forecast selectors. Out-of-range values are
// normalized by the dashboard.
func parsePredictionQuery(query url.Values) (int, core.PredictionModel) {
	months, err := strconv.Atoi(strings.TrimSpace(query.Get("months")))
	if err != nil {
		months = core.DefaultHorizon
	}
	return months, core.ParsePredictionModel(strings.TrimSpace(query.Get("model")))
}

// parseUpload reads the "file" part of a multipart upload. A request without
// a file returns http.ErrMissingFile. The caller closes the file and removes
// the multipart form.
func parseUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if r.ContentLength > maxUploadSize {
		return nil, nil, errUploadTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, errUploadTooLarge
		}
		return nil, nil, errUploadMalformed
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, http.ErrMissingFile
		}
		return nil, nil, errUploadMalformed
	}
	if !uploadExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		_ = file.Close()
		return nil, nil, errUploadExtension
	}
	return file, header, nil
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Format permintaan tidak valid.")
	}
	return nil
}
