package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"unfinial/internal/api"
	"unfinial/internal/core"
	applog "unfinial/internal/log"
	"unfinial/internal/session"
)

// fakeAPI implements Backend in memory.
type fakeAPI struct {
	mu      sync.Mutex
	users   map[string]core.User
	pwds    map[string]string
	txs     []core.Transaction
	calls   map[string]int
	months  int
	model   core.PredictionModel
	pingErr error

	chatDelay time.Duration
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users: map[string]core.User{"owner@toko.id": {ID: 1, Name: "Toko Maju", Email: "owner@toko.id", Role: core.RoleOwner}},
		pwds:  map[string]string{"owner@toko.id": "rahasia123"},
		calls: make(map[string]int),
	}
}

func (f *fakeAPI) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeAPI) Register(_ context.Context, name, email, password string) (core.User, error) {
	f.hit("register")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return core.User{}, &api.HTTPError{StatusCode: http.StatusBadRequest, Message: "Email sudah terdaftar."}
	}
	u := core.User{ID: int64(len(f.users) + 1), Name: name, Email: email, Role: core.RoleOwner}
	f.users[email] = u
	f.pwds[email] = password
	return u, nil
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (core.Token, error) {
	f.hit("login")
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.pwds[email]; !ok || pw != password {
		return core.Token{}, &api.HTTPError{StatusCode: http.StatusUnauthorized, Message: "Email atau password salah."}
	}
	return core.Token{AccessToken: "tok-" + email, TokenType: "bearer", User: f.users[email]}, nil
}

func (f *fakeAPI) Summary(context.Context, string) (core.Summary, error) {
	f.hit("summary")
	return core.Summary{
		TotalRevenue:  18500000,
		TotalExpense:  11200000,
		NetProfit:     7300000,
		MarginPercent: 39.46,
		MonthlyTrend: []core.MonthlyTrendPoint{
			{Month: "2024-01-01", NetCashFlow: 2000000},
			{Month: "2024-02-01", NetCashFlow: 2500000},
		},
		Insights: []string{"Biaya operasional meningkat 22% dalam 2 bulan terakhir."},
	}, nil
}

func (f *fakeAPI) HealthScore(context.Context, string) (core.HealthScore, error) {
	f.hit("health")
	return core.HealthScore{HealthScore: 78.4, Interpretation: "Cukup sehat"}, nil
}

func (f *fakeAPI) ExpenseIntelligence(context.Context, string) (core.ExpenseIntelligence, error) {
	f.hit("intelligence")
	return core.ExpenseIntelligence{
		RecurringExpenses: []core.RecurringExpenseItem{{Category: "Sewa", AverageMonthlyAmount: 3000000, ActiveMonths: 6}},
		Recommendations:   []string{"Negosiasi ulang biaya sewa."},
	}, nil
}

func (f *fakeAPI) Prediction(_ context.Context, _ string, months int, model core.PredictionModel) (core.Prediction, error) {
	f.hit("prediction")
	f.mu.Lock()
	f.months, f.model = months, model
	f.mu.Unlock()
	return core.Prediction{ModelUsed: string(model), HorizonMonths: months}, nil
}

func (f *fakeAPI) ListTransactions(context.Context, string, core.Page) ([]core.Transaction, error) {
	f.hit("transactions")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Transaction(nil), f.txs...), nil
}

func (f *fakeAPI) CreateTransaction(_ context.Context, _ string, tx core.NewTransaction) (core.Transaction, error) {
	f.hit("create")
	f.mu.Lock()
	defer f.mu.Unlock()
	created := core.Transaction{ID: int64(len(f.txs) + 1), UserID: 1, Type: tx.Type, Category: tx.Category, Amount: tx.Amount, Date: tx.Date}
	f.txs = append([]core.Transaction{created}, f.txs...)
	return created, nil
}

func (f *fakeAPI) UploadTransactions(_ context.Context, _, _ string, file io.Reader) (core.UploadResult, error) {
	f.hit("upload")
	body, _ := io.ReadAll(file)
	rows := strings.Count(string(body), "\n") - 1
	return core.UploadResult{InsertedRows: rows, Message: "Berhasil import transaksi."}, nil
}

func (f *fakeAPI) Chat(_ context.Context, _, question string) (string, error) {
	f.hit("chat")
	time.Sleep(f.chatDelay)
	return "Jawaban untuk: " + question, nil
}

type testEnv struct {
	be     *fakeAPI
	store  *session.MemoryStore
	srv    *Server
	ts     *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, newFakeAPI(), 0)
}

// newTestEnvWith serves be with the given server write timeout (0 = none).
func newTestEnvWith(t *testing.T, be *fakeAPI, writeTimeout time.Duration) *testEnv {
	t.Helper()
	store := session.NewMemoryStore()
	logger := applog.New(applog.Config{Level: applog.ParseLevel("error"), Component: applog.ComponentApp, Output: io.Discard})

	srv, err := NewServer(Options{APIBaseURL: "http://api.test", RateLimitPerMinute: 1000}, Deps{
		Backend:  be,
		Sessions: store,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewUnstartedServer(srv.Handler)
	ts.Config.WriteTimeout = writeTimeout
	ts.Start()
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 5 * time.Second,
	}
	return &testEnv{be: be, store: store, srv: srv, ts: ts, client: client}
}

func (e *testEnv) sessionID(t *testing.T) string {
	t.Helper()
	u, _ := url.Parse(e.ts.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == session.CookieName {
			return c.Value
		}
	}
	return ""
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string, htmx bool) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	res, err := e.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	return res, string(b)
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values, htmx bool) (*http.Response, string) {
	t.Helper()
	return e.do(t, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", htmx)
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	res, body := e.postForm(t, "/login", url.Values{
		"email":    {"  Owner@Toko.ID "},
		"password": {"rahasia123"},
	}, false)
	if res.StatusCode != http.StatusSeeOther || res.Header.Get("Location") != "/dashboard" {
		t.Fatalf("login: status = %d, location = %q, body = %s", res.StatusCode, res.Header.Get("Location"), body)
	}
}

func assertRedirect(t *testing.T, res *http.Response, want string) {
	t.Helper()
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", res.StatusCode)
	}
	if got := res.Header.Get("Location"); got != want {
		t.Fatalf("Location = %q, want %q", got, want)
	}
}

func TestDashboardWithoutTokenRedirectsToLogin(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/dashboard", "/dashboard/prediction?months=3"} {
		res, _ := e.do(t, http.MethodGet, path, nil, "", false)
		assertRedirect(t, res, "/login")
	}

	res, _ := e.do(t, http.MethodGet, "/dashboard", nil, "", true)
	if got := res.Header.Get("HX-Redirect"); got != "/login" {
		t.Errorf("HTMX request HX-Redirect = %q, want /login", got)
	}
}

func TestLoginFailurePersistsNothing(t *testing.T) {
	e := newTestEnv(t)

	res, body := e.postForm(t, "/login", url.Values{
		"email":    {"owner@toko.id"},
		"password": {"salah"},
	}, false)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if !strings.Contains(body, "Email atau password salah.") {
		t.Errorf("login page does not show the backend message: %s", body)
	}
	if !strings.Contains(body, `action="/login"`) {
		t.Error("response is not the login page")
	}
	if e.store.Len() != 0 {
		t.Errorf("store has %d sessions after failed login", e.store.Len())
	}
	if e.sessionID(t) != "" {
		t.Error("failed login issued a session cookie")
	}
}

func TestLoginValidation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing password", url.Values{"email": {"a@b.id"}}, "Email dan password wajib diisi."},
		{"missing email", url.Values{"password": {"x"}}, "Email dan password wajib diisi."},
		{"register without name", url.Values{"mode": {"register"}, "email": {"a@b.id"}, "password": {"rahasia123"}}, "Nama wajib diisi."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			_, body := e.postForm(t, "/login", tt.form, false)
			if !strings.Contains(body, tt.want) {
				t.Errorf("body does not contain %q", tt.want)
			}
			if e.be.count("login")+e.be.count("register") != 0 {
				t.Error("invalid form reached the backend")
			}
		})
	}
}

func TestLoginStoresTokenAndUser(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	sid := e.sessionID(t)
	if sid == "" {
		t.Fatal("no session cookie after login")
	}
	ctx := context.Background()
	if tok, ok, _ := e.store.Get(ctx, sid, session.TokenKey); !ok || tok != "tok-owner@toko.id" {
		t.Errorf("token = %q, %v (email should be normalized)", tok, ok)
	}
	if u, ok, _ := e.store.Get(ctx, sid, session.UserKey); !ok || !strings.Contains(u, `"name":"Toko Maju"`) {
		t.Errorf("user json = %q, %v", u, ok)
	}

	res, body := e.do(t, http.MethodGet, "/dashboard", nil, "", false)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d", res.StatusCode)
	}
	for _, want := range []string{"Toko Maju", "Rp 18.500.000", "78/100", "Cukup sehat", "Sewa", "<svg"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard does not contain %q", want)
		}
	}
	for _, name := range []string{"summary", "health", "intelligence", "prediction", "transactions"} {
		if n := e.be.count(name); n != 1 {
			t.Errorf("%s fetched %d times on first visit, want 1", name, n)
		}
	}

	// A visit right after a load reuses it.
	e.do(t, http.MethodGet, "/dashboard", nil, "", false)
	if n := e.be.count("summary"); n != 1 {
		t.Errorf("summary fetched %d times after an immediate second visit, want 1", n)
	}
}

func TestFullVisitReloadsDashboard(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	e.do(t, http.MethodGet, "/dashboard", nil, "", false)

	e.srv.reloadAfter = 0
	for i := 0; i < 2; i++ {
		res, _ := e.do(t, http.MethodGet, "/dashboard", nil, "", false)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", res.StatusCode)
		}
	}
	if n := e.be.count("summary"); n != 3 {
		t.Errorf("summary fetched %d times after 3 full visits, want 3", n)
	}

	e.do(t, http.MethodGet, "/dashboard", nil, "", true)
	if n := e.be.count("summary"); n != 3 {
		t.Errorf("HTMX visit refetched: summary count = %d, want 3", n)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	e := newTestEnv(t)

	res, _ := e.postForm(t, "/login", url.Values{
		"mode":     {"register"},
		"name":     {"Warung Baru"},
		"email":    {"baru@warung.id"},
		"password": {"rahasia123"},
	}, false)
	assertRedirect(t, res, "/dashboard")
	if e.be.count("register") != 1 || e.be.count("login") != 1 {
		t.Errorf("register = %d, login = %d", e.be.count("register"), e.be.count("login"))
	}

	_, body := e.postForm(t, "/login", url.Values{
		"mode":     {"register"},
		"name":     {"Toko Maju"},
		"email":    {"owner@toko.id"},
		"password": {"rahasia123"},
	}, false)
	if !strings.Contains(body, "Email sudah terdaftar.") {
		t.Error("duplicate registration error not shown")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	sid := e.sessionID(t)
	e.do(t, http.MethodGet, "/dashboard", nil, "", false)

	res, _ := e.postForm(t, "/logout", nil, false)
	assertRedirect(t, res, "/login")

	ctx := context.Background()
	for _, key := range []string{session.TokenKey, session.UserKey} {
		if _, ok, _ := e.store.Get(ctx, sid, key); ok {
			t.Errorf("%s still stored after logout", key)
		}
	}
	res, _ = e.do(t, http.MethodGet, "/dashboard", nil, "", false)
	assertRedirect(t, res, "/login")

	if stats := e.srv.dashboards.Stats(); stats.Size != 0 {
		t.Errorf("dashboards held after logout = %d", stats.Size)
	}
}

func TestLogoutRequiresPOST(t *testing.T) {
	e := newTestEnv(t)
	res, _ := e.do(t, http.MethodGet, "/logout", nil, "", false)
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", res.StatusCode)
	}
	if res.Header.Get("Allow") != http.MethodPost {
		t.Errorf("Allow = %q", res.Header.Get("Allow"))
	}
}

func TestCreateTransaction(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	e.do(t, http.MethodGet, "/dashboard", nil, "", false)

	form := url.Values{
		"type":     {"expense"},
		"category": {"  Listrik "},
		"amount":   {"250000"},
		"date":     {"2024-03-01"},
	}

	res, body := e.postForm(t, "/dashboard/transactions", form, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if strings.Contains(body, "<html") {
		t.Error("HTMX request received the full page")
	}
	for _, want := range []string{"Transaksi berhasil ditambahkan.", "Listrik", "Rp 250.000"} {
		if !strings.Contains(body, want) {
			t.Errorf("partial does not contain %q", want)
		}
	}
	if e.be.count("summary") != 2 {
		t.Errorf("summary fetched %d times, want reload after create", e.be.count("summary"))
	}

	res, _ = e.postForm(t, "/dashboard/transactions", form, false)
	assertRedirect(t, res, "/dashboard")
	if e.be.count("create") != 2 {
		t.Errorf("create calls = %d, want 2", e.be.count("create"))
	}
}

func TestCreateTransactionRejectsInvalidAmount(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	_, body := e.postForm(t, "/dashboard/transactions", url.Values{
		"type":     {"income"},
		"category": {"Sales"},
		"amount":   {"abc"},
		"date":     {"2024-03-01"},
	}, true)
	if e.be.count("create") != 0 {
		t.Error("invalid amount reached the backend")
	}
	if !strings.Contains(body, core.ErrInvalidAmount.Error()) {
		t.Errorf("error not shown: %s", body)
	}
}

func TestPredictionChangeReloads(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	e.do(t, http.MethodGet, "/dashboard", nil, "", false)

	res, body := e.do(t, http.MethodGet, "/dashboard/prediction?months=12&model=arima", nil, "", true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if !strings.Contains(body, "Estimasi 12 bulan") {
		t.Error("horizon not reflected in the partial")
	}
	e.be.mu.Lock()
	months, model := e.be.months, e.be.model
	e.be.mu.Unlock()
	if months != 12 || model != core.Arima {
		t.Errorf("prediction fetched with %d/%s, want 12/arima", months, model)
	}
	if e.be.count("summary") != 2 {
		t.Errorf("summary fetched %d times, want full reload", e.be.count("summary"))
	}

	res, _ = e.do(t, http.MethodGet, "/dashboard/prediction?months=5&model=prophet", nil, "", false)
	assertRedirect(t, res, "/dashboard")
	e.be.mu.Lock()
	months, model = e.be.months, e.be.model
	e.be.mu.Unlock()
	if months != core.DefaultHorizon || model != core.Linear {
		t.Errorf("unsupported params fetched as %d/%s, want defaults", months, model)
	}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		wantCalls int
		want      string
	}{
		{"csv", "transaksi.csv", 1, "Berhasil import transaksi."},
		{"xlsx upper case", "TRANSAKSI.XLSX", 1, "Berhasil import transaksi."},
		{"wrong extension", "catatan.txt", 0, "File harus berformat .csv atau .xlsx."},
		{"no file", "", 0, "Chat Asisten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.login(t)

			body, ct := multipartBody(t, tt.filename, "date,type,category,amount\n2024-01-02,income,Sales,100000\n")
			res, html := e.do(t, http.MethodPost, "/dashboard/upload", body, ct, true)
			if res.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", res.StatusCode)
			}
			if got := e.be.count("upload"); got != tt.wantCalls {
				t.Errorf("upload calls = %d, want %d", got, tt.wantCalls)
			}
			if !strings.Contains(html, tt.want) {
				t.Errorf("partial does not contain %q", tt.want)
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	e := newTestEnv(t)
	sid := uuid.NewString()
	if err := e.store.Set(context.Background(), sid, session.TokenKey, "tok"); err != nil {
		t.Fatal(err)
	}

	body, ct := multipartBody(t, "besar.csv", strings.Repeat("x", maxUploadSize+1))
	req := httptest.NewRequest(http.MethodPost, "/dashboard/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sid})
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)

	if e.be.count("upload") != 0 {
		t.Error("oversized upload reached the backend")
	}
	if !strings.Contains(rec.Body.String(), "Ukuran file maksimal 10 MB.") {
		t.Errorf("size error not shown: status = %d", rec.Code)
	}
}

func TestChat(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	res, body := e.postForm(t, "/dashboard/chat", url.Values{"question": {"  Bagaimana cash flow saya?  "}}, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if !strings.Contains(body, `id="chat"`) || strings.Contains(body, "Transaksi Terbaru") {
		t.Error("HTMX chat should return only the chat panel")
	}
	for _, want := range []string{"Halo! Saya Unfinial AI.", "Bagaimana cash flow saya?", "Jawaban untuk: Bagaimana cash flow saya?"} {
		if !strings.Contains(body, want) {
			t.Errorf("chat panel does not contain %q", want)
		}
	}

	e.postForm(t, "/dashboard/chat", url.Values{"question": {"   "}}, true)
	if e.be.count("chat") != 1 {
		t.Errorf("blank question reached the backend")
	}
	if e.be.count("summary") != 0 {
		t.Errorf("chat triggered a dashboard load")
	}

	res, _ = e.postForm(t, "/dashboard/chat", url.Values{"question": {"Lagi"}}, false)
	assertRedirect(t, res, "/dashboard#chat")
}

func TestSlowBackendOutlivesWriteTimeout(t *testing.T) {
	be := newFakeAPI()
	be.chatDelay = 400 * time.Millisecond
	e := newTestEnvWith(t, be, 150*time.Millisecond)
	e.login(t)

	res, body := e.postForm(t, "/dashboard/chat", url.Values{"question": {"Kapan saya defisit?"}}, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if !strings.Contains(body, "Jawaban untuk: Kapan saya defisit?") {
		t.Errorf("slow answer not delivered: %s", body)
	}
}

func TestLandingAndNotFound(t *testing.T) {
	e := newTestEnv(t)

	res, body := e.do(t, http.MethodGet, "/", nil, "", false)
	if res.StatusCode != http.StatusOK || !strings.Contains(body, "Dari transaksi ke keputusan.") {
		t.Errorf("landing status = %d", res.StatusCode)
	}
	if !strings.Contains(body, "http://api.test/docs") {
		t.Error("landing does not link the API docs")
	}

	res, _ = e.do(t, http.MethodGet, "/nope", nil, "", false)
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", res.StatusCode)
	}

	res, body = e.do(t, http.MethodGet, "/login?mode=register", nil, "", false)
	if res.StatusCode != http.StatusOK || !strings.Contains(body, `name="name"`) {
		t.Error("register mode does not show the name field")
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	e := newTestEnv(t)
	res, _ := e.do(t, http.MethodGet, "/login", nil, "", false)

	if res.Header.Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", res.Header.Get("X-Frame-Options"))
	}
	if res.Header.Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
	if res.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	res, _ = e.do(t, http.MethodGet, "/static/app.css", nil, "", false)
	if res.StatusCode != http.StatusOK || !strings.Contains(res.Header.Get("Cache-Control"), "max-age=3600") {
		t.Errorf("static: status = %d, Cache-Control = %q", res.StatusCode, res.Header.Get("Cache-Control"))
	}
}

func TestRateLimitedPOST(t *testing.T) {
	be := newFakeAPI()
	logger := applog.New(applog.Config{Level: applog.ParseLevel("error"), Output: io.Discard})
	srv, err := NewServer(Options{RateLimitPerMinute: 2}, Deps{Backend: be, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.id&password=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third POST status = %d, want 429", last)
	}

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET after limit status = %d, want 200", rec.Code)
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	e := newTestEnv(t)

	res, body := e.do(t, http.MethodGet, "/healthz", nil, "", false)
	if res.StatusCode != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("healthz: %d %s", res.StatusCode, body)
	}

	res, body = e.do(t, http.MethodGet, "/readyz", nil, "", false)
	if res.StatusCode != http.StatusOK || !strings.Contains(body, `"backend":"ok"`) {
		t.Errorf("readyz: %d %s", res.StatusCode, body)
	}

	e.be.mu.Lock()
	e.be.pingErr = errors.New("connection refused")
	e.be.mu.Unlock()
	res, body = e.do(t, http.MethodGet, "/readyz", nil, "", false)
	if res.StatusCode != http.StatusServiceUnavailable || !strings.Contains(body, "not_ready") {
		t.Errorf("readyz with backend down: %d %s", res.StatusCode, body)
	}

	e.login(t)
	_, body = e.do(t, http.MethodGet, "/metrics", nil, "", false)
	for _, want := range []string{"logins_total 1", "# TYPE http_requests_total counter", "dashboards_active 0", "uptime_seconds"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
