// Package dashboard holds the per-session dashboard view-model and the
// operations that refresh it from the finance backend.
package dashboard

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"unfinial/internal/core"
	"unfinial/internal/events"
)

// State is the coarse status of the dashboard. StateError is advisory: any
// later action may move the dashboard back to StateReady.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// TransactionPageSize is how many recent transactions a load fetches.
const TransactionPageSize = 50

const (
	Greeting         = "Halo! Saya Unfinial AI. Tanyakan kondisi keuangan, prediksi cash flow, atau rekomendasi penghematan."
	TransactionAdded = "Transaksi berhasil ditambahkan."

	loadFailed   = "Gagal memuat dashboard."
	addFailed    = "Gagal menambahkan transaksi."
	uploadFailed = "Gagal upload transaksi."
	chatFailed   = "Maaf, terjadi error saat memproses pertanyaan."
)

// Backend is the slice of the finance API the dashboard consumes.
type Backend interface {
	Summary(ctx context.Context, token string) (core.Summary, error)
	HealthScore(ctx context.Context, token string) (core.HealthScore, error)
	ExpenseIntelligence(ctx context.Context, token string) (core.ExpenseIntelligence, error)
	Prediction(ctx context.Context, token string, months int, model core.PredictionModel) (core.Prediction, error)
	ListTransactions(ctx context.Context, token string, page core.Page) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, token string, tx core.NewTransaction) (core.Transaction, error)
	UploadTransactions(ctx context.Context, token, filename string, file io.Reader) (core.UploadResult, error)
	Chat(ctx context.Context, token, question string) (string, error)
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Dashboard is one session's view-model. All methods are safe for
// concurrent use; overlapping loads are not cancelled and the one that
// finishes last decides what is shown.
type Dashboard struct {
	backend   Backend
	publisher events.Publisher
	logger    *slog.Logger

	mu       sync.Mutex
	v        View
	loads    int
	busy     int
	chatBusy int
}

func New(backend Backend, publisher events.Publisher, logger *slog.Logger) *Dashboard {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		backend:   backend,
		publisher: publisher,
		logger:    logger,
		v: View{
			State:  StateIdle,
			Months: core.DefaultHorizon,
			Model:  core.Linear,
			Chat:   []Message{{Role: RoleAssistant, Content: Greeting}},
		},
	}
}

// LoadAll fetches the five dashboard resources concurrently and waits for
// every one of them. The results replace the current data together only
// when all five succeed; otherwise the error message is set and the data
// already shown is kept.
func (d *Dashboard) LoadAll(ctx context.Context, token string) error {
	d.mu.Lock()
	d.v.Error = ""
	d.v.State = StateLoading
	d.loads++
	d.busy++
	months, model := d.v.Months, d.v.Model
	d.mu.Unlock()

	start := time.Now()
	var (
		summary      core.Summary
		health       core.HealthScore
		intelligence core.ExpenseIntelligence
		prediction   core.Prediction
		transactions []core.Transaction
	)

	// A plain Group: one failure must not cancel the others.
	var g errgroup.Group
	g.Go(func() (err error) {
		summary, err = d.backend.Summary(ctx, token)
		return err
	})
	g.Go(func() (err error) {
		health, err = d.backend.HealthScore(ctx, token)
		return err
	})
	g.Go(func() (err error) {
		intelligence, err = d.backend.ExpenseIntelligence(ctx, token)
		return err
	})
	g.Go(func() (err error) {
		prediction, err = d.backend.Prediction(ctx, token, months, model)
		return err
	})
	g.Go(func() (err error) {
		transactions, err = d.backend.ListTransactions(ctx, token, core.Page{Limit: TransactionPageSize})
		return err
	})
	err := g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loads--
	d.busy--

	if err != nil {
		d.v.Error = message(err, loadFailed)
		d.v.State = StateError
		d.logger.WarnContext(ctx, "Dashboard load failed", "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return err
	}

	d.v.Summary = &summary
	d.v.Health = &health
	d.v.Intelligence = &intelligence
	d.v.Prediction = &prediction
	d.v.Transactions = transactions
	d.v.Loaded = true
	d.v.LoadedAt = time.Now()
	if d.loads == 0 {
		d.v.State = StateReady
	}
	d.logger.DebugContext(ctx, "Dashboard loaded",
		"transactions", len(transactions),
		"months", months,
		"model", model,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// SetPrediction changes the forecast parameters and reloads every resource,
// not only the prediction.
func (d *Dashboard) SetPrediction(ctx context.Context, token string, months int, model core.PredictionModel) error {
	d.mu.Lock()
	d.v.Months = core.ParseHorizon(months)
	d.v.Model = core.ParsePredictionModel(string(model))
	d.mu.Unlock()
	return d.LoadAll(ctx, token)
}

// AddTransaction creates a manual entry and reloads on success. A failed
// reload is reported through the view, not the return value.
func (d *Dashboard) AddTransaction(ctx context.Context, token string, tx core.NewTransaction) error {
	d.begin()
	defer d.end()

	tx.Category = strings.TrimSpace(tx.Category)
	created, err := d.createTransaction(ctx, token, tx)
	if err != nil {
		d.fail(err, addFailed)
		return err
	}

	d.setToast(TransactionAdded)
	d.publish(ctx, events.NewEvent(events.TransactionsChanged, map[string]string{
		"source": "manual",
		"type":   string(created.Type),
	}))
	_ = d.LoadAll(ctx, token)
	return nil
}

func (d *Dashboard) createTransaction(ctx context.Context, token string, tx core.NewTransaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return d.backend.CreateTransaction(ctx, token, tx)
}

// Upload sends a CSV/XLSX export and reloads on success. The backend's
// message becomes the toast.
func (d *Dashboard) Upload(ctx context.Context, token, filename string, file io.Reader) (core.UploadResult, error) {
	d.begin()
	defer d.end()

	res, err := d.backend.UploadTransactions(ctx, token, filename, file)
	if err != nil {
		d.fail(err, uploadFailed)
		return core.UploadResult{}, err
	}

	d.setToast(res.Message)
	d.publish(ctx, events.NewEvent(events.TransactionsChanged, map[string]string{
		"source":        "upload",
		"inserted_rows": strconv.Itoa(res.InsertedRows),
		"skipped_rows":  strconv.Itoa(res.SkippedRows),
	}))
	_ = d.LoadAll(ctx, token)
	return res, nil
}

// SendChat appends the question right away, then the answer or an error
// turn. Blank questions are ignored. Chat never reloads the dashboard.
func (d *Dashboard) SendChat(ctx context.Context, token, question string) {
	q := strings.TrimSpace(question)
	if q == "" {
		return
	}

	d.mu.Lock()
	d.v.Chat = append(d.v.Chat, Message{Role: RoleUser, Content: q})
	d.chatBusy++
	d.v.ChatBusy = true
	d.mu.Unlock()

	answer, err := d.backend.Chat(ctx, token, q)
	outcome := "answered"

	d.mu.Lock()
	if err != nil {
		outcome = "failed"
		content := chatFailed
		if msg := err.Error(); msg != "" {
			content = "Maaf, terjadi error: " + msg
		}
		d.v.Chat = append(d.v.Chat, Message{Role: RoleAssistant, Content: content})
	} else {
		d.v.Chat = append(d.v.Chat, Message{Role: RoleAssistant, Content: answer})
	}
	d.chatBusy--
	d.v.ChatBusy = d.chatBusy > 0
	d.mu.Unlock()

	d.publish(ctx, events.NewEvent(events.ChatAsked, map[string]string{"outcome": outcome}))
}

// Reject shows msg as the error banner for input refused before it reached
// the backend.
func (d *Dashboard) Reject(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.v.Toast = ""
	d.v.Error = msg
}

// Snapshot returns a copy of the view safe to render while the dashboard
// keeps changing.
func (d *Dashboard) Snapshot() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := d.v
	v.Busy = d.busy > 0
	v.Chat = append([]Message(nil), d.v.Chat...)
	v.Transactions = append([]core.Transaction(nil), d.v.Transactions...)
	return v
}

// begin clears the banners and marks a mutating action in flight.
func (d *Dashboard) begin() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.v.Toast = ""
	d.v.Error = ""
	d.busy++
}

func (d *Dashboard) end() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy--
}

func (d *Dashboard) fail(err error, fallback string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.v.Error = message(err, fallback)
}

func (d *Dashboard) setToast(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.v.Toast = s
}

func (d *Dashboard) publish(ctx context.Context, e events.Event) {
	if err := d.publisher.Publish(ctx, e); err != nil {
		d.logger.WarnContext(ctx, "Activity event not published", "type", e.Type, "error", err)
	}
}

func message(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
