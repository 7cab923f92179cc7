package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/flame5nz/flame5/internal/cart"
	"github.com/flame5nz/flame5/internal/models"
	"github.com/flame5nz/flame5/internal/storage"
)

// Step identifies the wizard state. Exactly one step is active at a time.
type Step int

const (
	StepPhone     Step = iota + 1 // phone entry
	StepCode                      // code entry
	StepReview                    // order review
	StepConfirmed                 // confirmation
)

func (s Step) String() string {
	switch s {
	case StepPhone:
		return "phone"
	case StepCode:
		return "code"
	case StepReview:
		return "review"
	case StepConfirmed:
		return "confirmed"
	default:
		return "closed"
	}
}

// Validation and flow errors, all rejected before any provider call.
var (
	ErrNotOpen       = errors.New("checkout is not open")
	ErrBusy          = errors.New("another checkout call is in flight")
	ErrWrongStep     = errors.New("operation not valid in current step")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrPhoneTooShort = errors.New("phone number is too short")
	ErrCodeLength    = errors.New("verification code must be 6 digits")
)

// session holds the transient state of one wizard pass. It is destroyed on
// close and replaced wholesale on reopen.
type session struct {
	step        Step
	rawPhone    string
	phone       string
	botCheck    BotCheck
	pending     PendingVerification
	ident       Identity
	orderNumber int
}

// State is the externally visible wizard state.
type State struct {
	Step        Step
	Phone       string // normalized number, set once a code has been sent
	OrderNumber int    // set once the order is confirmed
}

// Wizard drives the 4-step checkout flow. At most one provider call per
// session is in flight at a time: operations issued while another is pending
// fail fast with ErrBusy, mirroring the disabled submit control. Closing the
// wizard abandons any in-flight call; its late result lands on a detached
// session and is discarded.
type Wizard struct {
	cart     *cart.Store
	provider VerificationProvider
	orders   OrderRecorder
	kv       storage.KV

	now         func() time.Time
	orderNumber func() int

	mu   sync.Mutex
	busy bool
	sess *session
}

// New creates a wizard over the given cart, verification provider, order
// recorder and backup store.
func New(cartStore *cart.Store, provider VerificationProvider, orders OrderRecorder, kv storage.KV) *Wizard {
	return &Wizard{
		cart:     cartStore,
		provider: provider,
		orders:   orders,
		kv:       kv,
		now:      time.Now,
		orderNumber: func() int {
			return rand.IntN(90000) + 10000
		},
	}
}

// Open starts a fresh session at the phone-entry step, preparing a bot check
// handle. Opening always resets prior session state, whatever its outcome.
// Fails with ErrEmptyCart when there is nothing to check out.
func (w *Wizard) Open(ctx context.Context) error {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return ErrBusy
	}
	w.busy = true
	w.mu.Unlock()
	defer w.end()

	if err := w.cart.Reload(ctx); err != nil {
		return fmt.Errorf("reload cart: %w", err)
	}
	if w.cart.ItemCount() == 0 {
		return ErrEmptyCart
	}

	bc, err := w.provider.NewBotCheck(ctx)
	if err != nil {
		return fmt.Errorf("provider.NewBotCheck: %w", err)
	}

	w.mu.Lock()
	w.sess = &session{step: StepPhone, botCheck: bc}
	w.mu.Unlock()
	return nil
}

// State reports the current wizard state; false when closed.
func (w *Wizard) State() (State, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sess == nil {
		return State{}, false
	}
	return State{
		Step:        w.sess.step,
		Phone:       w.sess.phone,
		OrderNumber: w.sess.orderNumber,
	}, true
}

// SubmitPhone validates and normalizes the raw number, requests a
// verification challenge, and advances to the code-entry step. On provider
// failure the consumed bot check is torn down and recreated and the
// classified error is returned with the session unchanged.
func (w *Wizard) SubmitPhone(ctx context.Context, raw string) error {
	sess, err := w.begin(StepPhone)
	if err != nil {
		return err
	}
	defer w.end()

	raw = strings.TrimSpace(raw)
	if len(raw) < minPhoneLength {
		return ErrPhoneTooShort
	}
	phone := NormalizePhone(raw)

	w.mu.Lock()
	bc := sess.botCheck
	w.mu.Unlock()

	pending, err := w.provider.RequestVerification(ctx, phone, bc)
	if err != nil {
		w.refreshBotCheck(ctx, sess)
		return fmt.Errorf("request verification: %w", err)
	}

	w.mu.Lock()
	sess.rawPhone = raw
	sess.phone = phone
	sess.pending = pending
	sess.step = StepCode
	w.mu.Unlock()

	slog.Info("Verification code sent", "phone", phone)
	return nil
}

// VerifyCode submits the entered code against the pending verification.
// Codes that are not exactly 6 characters are rejected before any provider
// call. A provider rejection leaves the wizard at the code-entry step.
func (w *Wizard) VerifyCode(ctx context.Context, code string) error {
	sess, err := w.begin(StepCode)
	if err != nil {
		return err
	}
	defer w.end()

	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return ErrCodeLength
	}

	w.mu.Lock()
	pending := sess.pending
	phone := sess.phone
	w.mu.Unlock()

	ident, err := pending.Confirm(ctx, code)
	if err != nil {
		return fmt.Errorf("confirm code: %w", err)
	}

	w.mu.Lock()
	sess.ident = ident
	sess.step = StepReview
	w.mu.Unlock()

	slog.Info("Phone verified", "phone", phone, "user_id", ident.UserID)
	return nil
}

// Resend re-normalizes the phone number, regenerates the bot check, and
// requests a fresh challenge. Success replaces the pending verification
// silently; failure leaves the session unchanged.
func (w *Wizard) Resend(ctx context.Context) error {
	sess, err := w.begin(StepCode)
	if err != nil {
		return err
	}
	defer w.end()

	w.mu.Lock()
	phone := NormalizePhone(sess.rawPhone)
	w.mu.Unlock()

	bc, err := w.provider.NewBotCheck(ctx)
	if err != nil {
		return fmt.Errorf("provider.NewBotCheck: %w", err)
	}
	w.mu.Lock()
	sess.botCheck = bc
	w.mu.Unlock()

	pending, err := w.provider.RequestVerification(ctx, phone, bc)
	if err != nil {
		w.refreshBotCheck(ctx, sess)
		return fmt.Errorf("resend verification: %w", err)
	}

	w.mu.Lock()
	sess.phone = phone
	sess.pending = pending
	w.mu.Unlock()

	slog.Info("Verification code resent", "phone", phone)
	return nil
}

// Summary returns the order summary for the review step: a live re-read of
// the persisted cart, not a cached snapshot.
func (w *Wizard) Summary(ctx context.Context) (cart.Snapshot, error) {
	if _, err := w.begin(StepReview); err != nil {
		return cart.Snapshot{}, err
	}
	defer w.end()

	if err := w.cart.Reload(ctx); err != nil {
		return cart.Snapshot{}, fmt.Errorf("reload cart: %w", err)
	}
	return w.cart.Snapshot(), nil
}

// Confirm builds an Order from the current persisted cart and the verified
// identity, writes it to the order store, duplicates it into the local
// backup, clears the cart, and advances to the confirmation step. On any
// failure the wizard stays at review with the cart intact; no partial order
// is considered committed and retry is manual.
func (w *Wizard) Confirm(ctx context.Context) (int, error) {
	sess, err := w.begin(StepReview)
	if err != nil {
		return 0, err
	}
	defer w.end()

	if err := w.cart.Reload(ctx); err != nil {
		return 0, fmt.Errorf("reload cart: %w", err)
	}
	snap := w.cart.Snapshot()
	if len(snap.Lines) == 0 {
		return 0, ErrEmptyCart
	}

	number := w.orderNumber()

	w.mu.Lock()
	token := sess.ident.SessionToken
	rawPhone := sess.rawPhone
	w.mu.Unlock()

	var userID string
	if ident, ok := w.provider.CurrentUser(ctx, token); ok {
		userID = ident.UserID
	}

	order := &models.Order{
		OrderNumber: number,
		Phone:       rawPhone,
		UserID:      userID,
		Items:       snap.Lines,
		Total:       models.NewMoney(snap.Total),
		Status:      models.OrderStatusPending,
		CreatedAt:   w.now(),
	}

	if err := w.orders.InsertOrder(ctx, order); err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	if err := w.appendBackup(ctx, order); err != nil {
		return 0, fmt.Errorf("backup order: %w", err)
	}
	if err := w.cart.Reset(ctx); err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}

	w.mu.Lock()
	sess.orderNumber = number
	sess.step = StepConfirmed
	w.mu.Unlock()

	slog.Info("Order placed", "order_number", number, "total", order.Total.Display(), "items", len(order.Items))
	return number, nil
}

// Close destroys the session, including the bot check handle, and signs out
// the verified identity. Closing is allowed while a call is in flight; the
// late result lands on the detached session.
func (w *Wizard) Close(ctx context.Context) error {
	w.mu.Lock()
	sess := w.sess
	w.sess = nil
	w.mu.Unlock()

	if sess == nil || sess.ident.SessionToken == "" {
		return nil
	}
	if err := w.provider.SignOut(ctx, sess.ident.SessionToken); err != nil {
		slog.Warn("Sign out failed", "error", err)
	}
	return nil
}

// begin acquires the single in-flight slot, checking that the wizard is open
// and at the wanted step. Callers must release it via end.
func (w *Wizard) begin(want Step) (*session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sess == nil {
		return nil, ErrNotOpen
	}
	if w.busy {
		return nil, ErrBusy
	}
	if w.sess.step != want {
		return nil, fmt.Errorf("%w: at %s", ErrWrongStep, w.sess.step)
	}
	w.busy = true
	return w.sess, nil
}

func (w *Wizard) end() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

// refreshBotCheck replaces a consumed bot check handle after a failed send.
// A handle is single use; a consumed challenge cannot be retried.
func (w *Wizard) refreshBotCheck(ctx context.Context, sess *session) {
	bc, err := w.provider.NewBotCheck(ctx)
	if err != nil {
		slog.Warn("Could not recreate bot check", "error", err)
		return
	}
	w.mu.Lock()
	sess.botCheck = bc
	w.mu.Unlock()
}

// appendBackup appends the order to the local backup record. An unreadable
// existing record is treated as empty, same as the cart store's recovery
// policy.
func (w *Wizard) appendBackup(ctx context.Context, order *models.Order) error {
	var orders []models.Order

	raw, ok, err := w.kv.Get(ctx, storage.OrdersBackupKey)
	if err != nil {
		return fmt.Errorf("kv.Get: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &orders); err != nil {
			slog.Warn("Stored order backup is unreadable, starting fresh", "error", err)
			orders = nil
		}
	}

	orders = append(orders, *order)

	encoded, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("failed to encode order backup: %w", err)
	}
	if err := w.kv.Set(ctx, storage.OrdersBackupKey, string(encoded)); err != nil {
		return fmt.Errorf("kv.Set: %w", err)
	}
	return nil
}
