// Package auth implements the phone-verification provider behind the
// checkout flow: single-use bot checks, rate-limited code delivery, hashed
// code challenges, and JWT-backed sessions for verified identities.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/flame5nz/flame5/internal/checkout"
)

const (
	codeLength  = 6
	codeTTL     = 5 * time.Minute
	maxAttempts = 5

	// Each phone number gets a small burst of sends, refilling slowly.
	sendBurst    = 3
	sendInterval = 30 * time.Second
)

// E.164: plus sign, then 8 to 15 digits not starting with zero.
var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// Ensure Verifier implements the checkout contract
var _ checkout.VerificationProvider = (*Verifier)(nil)

// Verifier implements checkout.VerificationProvider in process.
type Verifier struct {
	sender   SMSSender
	sessions *SessionManager

	now func() time.Time

	mu        sync.Mutex
	botChecks map[string]struct{}      // unconsumed handles
	limiters  map[string]*rate.Limiter // per normalized phone
	users     map[string]string        // phone -> stable user ID
	active    map[string]struct{}      // live session tokens
}

// NewVerifier creates a verifier that delivers codes through sender and
// issues session tokens through sessions.
func NewVerifier(sender SMSSender, sessions *SessionManager) *Verifier {
	return &Verifier{
		sender:    sender,
		sessions:  sessions,
		now:       time.Now,
		botChecks: make(map[string]struct{}),
		limiters:  make(map[string]*rate.Limiter),
		users:     make(map[string]string),
		active:    make(map[string]struct{}),
	}
}

type botCheck struct {
	token string
}

func (b botCheck) Token() string { return b.token }

// NewBotCheck prepares a fresh single-use handle.
func (v *Verifier) NewBotCheck(ctx context.Context) (checkout.BotCheck, error) {
	token := uuid.New().String()

	v.mu.Lock()
	v.botChecks[token] = struct{}{}
	v.mu.Unlock()

	return botCheck{token: token}, nil
}

// RequestVerification consumes the bot check, validates and rate-limits the
// number, and sends a fresh code. The returned handle carries the bcrypt hash
// of the code, never the code itself.
func (v *Verifier) RequestVerification(ctx context.Context, phone string, bc checkout.BotCheck) (checkout.PendingVerification, error) {
	if err := v.consumeBotCheck(bc); err != nil {
		return nil, err
	}

	if !phonePattern.MatchString(phone) {
		return nil, fmt.Errorf("phone[%s]: %w", phone, checkout.ErrInvalidNumber)
	}

	if !v.limiterFor(phone).Allow() {
		return nil, fmt.Errorf("phone[%s]: %w", phone, checkout.ErrRateLimited)
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash code: %w", err)
	}

	message := fmt.Sprintf("Your Flame 5 verification code is %s", code)
	if err := v.sender.Send(ctx, phone, message); err != nil {
		return nil, fmt.Errorf("failed to send code: %w", err)
	}

	return &pendingVerification{
		verifier:  v,
		phone:     phone,
		codeHash:  hash,
		expiresAt: v.now().Add(codeTTL),
		attempts:  maxAttempts,
	}, nil
}

// CurrentUser resolves a session token to its identity. Unknown, expired and
// signed-out tokens report false.
func (v *Verifier) CurrentUser(ctx context.Context, sessionToken string) (checkout.Identity, bool) {
	claims, err := v.sessions.Validate(sessionToken)
	if err != nil {
		return checkout.Identity{}, false
	}

	v.mu.Lock()
	_, live := v.active[sessionToken]
	v.mu.Unlock()
	if !live {
		return checkout.Identity{}, false
	}

	return checkout.Identity{
		UserID:       claims.UserID,
		Phone:        claims.Phone,
		SessionToken: sessionToken,
	}, true
}

// SignOut ends the session behind the token. Signing out an unknown token is
// not an error.
func (v *Verifier) SignOut(ctx context.Context, sessionToken string) error {
	v.mu.Lock()
	delete(v.active, sessionToken)
	v.mu.Unlock()
	return nil
}

func (v *Verifier) consumeBotCheck(bc checkout.BotCheck) error {
	if bc == nil {
		return checkout.ErrBotCheckFailed
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.botChecks[bc.Token()]; !ok {
		return checkout.ErrBotCheckFailed
	}
	delete(v.botChecks, bc.Token())
	return nil
}

func (v *Verifier) limiterFor(phone string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	limiter, ok := v.limiters[phone]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(sendInterval), sendBurst)
		v.limiters[phone] = limiter
	}
	return limiter
}

// userFor returns the stable user ID for a phone number, minting one on
// first verification.
func (v *Verifier) userFor(phone string) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	if id, ok := v.users[phone]; ok {
		return id
	}
	id := uuid.New().String()
	v.users[phone] = id
	return id
}

func (v *Verifier) activate(token string) {
	v.mu.Lock()
	v.active[token] = struct{}{}
	v.mu.Unlock()
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// pendingVerification is one outstanding code challenge. It succeeds at most
// once and burns out after maxAttempts failures or on expiry.
type pendingVerification struct {
	verifier  *Verifier
	phone     string
	codeHash  []byte
	expiresAt time.Time

	mu       sync.Mutex
	attempts int
	consumed bool
}

// Confirm checks the submitted code against the stored hash. On success it
// mints the identity and a live session token.
func (p *pendingVerification) Confirm(ctx context.Context, code string) (checkout.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.consumed {
		return checkout.Identity{}, fmt.Errorf("challenge already used: %w", checkout.ErrInvalidCode)
	}
	if p.verifier.now().After(p.expiresAt) {
		return checkout.Identity{}, fmt.Errorf("code expired: %w", checkout.ErrInvalidCode)
	}
	if p.attempts <= 0 {
		return checkout.Identity{}, fmt.Errorf("too many wrong codes: %w", checkout.ErrInvalidCode)
	}

	if err := bcrypt.CompareHashAndPassword(p.codeHash, []byte(code)); err != nil {
		p.attempts--
		return checkout.Identity{}, checkout.ErrInvalidCode
	}

	p.consumed = true

	userID := p.verifier.userFor(p.phone)
	token, err := p.verifier.sessions.Generate(userID, p.phone)
	if err != nil {
		return checkout.Identity{}, fmt.Errorf("failed to create session: %w", err)
	}
	p.verifier.activate(token)

	return checkout.Identity{
		UserID:       userID,
		Phone:        p.phone,
		SessionToken: token,
	}, nil
}
