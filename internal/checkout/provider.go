// Package checkout implements the 4-step order flow: phone entry, code entry,
// order review, confirmation. The wizard drives a verification provider and an
// order store through the narrow interfaces below, so implementations can be
// swapped without touching the flow itself.
package checkout

import (
	"context"
	"errors"

	"github.com/flame5nz/flame5/internal/models"
)

// Classified failures of the verification provider. Anything else the
// provider returns is surfaced verbatim at the display boundary.
var (
	// ErrInvalidNumber means the provider rejected the phone number format.
	ErrInvalidNumber = errors.New("invalid phone number")

	// ErrRateLimited means too many verification requests for this number.
	ErrRateLimited = errors.New("too many verification attempts")

	// ErrBotCheckFailed means the bot check handle was missing, unknown, or
	// already consumed.
	ErrBotCheckFailed = errors.New("bot check failed")

	// ErrInvalidCode means the submitted code did not match the pending
	// verification.
	ErrInvalidCode = errors.New("invalid verification code")
)

// Identity is a verified phone identity and its session token.
type Identity struct {
	UserID string
	Phone  string
	// SessionToken authenticates follow-up calls for this identity until
	// SignOut.
	SessionToken string
}

// BotCheck is a single-use anti-abuse handle. It is prepared when the wizard
// opens, consumed by exactly one verification request, and recreated after
// any failed or successful consumption.
type BotCheck interface {
	Token() string
}

// PendingVerification is the handle for one outstanding code challenge.
type PendingVerification interface {
	// Confirm submits the user's code. Fails with ErrInvalidCode when the
	// code does not match; succeeds at most once.
	Confirm(ctx context.Context, code string) (Identity, error)
}

// VerificationProvider is the phone-verification capability the wizard
// consumes.
type VerificationProvider interface {
	// NewBotCheck prepares a fresh single-use bot check handle.
	NewBotCheck(ctx context.Context) (BotCheck, error)

	// RequestVerification sends a code to the E.164 phone number, consuming
	// the bot check. Fails with ErrInvalidNumber, ErrRateLimited or
	// ErrBotCheckFailed where a class applies.
	RequestVerification(ctx context.Context, phone string, bc BotCheck) (PendingVerification, error)

	// CurrentUser resolves a session token to its identity, reporting false
	// for unknown or signed-out sessions.
	CurrentUser(ctx context.Context, sessionToken string) (Identity, bool)

	// SignOut ends the session behind the token.
	SignOut(ctx context.Context, sessionToken string) error
}

// OrderRecorder is the order-collection capability the wizard writes to on
// confirmation.
type OrderRecorder interface {
	InsertOrder(ctx context.Context, order *models.Order) error
}
