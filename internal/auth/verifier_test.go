package auth

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flame5nz/flame5/internal/checkout"
)

const testPhone = "+64211234567"

// captureSender records messages instead of sending them.
type captureSender struct {
	messages []string
}

func (s *captureSender) Send(_ context.Context, _ string, message string) error {
	s.messages = append(s.messages, message)
	return nil
}

var codePattern = regexp.MustCompile(`[0-9]{6}`)

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.messages)
	code := codePattern.FindString(s.messages[len(s.messages)-1])
	require.Len(t, code, 6)
	return code
}

func newTestVerifier(t *testing.T) (*Verifier, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	sessions := NewSessionManager("test-secret-test-secret-32-bytes", time.Hour)
	return NewVerifier(sender, sessions), sender
}

func request(t *testing.T, v *Verifier, phone string) checkout.PendingVerification {
	t.Helper()
	ctx := context.Background()

	bc, err := v.NewBotCheck(ctx)
	require.NoError(t, err)

	pending, err := v.RequestVerification(ctx, phone, bc)
	require.NoError(t, err)
	return pending
}

func TestVerificationFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("correct code yields a live identity", func(t *testing.T) {
		v, sender := newTestVerifier(t)
		pending := request(t, v, testPhone)

		ident, err := pending.Confirm(ctx, sender.lastCode(t))
		require.NoError(t, err)
		require.NotEmpty(t, ident.UserID)
		require.Equal(t, testPhone, ident.Phone)
		require.NotEmpty(t, ident.SessionToken)

		got, ok := v.CurrentUser(ctx, ident.SessionToken)
		require.True(t, ok)
		require.Equal(t, ident.UserID, got.UserID)
	})

	t.Run("wrong code is rejected, right code still accepted", func(t *testing.T) {
		v, sender := newTestVerifier(t)
		pending := request(t, v, testPhone)

		_, err := pending.Confirm(ctx, "000000")
		require.ErrorIs(t, err, checkout.ErrInvalidCode)

		_, err = pending.Confirm(ctx, sender.lastCode(t))
		require.NoError(t, err)
	})

	t.Run("challenge succeeds at most once", func(t *testing.T) {
		v, sender := newTestVerifier(t)
		pending := request(t, v, testPhone)

		code := sender.lastCode(t)
		_, err := pending.Confirm(ctx, code)
		require.NoError(t, err)

		_, err = pending.Confirm(ctx, code)
		require.ErrorIs(t, err, checkout.ErrInvalidCode)
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		v, sender := newTestVerifier(t)
		pending := request(t, v, testPhone)

		for range maxAttempts {
			_, err := pending.Confirm(ctx, "000000")
			require.ErrorIs(t, err, checkout.ErrInvalidCode)
		}

		// even the right code fails once burnt out
		_, err := pending.Confirm(ctx, sender.lastCode(t))
		require.ErrorIs(t, err, checkout.ErrInvalidCode)
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		v, sender := newTestVerifier(t)
		pending := request(t, v, testPhone)

		v.now = func() time.Time { return time.Now().Add(codeTTL + time.Minute) }
		_, err := pending.Confirm(ctx, sender.lastCode(t))
		require.ErrorIs(t, err, checkout.ErrInvalidCode)
	})

	t.Run("same phone keeps the same user id", func(t *testing.T) {
		v, sender := newTestVerifier(t)

		first := request(t, v, testPhone)
		identA, err := first.Confirm(ctx, sender.lastCode(t))
		require.NoError(t, err)

		second := request(t, v, testPhone)
		identB, err := second.Confirm(ctx, sender.lastCode(t))
		require.NoError(t, err)

		require.Equal(t, identA.UserID, identB.UserID)
	})
}

func TestBotCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("handle is single use", func(t *testing.T) {
		v, _ := newTestVerifier(t)
		bc, err := v.NewBotCheck(ctx)
		require.NoError(t, err)

		_, err = v.RequestVerification(ctx, testPhone, bc)
		require.NoError(t, err)

		_, err = v.RequestVerification(ctx, testPhone, bc)
		require.ErrorIs(t, err, checkout.ErrBotCheckFailed)
	})

	t.Run("missing handle fails", func(t *testing.T) {
		v, _ := newTestVerifier(t)
		_, err := v.RequestVerification(ctx, testPhone, nil)
		require.ErrorIs(t, err, checkout.ErrBotCheckFailed)
	})
}

func TestRequestValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("non-E164 numbers are rejected", func(t *testing.T) {
		v, _ := newTestVerifier(t)
		for _, phone := range []string{"0211234567", "+0211234567", "+64", "not a phone"} {
			bc, err := v.NewBotCheck(ctx)
			require.NoError(t, err)

			_, err = v.RequestVerification(ctx, phone, bc)
			require.ErrorIs(t, err, checkout.ErrInvalidNumber, "phone %q", phone)
		}
	})

	t.Run("sends per phone are rate limited", func(t *testing.T) {
		v, _ := newTestVerifier(t)

		for range sendBurst {
			request(t, v, testPhone)
		}

		bc, err := v.NewBotCheck(ctx)
		require.NoError(t, err)
		_, err = v.RequestVerification(ctx, testPhone, bc)
		require.ErrorIs(t, err, checkout.ErrRateLimited)

		// a different number is unaffected
		request(t, v, "+64271234567")
	})
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	v, sender := newTestVerifier(t)

	pending := request(t, v, testPhone)
	ident, err := pending.Confirm(ctx, sender.lastCode(t))
	require.NoError(t, err)

	require.NoError(t, v.SignOut(ctx, ident.SessionToken))

	_, ok := v.CurrentUser(ctx, ident.SessionToken)
	require.False(t, ok)

	// signing out twice is fine
	require.NoError(t, v.SignOut(ctx, ident.SessionToken))
}
