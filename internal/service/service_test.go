package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/flame5nz/flame5/internal/auth"
	"github.com/flame5nz/flame5/internal/cart"
	"github.com/flame5nz/flame5/internal/checkout"
	"github.com/flame5nz/flame5/internal/storage/sqlite"
)

// captureSender records verification messages so tests can read the code.
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
	return codePattern.FindString(s.messages[len(s.messages)-1])
}

type testServer struct {
	router *gin.Engine
	sender *captureSender
	store  *sqlite.Store
}

// setupTestServer wires the full stack over a temp sqlite database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cartStore, err := cart.New(context.Background(), store)
	require.NoError(t, err)

	sender := &captureSender{}
	sessions := auth.NewSessionManager("test-secret-test-secret-32-bytes", time.Hour)
	verifier := auth.NewVerifier(sender, sessions)
	wizard := checkout.New(cartStore, verifier, store, store)

	router := gin.New()
	New(cartStore, wizard).Register(router)

	return &testServer{router: router, sender: sender, store: store}
}

// do issues a request and decodes the JSON response body.
func (ts *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(encoded)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "body: %s", rec.Body.String())
	return rec.Code, decoded
}

func (ts *testServer) addTaco(t *testing.T) {
	t.Helper()
	status, _ := ts.do(t, http.MethodPost, "/api/cart/items",
		gin.H{"name": "Taco", "price": "4.50", "category": "mains"})
	require.Equal(t, http.StatusOK, status)
}

func TestCartEndpoints(t *testing.T) {
	t.Run("empty cart view", func(t *testing.T) {
		ts := setupTestServer(t)

		status, body := ts.do(t, http.MethodGet, "/api/cart", nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, true, body["empty"])
		require.Equal(t, float64(0), body["count"])
		require.Equal(t, "$0.00", body["total"])
	})

	t.Run("adding twice merges the line", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.addTaco(t)

		status, body := ts.do(t, http.MethodPost, "/api/cart/items",
			gin.H{"name": "Taco", "price": "4.50", "category": "mains"})
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, float64(2), body["count"])
		require.Equal(t, "$9.00", body["total"])
		require.Len(t, body["items"], 1)
	})

	t.Run("quantity delta and removal", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.addTaco(t)

		status, body := ts.do(t, http.MethodPost, "/api/cart/items/Taco/quantity", gin.H{"delta": 1})
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, float64(2), body["count"])

		status, body = ts.do(t, http.MethodPost, "/api/cart/items/Taco/quantity", gin.H{"delta": -2})
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, true, body["empty"])
	})

	t.Run("clear requires confirmation", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.addTaco(t)

		status, body := ts.do(t, http.MethodPost, "/api/cart/clear", gin.H{"confirmed": false})
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, false, body["cleared"])
		require.Equal(t, float64(1), body["count"])

		status, body = ts.do(t, http.MethodPost, "/api/cart/clear", gin.H{"confirmed": true})
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, true, body["cleared"])
		require.Equal(t, true, body["empty"])
	})
}

func TestCheckoutFlow(t *testing.T) {
	ts := setupTestServer(t)
	ts.addTaco(t)
	ts.addTaco(t)

	status, body := ts.do(t, http.MethodPost, "/api/checkout/open", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "phone", body["step"])

	status, body = ts.do(t, http.MethodPost, "/api/checkout/phone", gin.H{"phone": "0211234567"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "code", body["step"])
	require.Equal(t, "+64211234567", body["phone"])

	status, body = ts.do(t, http.MethodPost, "/api/checkout/verify", gin.H{"code": ts.sender.lastCode(t)})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "review", body["step"])
	summary := body["summary"].(map[string]any)
	require.Equal(t, "$9.00", summary["total"])

	status, body = ts.do(t, http.MethodPost, "/api/checkout/confirm", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "confirmed", body["step"])
	number := int(body["orderNumber"].(float64))
	require.GreaterOrEqual(t, number, 10000)
	require.LessOrEqual(t, number, 99999)

	// order landed in the collection with the verified identity
	order, err := ts.store.OrderByNumber(context.Background(), number)
	require.NoError(t, err)
	require.Equal(t, "0211234567", order.Phone)
	require.NotEmpty(t, order.UserID)

	// cart is gone
	status, body = ts.do(t, http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["empty"])

	status, body = ts.do(t, http.MethodPost, "/api/checkout/close", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["open"])

	status, body = ts.do(t, http.MethodGet, "/api/checkout", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["open"])
}

func TestCheckoutErrors(t *testing.T) {
	t.Run("open with empty cart", func(t *testing.T) {
		ts := setupTestServer(t)

		status, body := ts.do(t, http.MethodPost, "/api/checkout/open", nil)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "empty-cart", body["code"])
	})

	t.Run("short phone is rejected inline", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.addTaco(t)
		ts.do(t, http.MethodPost, "/api/checkout/open", nil)

		status, body := ts.do(t, http.MethodPost, "/api/checkout/phone", gin.H{"phone": "021123"})
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "invalid-input", body["code"])
		require.Empty(t, ts.sender.messages)
	})

	t.Run("five-digit code is rejected inline", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.addTaco(t)
		ts.do(t, http.MethodPost, "/api/checkout/open", nil)
		ts.do(t, http.MethodPost, "/api/checkout/phone", gin.H{"phone": "0211234567"})

		status, body := ts.do(t, http.MethodPost, "/api/checkout/verify", gin.H{"code": "12345"})
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "invalid-input", body["code"])

		// still at code entry
		_, state := ts.do(t, http.MethodGet, "/api/checkout", nil)
		require.Equal(t, "code", state["step"])
	})

	t.Run("wrong code gets the invalid-code class", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.addTaco(t)
		ts.do(t, http.MethodPost, "/api/checkout/open", nil)
		ts.do(t, http.MethodPost, "/api/checkout/phone", gin.H{"phone": "0211234567"})

		wrong := "000000"
		if ts.sender.lastCode(t) == wrong {
			wrong = "000001"
		}
		status, body := ts.do(t, http.MethodPost, "/api/checkout/verify", gin.H{"code": wrong})
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "invalid-code", body["code"])
	})

	t.Run("confirm before review is a step violation", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.addTaco(t)
		ts.do(t, http.MethodPost, "/api/checkout/open", nil)

		status, body := ts.do(t, http.MethodPost, "/api/checkout/confirm", nil)
		require.Equal(t, http.StatusConflict, status)
		require.Equal(t, "wrong-step", body["code"])
	})

	t.Run("repeated sends hit the rate limit", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.addTaco(t)
		ts.do(t, http.MethodPost, "/api/checkout/open", nil)

		status, _ := ts.do(t, http.MethodPost, "/api/checkout/phone", gin.H{"phone": "0211234567"})
		require.Equal(t, http.StatusOK, status)

		// burn through the remaining burst, then one more
		for range 2 {
			status, _ = ts.do(t, http.MethodPost, "/api/checkout/resend", nil)
			require.Equal(t, http.StatusOK, status)
		}
		status, body := ts.do(t, http.MethodPost, "/api/checkout/resend", nil)
		require.Equal(t, http.StatusTooManyRequests, status)
		require.Equal(t, "rate-limited", body["code"])
	})
}
