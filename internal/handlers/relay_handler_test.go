package handlers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayer-backend/internal/field"
	"relayer-backend/internal/hashing"
	"relayer-backend/internal/nullifier"
	"relayer-backend/internal/relay"
)

type fakeLedger struct {
	spent     bool
	submitErr error
}

func (f *fakeLedger) SubmitTransaction(ctx context.Context, tx []byte) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "sig-test", nil
}

func (f *fakeLedger) GetAccount(ctx context.Context, address string) ([]byte, error) {
	return nil, nil
}

func (f *fakeLedger) IsNullifierSpent(ctx context.Context, programScope string, hash [32]byte) (bool, error) {
	return f.spent, nil
}

func fieldHex(v uint64) string {
	e := field.FromUint64(v)
	b := field.Encode(e)
	return hex.EncodeToString(b[:])
}

func addrHex(b byte) string {
	raw := make([]byte, 32)
	raw[31] = b
	return hex.EncodeToString(raw)
}

func newTestHandler(t *testing.T, client *fakeLedger) *RelayHandler {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := relay.Config{
		RelayerAddress:  addrHex(0xAA),
		FeeBps:          50,
		MinAmount:       1000,
		SupportedAssets: []string{fieldHex(777)},
		VerifyProofs:    false,
	}
	pipeline, err := relay.NewPipeline(cfg, nil, nullifier.NewMemoryCache(), client,
		relay.RetryPolicy{MaxAttempts: 2, BaseDelay: 1, Budget: 1 << 30}, logger, nil, nil)
	require.NoError(t, err)

	engine, err := hashing.New(hashing.ParamSetMiMCBN254)
	require.NoError(t, err)
	return NewRelayHandler(pipeline, nil, engine)
}

func setupRoutes(h *RelayHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.HealthHandler)
	r.GET("/status", h.StatusHandler)
	r.GET("/quote", h.QuoteHandler)
	r.GET("/assets", h.AssetsHandler)
	r.POST("/withdraw", h.WithdrawHandler)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func validWithdrawBody() map[string]any {
	return map[string]any{
		"proof":         hex.EncodeToString(make([]byte, 256)),
		"merkleRoot":    fieldHex(1),
		"nullifierHash": fieldHex(42),
		"recipient":     addrHex(0x01),
		"amount":        100_000,
		"assetId":       fieldHex(777),
	}
}

func TestHealthHandler(t *testing.T) {
	r := setupRoutes(newTestHandler(t, &fakeLedger{}))
	w, resp := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, false, resp["proofVerificationEnabled"])
}

func TestStatusHandler(t *testing.T) {
	r := setupRoutes(newTestHandler(t, &fakeLedger{}))
	w, resp := doJSON(t, r, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, addrHex(0xAA), resp["relayerAddress"])
	assert.Equal(t, float64(50), resp["feeBps"])
}

func TestQuoteHandler(t *testing.T) {
	r := setupRoutes(newTestHandler(t, &fakeLedger{}))

	w, resp := doJSON(t, r, http.MethodGet, "/quote?amount=100000", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(500), resp["fee"])
	assert.Equal(t, float64(99500), resp["netAmount"])

	w, _ = doJSON(t, r, http.MethodGet, "/quote", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/quote?amount=-5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/quote?amount=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteFloors(t *testing.T) {
	r := setupRoutes(newTestHandler(t, &fakeLedger{}))
	_, resp := doJSON(t, r, http.MethodGet, "/quote?amount=199", nil)
	assert.Equal(t, float64(0), resp["fee"])
}

func TestAssetsHandler(t *testing.T) {
	r := setupRoutes(newTestHandler(t, &fakeLedger{}))
	w, resp := doJSON(t, r, http.MethodGet, "/assets", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assets := resp["assets"].([]any)
	require.Len(t, assets, 1)
	assert.Equal(t, fieldHex(777), assets[0])
}

func TestWithdrawHandlerAccepts(t *testing.T) {
	r := setupRoutes(newTestHandler(t, &fakeLedger{}))
	w, resp := doJSON(t, r, http.MethodPost, "/withdraw", validWithdrawBody())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "sig-test", resp["signature"])
	assert.Equal(t, float64(500), resp["fee"])
	assert.NotEmpty(t, resp["requestId"])
}

func TestWithdrawHandlerRejections(t *testing.T) {
	cases := []struct {
		name       string
		ledger     *fakeLedger
		mutate     func(map[string]any)
		wantStatus int
		wantCat    string
	}{
		{
			name:       "missing field",
			ledger:     &fakeLedger{},
			mutate:     func(b map[string]any) { delete(b, "proof") },
			wantStatus: http.StatusBadRequest,
			wantCat:    "validation",
		},
		{
			name:       "bad hex",
			ledger:     &fakeLedger{},
			mutate:     func(b map[string]any) { b["proof"] = "zzzz" },
			wantStatus: http.StatusBadRequest,
			wantCat:    "validation",
		},
		{
			name:       "amount below minimum",
			ledger:     &fakeLedger{},
			mutate:     func(b map[string]any) { b["amount"] = 10 },
			wantStatus: http.StatusBadRequest,
			wantCat:    "validation",
		},
		{
			name:       "already spent",
			ledger:     &fakeLedger{spent: true},
			mutate:     func(b map[string]any) {},
			wantStatus: http.StatusConflict,
			wantCat:    "state_conflict",
		},
		{
			name:       "insufficient relayer funds",
			ledger:     &fakeLedger{submitErr: errInsufficient},
			mutate:     func(b map[string]any) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantCat:    "resource",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRoutes(newTestHandler(t, tc.ledger))
			body := validWithdrawBody()
			tc.mutate(body)
			w, resp := doJSON(t, r, http.MethodPost, "/withdraw", body)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tc.wantCat, resp["category"])
		})
	}
}

var errInsufficient = &insufficientErr{}

type insufficientErr struct{}

func (e *insufficientErr) Error() string { return "insufficient funds for fee" }

func TestStatusForCategory(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForCategory(relay.CategoryValidation))
	assert.Equal(t, http.StatusConflict, statusForCategory(relay.CategoryStateConflict))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForCategory(relay.CategoryResource))
	assert.Equal(t, http.StatusServiceUnavailable, statusForCategory(relay.CategoryTransientNetwork))
	assert.Equal(t, http.StatusInternalServerError, statusForCategory(relay.CategoryUnknown))
}
