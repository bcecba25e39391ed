package handlers

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relayer-backend/internal/events"
	"relayer-backend/internal/field"
	"relayer-backend/internal/hashing"
	"relayer-backend/internal/relay"
)

// RelayHandler serves the public relayer API.
type RelayHandler struct {
	pipeline  *relay.Pipeline
	sync      *events.SyncService
	engine    *hashing.Engine
	startTime time.Time
}

// NewRelayHandler creates a new RelayHandler instance. sync may be nil
// when the deposit stream is disabled.
func NewRelayHandler(pipeline *relay.Pipeline, sync *events.SyncService, engine *hashing.Engine) *RelayHandler {
	return &RelayHandler{
		pipeline:  pipeline,
		sync:      sync,
		engine:    engine,
		startTime: time.Now(),
	}
}

// HealthHandler reports liveness and the relayer's verification posture.
// GET /health
func (h *RelayHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                   "ok",
		"service":                  "relayer-backend",
		"proofVerificationEnabled": h.pipeline.Config().VerifyProofs,
		"parameterSet":             h.engine.ParameterSet(),
	})
}

// StatusHandler reports operator identity, fee policy and counters.
// GET /status
func (h *RelayHandler) StatusHandler(c *gin.Context) {
	stats := h.pipeline.Stats()
	cfg := h.pipeline.Config()

	resp := gin.H{
		"relayerAddress": cfg.RelayerAddress,
		"feeBps":         cfg.FeeBps,
		"minAmount":      cfg.MinAmount,
		"maxAmount":      cfg.MaxAmount,
		"uptimeSeconds":  int64(time.Since(h.startTime).Seconds()),
		"stats":          stats,
	}

	if h.sync != nil {
		root, leafCount, err := h.sync.Root(c.Request.Context())
		if err == nil {
			resp["merkleRoot"] = field.ToDecimalString(root)
			resp["leafCount"] = leafCount
		}
	}

	c.JSON(http.StatusOK, resp)
}

// QuoteHandler computes the fee for a prospective withdrawal.
// GET /quote?amount=
func (h *RelayHandler) QuoteHandler(c *gin.Context) {
	raw := c.Query("amount")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "amount query parameter is required",
		})
		return
	}
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "amount must be a non-negative integer",
		})
		return
	}

	fee := h.pipeline.Quote(amount)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"amount":    amount,
		"fee":       fee,
		"feeBps":    h.pipeline.Config().FeeBps,
		"netAmount": amount - fee,
		"relayer":   h.pipeline.Config().RelayerAddress,
	})
}

// AssetsHandler lists the asset identifiers this relayer accepts.
// GET /assets
func (h *RelayHandler) AssetsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"assets":  h.pipeline.SupportedAssets(),
	})
}

// WithdrawRequest is the public withdrawal submission payload. Binary
// fields are hex encoded, with or without 0x prefix.
type WithdrawRequest struct {
	Proof         string `json:"proof" binding:"required"`
	MerkleRoot    string `json:"merkleRoot" binding:"required"`
	NullifierHash string `json:"nullifierHash" binding:"required"`
	Recipient     string `json:"recipient" binding:"required"`
	Amount        uint64 `json:"amount" binding:"required"`
	AssetID       string `json:"assetId" binding:"required"`
	AssetMint     string `json:"assetMint"`
	AuxDataHash   string `json:"auxDataHash"`
}

// WithdrawHandler relays one withdrawal.
// POST /withdraw
func (h *RelayHandler) WithdrawHandler(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":  false,
			"category": string(relay.CategoryValidation),
			"error":    "invalid request body: " + err.Error(),
		})
		return
	}

	pipelineReq, err := toPipelineRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":  false,
			"category": string(relay.CategoryValidation),
			"error":    err.Error(),
		})
		return
	}

	res, err := h.pipeline.Process(c.Request.Context(), pipelineReq)
	if err != nil {
		category := relay.CategoryUnknown
		var re *relay.RejectError
		if errors.As(err, &re) {
			category = re.Category
		}
		c.JSON(statusForCategory(category), gin.H{
			"success":   false,
			"requestId": pipelineReq.ID,
			"category":  string(category),
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"requestId": pipelineReq.ID,
		"signature": res.Reference,
		"fee":       res.Fee,
	})
}

func toPipelineRequest(req *WithdrawRequest) (*relay.Request, error) {
	proof, err := decodeHexField("proof", req.Proof)
	if err != nil {
		return nil, err
	}
	root, err := decodeHexField("merkleRoot", req.MerkleRoot)
	if err != nil {
		return nil, err
	}
	nullifierHash, err := decodeHexField("nullifierHash", req.NullifierHash)
	if err != nil {
		return nil, err
	}
	assetID, err := decodeHexField("assetId", req.AssetID)
	if err != nil {
		return nil, err
	}
	var aux []byte
	if req.AuxDataHash != "" {
		aux, err = decodeHexField("auxDataHash", req.AuxDataHash)
		if err != nil {
			return nil, err
		}
	}

	return &relay.Request{
		ID:            uuid.New().String(),
		ProofBytes:    proof,
		MerkleRoot:    root,
		NullifierHash: nullifierHash,
		Recipient:     req.Recipient,
		Amount:        req.Amount,
		AssetID:       assetID,
		AssetMint:     req.AssetMint,
		AuxDataHash:   aux,
	}, nil
}

func decodeHexField(name, value string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(value), "0x"))
	if err != nil {
		return nil, errors.New(name + " is not valid hex")
	}
	return raw, nil
}

// statusForCategory maps rejection categories to HTTP status codes. The
// category string always travels in the body so clients do not have to
// reverse-map status codes.
func statusForCategory(c relay.Category) int {
	switch c {
	case relay.CategoryValidation:
		return http.StatusBadRequest
	case relay.CategoryStateConflict:
		return http.StatusConflict
	case relay.CategoryResource:
		return http.StatusUnprocessableEntity
	case relay.CategoryTransientNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
