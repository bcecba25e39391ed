package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"relayer-backend/internal/config"
	"relayer-backend/internal/models"
	"relayer-backend/internal/repository"
)

// AdminJWTClaims carries the operator identity inside admin tokens.
type AdminJWTClaims struct {
	KeyID string `json:"key_id"`
	jwt.RegisteredClaims
}

// AdminHandler serves the operator-only API: token issuance and journal
// inspection.
type AdminHandler struct {
	jwtSecret    []byte
	tokenTTL     time.Duration
	apiKeyHashes map[string]string // sha256(key) -> key id
	withdrawals  repository.WithdrawalRepository
	roots        repository.RootRepository
	logger       *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(cfg *config.AdminConfig, withdrawals repository.WithdrawalRepository, roots repository.RootRepository, logger *logrus.Logger) *AdminHandler {
	hashes := make(map[string]string, len(cfg.AdminAPIKeys))
	for i, key := range cfg.AdminAPIKeys {
		sum := sha256.Sum256([]byte(key))
		hashes[hex.EncodeToString(sum[:])] = "key-" + strconv.Itoa(i+1)
	}
	if len(hashes) == 0 {
		logger.Warn("⚠️ No admin API keys configured; admin login is disabled")
	}
	return &AdminHandler{
		jwtSecret:    []byte(cfg.JWTSecret),
		tokenTTL:     time.Duration(cfg.TokenTTLMin) * time.Minute,
		apiKeyHashes: hashes,
		withdrawals:  withdrawals,
		roots:        roots,
		logger:       logger,
	}
}

// AdminLoginRequest exchanges an API key for a short-lived JWT.
type AdminLoginRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// LoginHandler issues an admin token.
// POST /admin/login
func (h *AdminHandler) LoginHandler(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "api_key is required"})
		return
	}

	sum := sha256.Sum256([]byte(req.APIKey))
	sumHex := hex.EncodeToString(sum[:])

	keyID := ""
	for hash, id := range h.apiKeyHashes {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(sumHex)) == 1 {
			keyID = id
		}
	}
	if keyID == "" {
		h.logger.WithField("remote_addr", c.ClientIP()).Warn("Admin login failed - unknown API key")
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid API key"})
		return
	}

	now := time.Now()
	claims := AdminJWTClaims{
		KeyID: keyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "relayer-backend",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to sign token"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"key_id":      keyID,
		"remote_addr": c.ClientIP(),
	}).Info("Admin login succeeded")

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      signed,
		"expires_at": claims.ExpiresAt.Unix(),
	})
}

// WithdrawalsHandler lists journal rows, newest first.
// GET /admin/withdrawals?page=&page_size=&status=
func (h *AdminHandler) WithdrawalsHandler(c *gin.Context) {
	if h.withdrawals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "journal is not configured"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	var (
		records []*models.WithdrawalRecord
		total   int64
		err     error
	)
	if status := c.Query("status"); status != "" {
		records, total, err = h.withdrawals.FindByStatus(c.Request.Context(), models.WithdrawalStatus(status), page, pageSize)
	} else {
		records, total, err = h.withdrawals.FindRecent(c.Request.Context(), page, pageSize)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   total,
		"page":    page,
		"records": records,
	})
}

// RejectionsHandler breaks rejected withdrawals down by category.
// GET /admin/rejections
func (h *AdminHandler) RejectionsHandler(c *gin.Context) {
	if h.withdrawals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "journal is not configured"})
		return
	}
	counts, err := h.withdrawals.CountByCategory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "by_category": counts})
}

// RootsHandler lists the accumulator root audit trail.
// GET /admin/roots?limit=
func (h *AdminHandler) RootsHandler(c *gin.Context) {
	if h.roots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "root audit is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	records, err := h.roots.LatestRoots(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "roots": records})
}
