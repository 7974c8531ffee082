package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smartrent-ledger/internal/config"
	"github.com/iliyamo/smartrent-ledger/internal/middleware"
	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/repository"
	"github.com/iliyamo/smartrent-ledger/internal/utils"
)

// AccountStore is the account persistence used by AuthHandler.
type AccountStore interface {
	Create(ctx context.Context, email, password string, address model.Address, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	GetByAddress(ctx context.Context, addr model.Address) (model.Account, error)
}

// TokenStore is the refresh token persistence used by AuthHandler.
type TokenStore interface {
	StoreRefresh(ctx context.Context, accountID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForAccount(ctx context.Context, accountID uint64) error
}

// NonceStore keeps the one-time nonces wallets sign.
type NonceStore interface {
	Issue(ctx context.Context, nonce string, address model.Address, message string, now, exp time.Time) error
	Consume(ctx context.Context, nonce string, address model.Address, now time.Time) (string, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Accounts AccountStore
	Tokens   TokenStore
	Nonces   NonceStore
}

func NewAuthHandler(cfg config.Config, a AccountStore, t TokenStore, n NonceStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: a, Tokens: t, Nonces: n}
}

var errWalletProof = errors.New("signature does not prove control of address")

// ----- DTOs -----

type nonceReq struct {
	Address string `json:"address"`
}
type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}
type walletLoginReq struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type accountPart struct {
	ID      uint64        `json:"id"`
	Email   string        `json:"email"`
	Address model.Address `json:"address"`
	Role    string        `json:"role"`
}
type authResp struct {
	Account accountPart `json:"account"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

func partOf(a model.Account) accountPart {
	return accountPart{ID: a.ID, Email: a.Email, Address: a.Address, Role: a.Role}
}

// issue creates an access token and a stored refresh token for a.
func (h *AuthHandler) issue(ctx context.Context, a model.Account) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.ID, a.Address.String(), a.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, a.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		Account: partOf(a),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// proveWallet consumes nonce and checks that signature over its message was
// made by addr's key.  The nonce is spent even when the signature is wrong.
func (h *AuthHandler) proveWallet(ctx context.Context, addr model.Address, nonce, signature string) error {
	msg, err := h.Nonces.Consume(ctx, strings.TrimSpace(nonce), addr, time.Now())
	if err != nil {
		return err
	}
	signer, err := utils.RecoverAddress(msg, signature)
	if err != nil || signer != addr.String() {
		return errWalletProof
	}
	return nil
}

// walletProofFailed writes the 401 for a failed proveWallet, or 500 for a
// store failure.
func walletProofFailed(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNonceInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired nonce"})
	case errors.Is(err, errWalletProof):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "signature does not match address"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verify wallet failed"})
}

// Nonce: issue the sign-in message a wallet must sign before its address
// can be registered or used to log in.
func (h *AuthHandler) Nonce(c echo.Context) error {
	var req nonceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	addr, err := model.ParseAddress(req.Address)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid address"})
	}
	nonce, err := utils.NewNonce()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "nonce failed"})
	}
	now := time.Now().UTC()
	msg := utils.WalletMessage(h.Cfg.WalletDomain, h.Cfg.ChainID, addr.String(), nonce, now)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Nonces.Issue(ctx, nonce, addr, msg, now, now.Add(utils.NonceTTL)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store nonce failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"nonce":      nonce,
		"message":    msg,
		"expires_in": int(utils.NonceTTL.Seconds()),
	})
}

// Register: create a MEMBER account bound to a wallet address and return
// tokens immediately.  The request must carry a nonce from Nonce and the
// wallet's signature over its message.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too short"})
	}
	addr, err := model.ParseAddress(req.Address)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid address"})
	}

	if strings.TrimSpace(req.Nonce) == "" || strings.TrimSpace(req.Signature) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nonce/signature required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.proveWallet(ctx, addr, req.Nonce, req.Signature); err != nil {
		return walletProofFailed(c, err)
	}

	id, err := h.Accounts.Create(ctx, req.Email, req.Password, addr, model.RoleMember, h.Cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, repository.ErrAddressExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "address already registered"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create account failed"})
	}

	resp, err := h.issue(ctx, model.Account{ID: id, Email: req.Email, Address: addr, Role: model.RoleMember})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login: verify and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !a.IsActive || !utils.VerifyPassword(a.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	resp, err := h.issue(ctx, a)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// WalletLogin: sign in with a wallet signature instead of a password.
func (h *AuthHandler) WalletLogin(c echo.Context) error {
	var req walletLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	addr, err := model.ParseAddress(req.Address)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid address"})
	}
	if strings.TrimSpace(req.Nonce) == "" || strings.TrimSpace(req.Signature) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nonce/signature required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.proveWallet(ctx, addr, req.Nonce, req.Signature); err != nil {
		return walletProofFailed(c, err)
	}
	a, err := h.Accounts.GetByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "wallet not registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !a.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	resp, err := h.issue(ctx, a)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke the old token, issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	accountID, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	a, err := h.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}

	resp, err := h.issue(ctx, a)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess: return a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	accountID, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	a, err := h.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.ID, a.Address.String(), a.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the refresh token in the body, or every refresh token of
// the authenticated account when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now()); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}

	if id, ok := middleware.AccountID(c); ok {
		if err := h.Tokens.RevokeAllForAccount(ctx, id); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me: the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	return c.JSON(http.StatusOK, partOf(a))
}
