package handler

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smartrent-ledger/internal/config"
	"github.com/iliyamo/smartrent-ledger/internal/middleware"
	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/repository"
	"github.com/iliyamo/smartrent-ledger/internal/utils"
)

const authSecret = "auth-test-secret"

var walletA = model.MustAddress("0x00000000000000000000000000000000000000a1")

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) Create(ctx context.Context, email, password string, address model.Address, role string, cost int) (uint64, error) {
	args := m.Called(email, address, role)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockAccounts) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	args := m.Called(email)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *mockAccounts) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	args := m.Called(id)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *mockAccounts) GetByAddress(ctx context.Context, addr model.Address) (model.Account, error) {
	args := m.Called(addr)
	return args.Get(0).(model.Account), args.Error(1)
}

type mockNonces struct{ mock.Mock }

func (m *mockNonces) Issue(ctx context.Context, nonce string, address model.Address, message string, now, exp time.Time) error {
	return m.Called(nonce, address, message).Error(0)
}

func (m *mockNonces) Consume(ctx context.Context, nonce string, address model.Address, now time.Time) (string, error) {
	args := m.Called(nonce, address)
	return args.String(0), args.Error(1)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) StoreRefresh(ctx context.Context, accountID uint64, tokenHash string, exp time.Time) error {
	return m.Called(accountID).Error(0)
}

func (m *mockTokens) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	args := m.Called(tokenHash)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockTokens) RevokeByHash(ctx context.Context, tokenHash string) error {
	return m.Called(tokenHash).Error(0)
}

func (m *mockTokens) RevokeAllForAccount(ctx context.Context, accountID uint64) error {
	return m.Called(accountID).Error(0)
}

func newAuth(t *testing.T) (*echo.Echo, *mockAccounts, *mockTokens, *mockNonces) {
	t.Helper()
	accounts, tokens, nonces := &mockAccounts{}, &mockTokens{}, &mockNonces{}
	h := NewAuthHandler(config.Config{
		JWTSecret:      authSecret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     4,
		WalletDomain:   "smartrent.test",
		ChainID:        137,
	}, accounts, tokens, nonces)

	e := echo.New()
	e.POST("/nonce", h.Nonce)
	e.POST("/register", h.Register)
	e.POST("/login", h.Login)
	e.POST("/wallet", h.WalletLogin)
	e.POST("/refresh", h.Refresh)
	e.POST("/refresh-access", h.RefreshAccess)
	e.POST("/logout", h.Logout, middleware.OptionalJWTAuth(authSecret))
	e.GET("/me", h.Me, middleware.JWTAuth(authSecret))
	t.Cleanup(func() {
		accounts.AssertExpectations(t)
		tokens.AssertExpectations(t)
		nonces.AssertExpectations(t)
	})
	return e, accounts, tokens, nonces
}

// wallet is a key the tests sign with, plus its address.
type wallet struct {
	key  *ecdsa.PrivateKey
	addr model.Address
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, addr: model.MustAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

// sign produces a personal_sign style signature over message.
func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	hash := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n"+strconv.Itoa(len(message))), []byte(message))
	sig, err := crypto.Sign(hash, w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

// expectNonce makes nonces hand out a sign-in message for addr under nonce.
func expectNonce(nonces *mockNonces, nonce string, addr model.Address) string {
	msg := utils.WalletMessage("smartrent.test", 137, addr.String(), nonce, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	nonces.On("Consume", nonce, addr).Return(msg, nil).Once()
	return msg
}

func walletBody(fields map[string]string) string {
	b, _ := json.Marshal(fields)
	return string(b)
}

func post(e *echo.Echo, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterCreatesMemberAndIssuesTokens(t *testing.T) {
	e, accounts, tokens, nonces := newAuth(t)
	alice := newWallet(t)
	msg := expectNonce(nonces, "n1", alice.addr)
	accounts.On("Create", "alice@example.com", alice.addr, model.RoleMember).Return(uint64(3), nil).Once()
	tokens.On("StoreRefresh", uint64(3)).Return(nil).Once()

	rec := post(e, "/register", walletBody(map[string]string{
		"email":     " Alice@Example.com ",
		"password":  "correct-horse",
		"address":   alice.addr.String(),
		"nonce":     "n1",
		"signature": alice.sign(t, msg),
	}), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(3), resp.Account.ID)
	assert.Equal(t, model.RoleMember, resp.Account.Role)
	assert.NotEmpty(t, resp.Access.Token)
	assert.NotEmpty(t, resp.Refresh.Token)
}

func TestRegisterRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing email", `{"password":"correct-horse","address":"` + walletA.String() + `"}`, http.StatusBadRequest},
		{"short password", `{"email":"a@b.c","password":"short","address":"` + walletA.String() + `"}`, http.StatusBadRequest},
		{"bad address", `{"email":"a@b.c","password":"correct-horse","address":"0x12"}`, http.StatusBadRequest},
		{"missing signature", `{"email":"a@b.c","password":"correct-horse","nonce":"n1","address":"` + walletA.String() + `"}`, http.StatusBadRequest},
		{"missing nonce", `{"email":"a@b.c","password":"correct-horse","signature":"0x00","address":"` + walletA.String() + `"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _, _ := newAuth(t)
			assert.Equal(t, tt.want, post(e, "/register", tt.body, "").Code)
		})
	}
}

func TestRegisterConflicts(t *testing.T) {
	e, accounts, _, nonces := newAuth(t)
	w := newWallet(t)
	accounts.On("Create", "a@b.c", w.addr, model.RoleMember).Return(uint64(0), repository.ErrEmailExists).Once()
	accounts.On("Create", "d@e.f", w.addr, model.RoleMember).Return(uint64(0), repository.ErrAddressExists).Once()

	rec := post(e, "/register", walletBody(map[string]string{
		"email": "a@b.c", "password": "correct-horse", "address": w.addr.String(),
		"nonce": "n1", "signature": w.sign(t, expectNonce(nonces, "n1", w.addr)),
	}), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "email already exists")

	rec = post(e, "/register", walletBody(map[string]string{
		"email": "d@e.f", "password": "correct-horse", "address": w.addr.String(),
		"nonce": "n2", "signature": w.sign(t, expectNonce(nonces, "n2", w.addr)),
	}), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "address already registered")
}

func TestRegisterRequiresWalletSignature(t *testing.T) {
	victim, attacker := newWallet(t), newWallet(t)

	t.Run("signed by another key", func(t *testing.T) {
		e, accounts, _, nonces := newAuth(t)
		msg := expectNonce(nonces, "n1", victim.addr)
		rec := post(e, "/register", walletBody(map[string]string{
			"email": "mallory@b.c", "password": "correct-horse", "address": victim.addr.String(),
			"nonce": "n1", "signature": attacker.sign(t, msg),
		}), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "signature does not match address")
		accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("signature over another message", func(t *testing.T) {
		e, accounts, _, nonces := newAuth(t)
		expectNonce(nonces, "n1", victim.addr)
		rec := post(e, "/register", walletBody(map[string]string{
			"email": "a@b.c", "password": "correct-horse", "address": victim.addr.String(),
			"nonce": "n1", "signature": victim.sign(t, "something else"),
		}), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed signature", func(t *testing.T) {
		e, accounts, _, nonces := newAuth(t)
		expectNonce(nonces, "n1", victim.addr)
		rec := post(e, "/register", walletBody(map[string]string{
			"email": "a@b.c", "password": "correct-horse", "address": victim.addr.String(),
			"nonce": "n1", "signature": "0xdeadbeef",
		}), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown or spent nonce", func(t *testing.T) {
		e, accounts, _, nonces := newAuth(t)
		nonces.On("Consume", "stale", victim.addr).Return("", repository.ErrNonceInvalid).Once()
		rec := post(e, "/register", walletBody(map[string]string{
			"email": "a@b.c", "password": "correct-horse", "address": victim.addr.String(),
			"nonce": "stale", "signature": victim.sign(t, "anything"),
		}), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid or expired nonce")
		accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("nonce store down", func(t *testing.T) {
		e, _, _, nonces := newAuth(t)
		nonces.On("Consume", "n1", victim.addr).Return("", errors.New("connection reset")).Once()
		rec := post(e, "/register", walletBody(map[string]string{
			"email": "a@b.c", "password": "correct-horse", "address": victim.addr.String(),
			"nonce": "n1", "signature": victim.sign(t, "anything"),
		}), "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestNonceIssuesSignInMessage(t *testing.T) {
	e, _, _, nonces := newAuth(t)
	w := newWallet(t)
	nonces.On("Issue", mock.AnythingOfType("string"), w.addr, mock.AnythingOfType("string")).Return(nil).Once()

	rec := post(e, "/nonce", `{"address":"`+strings.ToUpper(w.addr.String()[2:])+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(e, "/nonce", `{"address":"`+w.addr.String()+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Nonce     string `json:"nonce"`
		Message   string `json:"message"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Nonce, 32)
	assert.Equal(t, 300, resp.ExpiresIn)
	assert.Contains(t, resp.Message, "smartrent.test wants you to sign in")
	assert.Contains(t, resp.Message, w.addr.String())
	assert.Contains(t, resp.Message, "Nonce: "+resp.Nonce)
	assert.Contains(t, resp.Message, "Chain ID: 137")

	issued := nonces.Calls[0].Arguments
	assert.Equal(t, resp.Nonce, issued.String(0))
	assert.Equal(t, resp.Message, issued.String(2))

	signer, err := utils.RecoverAddress(resp.Message, w.sign(t, resp.Message))
	require.NoError(t, err)
	assert.Equal(t, w.addr.String(), signer)
}

func TestWalletLogin(t *testing.T) {
	e, accounts, tokens, nonces := newAuth(t)
	member, stranger := newWallet(t), newWallet(t)
	accounts.On("GetByAddress", member.addr).Return(model.Account{ID: 8, Address: member.addr, Role: model.RoleMember, IsActive: true}, nil).Once()
	accounts.On("GetByAddress", stranger.addr).Return(model.Account{}, repository.ErrNotFound).Once()
	tokens.On("StoreRefresh", uint64(8)).Return(nil).Once()

	rec := post(e, "/wallet", walletBody(map[string]string{
		"address": member.addr.String(), "nonce": "n1",
		"signature": member.sign(t, expectNonce(nonces, "n1", member.addr)),
	}), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(8), resp.Account.ID)
	assert.NotEmpty(t, resp.Access.Token)

	rec = post(e, "/wallet", walletBody(map[string]string{
		"address": stranger.addr.String(), "nonce": "n2",
		"signature": stranger.sign(t, expectNonce(nonces, "n2", stranger.addr)),
	}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(e, "/wallet", walletBody(map[string]string{
		"address": member.addr.String(), "nonce": "n3",
		"signature": stranger.sign(t, expectNonce(nonces, "n3", member.addr)),
	}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusBadRequest, post(e, "/wallet", `{"address":"`+member.addr.String()+`"}`, "").Code)
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("correct-horse", 4)
	require.NoError(t, err)
	active := model.Account{ID: 5, Email: "a@b.c", PasswordHash: hash, Address: walletA, Role: model.RoleOperator, IsActive: true}
	disabled := active
	disabled.Email, disabled.IsActive = "off@b.c", false

	e, accounts, tokens, _ := newAuth(t)
	accounts.On("GetByEmail", "a@b.c").Return(active, nil)
	accounts.On("GetByEmail", "off@b.c").Return(disabled, nil)
	accounts.On("GetByEmail", "nobody@b.c").Return(model.Account{}, repository.ErrNotFound)
	tokens.On("StoreRefresh", uint64(5)).Return(nil).Once()

	rec := post(e, "/login", `{"email":"a@b.c","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.RoleOperator, resp.Account.Role)

	assert.Equal(t, http.StatusUnauthorized, post(e, "/login", `{"email":"a@b.c","password":"wrong-horse"}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(e, "/login", `{"email":"off@b.c","password":"correct-horse"}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(e, "/login", `{"email":"nobody@b.c","password":"correct-horse"}`, "").Code)
}

func TestRefreshRotates(t *testing.T) {
	e, accounts, tokens, _ := newAuth(t)
	hash := utils.HashRefreshRaw("raw-refresh")
	tokens.On("ValidateRefresh", hash).Return(uint64(5), nil).Once()
	tokens.On("RevokeByHash", hash).Return(nil).Once()
	tokens.On("StoreRefresh", uint64(5)).Return(nil).Once()
	accounts.On("GetByID", uint64(5)).Return(model.Account{ID: 5, Address: walletA, Role: model.RoleMember}, nil).Once()

	rec := post(e, "/refresh", `{"refresh_token":"raw-refresh"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshAccessKeepsRefreshToken(t *testing.T) {
	e, accounts, tokens, _ := newAuth(t)
	hash := utils.HashRefreshRaw("raw-refresh")
	tokens.On("ValidateRefresh", hash).Return(uint64(5), nil).Once()
	accounts.On("GetByID", uint64(5)).Return(model.Account{ID: 5, Address: walletA, Role: model.RoleMember}, nil).Once()

	rec := post(e, "/refresh-access", `{"refresh_token":"raw-refresh"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access"`)
	assert.NotContains(t, rec.Body.String(), `"refresh"`)
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	e, _, tokens, _ := newAuth(t)
	tokens.On("ValidateRefresh", utils.HashRefreshRaw("stale")).Return(uint64(0), repository.ErrTokenInvalid).Once()

	assert.Equal(t, http.StatusUnauthorized, post(e, "/refresh", `{"refresh_token":"stale"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, post(e, "/refresh", `{}`, "").Code)
}

func TestLogout(t *testing.T) {
	e, _, tokens, _ := newAuth(t)
	hash := utils.HashRefreshRaw("raw-refresh")
	tokens.On("ValidateRefresh", hash).Return(uint64(5), nil).Once()
	tokens.On("RevokeByHash", hash).Return(nil).Once()
	tokens.On("RevokeAllForAccount", uint64(9)).Return(nil).Once()

	assert.Equal(t, http.StatusNoContent, post(e, "/logout", `{"refresh_token":"raw-refresh"}`, "").Code)

	access, err := utils.NewAccessToken(authSecret, 9, walletA.String(), model.RoleMember, 15)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, post(e, "/logout", `{}`, access.Token).Code)

	assert.Equal(t, http.StatusBadRequest, post(e, "/logout", `{}`, "").Code)
}

func TestMe(t *testing.T) {
	e, accounts, _, _ := newAuth(t)
	accounts.On("GetByID", uint64(9)).Return(model.Account{ID: 9, Email: "a@b.c", Address: walletA, Role: model.RoleMember}, nil).Once()
	accounts.On("GetByID", uint64(10)).Return(model.Account{}, errors.New("connection reset")).Once()

	for id, want := range map[uint64]int{9: http.StatusOK, 10: http.StatusInternalServerError} {
		access, err := utils.NewAccessToken(authSecret, id, walletA.String(), model.RoleMember, 15)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+access.Token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}
