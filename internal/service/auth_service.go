package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/evetabi/predict/internal/config"
	"github.com/evetabi/predict/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in the access token.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ──────────────────────────────────────────────────────────────────────────────

// NonceRequest asks for a login challenge.
type NonceRequest struct {
	Address string `json:"address" binding:"required"`
}

// Challenge is the message a wallet must personal_sign to log in.
type Challenge struct {
	Address   common.Address `json:"address"`
	Nonce     string         `json:"nonce"`
	Message   string         `json:"message"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// LoginRequest carries the signed challenge.
type LoginRequest struct {
	Address   string `json:"address"   binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Address     common.Address `json:"address"`
	Role        string         `json:"role"`
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// JWT claims
// ──────────────────────────────────────────────────────────────────────────────

// AppClaims extends jwt.RegisteredClaims with application-specific fields.
// Subject is the checksummed wallet address.
type AppClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	TokenType string `json:"type"`
}

// Address returns the wallet address in Subject.
func (c *AppClaims) Address() common.Address {
	return common.HexToAddress(c.Subject)
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthService
// ──────────────────────────────────────────────────────────────────────────────

// NonceStore keeps outstanding login nonces. Take must delete what it returns.
type NonceStore interface {
	Put(ctx context.Context, key, nonce string, ttl time.Duration) error
	Take(ctx context.Context, key string) (string, bool, error)
}

// AuthService implements wallet login: the client signs a server-issued
// nonce with EIP-191 personal_sign and receives an HS256 access token whose
// subject is the recovered address.
type AuthService struct {
	nonces NonceStore
	cfg    *config.Config
	now    func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(nonces NonceStore, cfg *config.Config) *AuthService {
	return &AuthService{nonces: nonces, cfg: cfg, now: time.Now}
}

// ──────────────────────────────────────────────────────────────────────────────
// Nonce / Login
// ──────────────────────────────────────────────────────────────────────────────

// IssueNonce creates a single-use login challenge for address.
func (s *AuthService) IssueNonce(ctx context.Context, address string) (*Challenge, error) {
	if !common.IsHexAddress(address) {
		return nil, domain.ErrInvalidAddress
	}
	addr := common.HexToAddress(address)
	nonce := uuid.NewString()

	if err := s.nonces.Put(ctx, addr.Hex(), nonce, s.cfg.JWT.NonceTTL); err != nil {
		return nil, fmt.Errorf("auth_service.IssueNonce: %w", err)
	}
	return &Challenge{
		Address:   addr,
		Nonce:     nonce,
		Message:   s.loginMessage(addr, nonce),
		ExpiresAt: s.now().UTC().Add(s.cfg.JWT.NonceTTL),
	}, nil
}

// Login verifies the signature over the outstanding challenge for address and
// returns an access token. The nonce is consumed whether or not the
// signature matches.
func (s *AuthService) Login(ctx context.Context, address, signature string) (*LoginResponse, error) {
	if !common.IsHexAddress(address) {
		return nil, domain.ErrInvalidAddress
	}
	addr := common.HexToAddress(address)

	nonce, ok, err := s.nonces.Take(ctx, addr.Hex())
	if err != nil {
		return nil, fmt.Errorf("auth_service.Login: %w", err)
	}
	if !ok {
		return nil, domain.ErrNonceInvalid
	}

	signer, err := RecoverPersonalSign([]byte(s.loginMessage(addr, nonce)), signature)
	if err != nil || signer != addr {
		return nil, domain.ErrSignatureInvalid
	}

	role := RoleUser
	if s.cfg.IsAdmin(addr) {
		role = RoleAdmin
	}
	token, exp, err := s.signAccessToken(addr, role)
	if err != nil {
		return nil, fmt.Errorf("auth_service.Login: tokens: %w", err)
	}
	return &LoginResponse{Address: addr, Role: role, AccessToken: token, ExpiresAt: exp}, nil
}

func (s *AuthService) loginMessage(addr common.Address, nonce string) string {
	return fmt.Sprintf("Sign in to PREDICT on %s\n\nAddress: %s\nChain ID: %d\nNonce: %s",
		s.cfg.Chain.Name, addr.Hex(), s.cfg.Chain.ID, nonce)
}

// RecoverPersonalSign returns the address that produced an EIP-191
// personal_sign signature (0x-hex, 65 bytes, v in {0,1} or {27,28}) over msg.
func RecoverPersonalSign(msg []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature length %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Token helpers
// ──────────────────────────────────────────────────────────────────────────────

func (s *AuthService) signAccessToken(addr common.Address, role string) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.cfg.JWT.AccessTTL)
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Role:      role,
		TokenType: "access",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.AccessSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

// ParseAccessToken validates the token signature, algorithm, expiry and type.
// Used by the JWT middleware and the WS hub.
func (s *AuthService) ParseAccessToken(tokenString string) (*AppClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.AccessSecret), nil
	})
	if err != nil || !tok.Valid {
		return nil, domain.ErrTokenInvalid
	}
	claims, ok := tok.Claims.(*AppClaims)
	if !ok || claims.TokenType != "access" || !common.IsHexAddress(claims.Subject) {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// AddressFromToken returns the wallet address an access token was issued to.
// Used by the WS hub to tag connections.
func (s *AuthService) AddressFromToken(tokenString string) (common.Address, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return common.Address{}, err
	}
	return claims.Address(), nil
}
