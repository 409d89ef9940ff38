package services

import (
	"fmt"
	"orderpulse/internal/core/domain"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenService struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Enabled reports whether tokens can be verified at all.
func (s *TokenService) Enabled() bool {
	return len(s.secretKey) > 0
}

// TTL is the lifetime of every issued token.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

func (s *TokenService) GenerateToken(id domain.Identity) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("%w: signing secret not configured", domain.ErrInvalidToken)
	}
	if id.UserID == "" {
		return "", fmt.Errorf("%w: user id required", domain.ErrInvalidIdentity)
	}
	if !id.Role.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownRole, id.Role)
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  id.UserID,             // Subject
		"role": string(id.Role),       // Participant role
		"iat":  now.Unix(),            // Issued At
		"exp":  now.Add(s.ttl).Unix(), // Expiration
		"iss":  s.issuer,              // Issuer
	}
	if id.PharmacyID != "" {
		claims["pharmacy_id"] = id.PharmacyID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken parses the JWT and returns the identity it carries.
func (s *TokenService) ValidateToken(tokenStr string) (domain.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// Ensure signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: invalid claims", domain.ErrInvalidToken)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.Identity{}, fmt.Errorf("%w: subject not found in token", domain.ErrInvalidToken)
	}
	rawRole, _ := claims["role"].(string)
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.Identity{}, err
	}
	pharmacyID, _ := claims["pharmacy_id"].(string)
	return domain.Identity{UserID: sub, Role: role, PharmacyID: pharmacyID}, nil
}
