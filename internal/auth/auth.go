package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "inventory-checkout"

// Claims is the session token payload. It carries no permissions; those are
// resolved from storage on every request.
type Claims struct {
	UserID       int64  `json:"user_id"`
	Email        string `json:"email"`
	RoleID       int64  `json:"role_id"`
	TempPassword bool   `json:"temp_password"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTTokenGenerator(secret string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTTokenGenerator{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for u. Each token gets its own jti so it can be revoked
// on its own.
func (j *JWTTokenGenerator) Issue(u *user.User) (string, *Claims, error) {
	now := j.now()
	claims := &Claims{
		UserID:       u.ID,
		Email:        u.Email,
		RoleID:       u.RoleID,
		TempPassword: u.TempPassword,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, algorithm and expiry.
func (j *JWTTokenGenerator) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken.WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 || claims.ID == "" {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}

// TTL is the lifetime of issued tokens.
func (j *JWTTokenGenerator) TTL() time.Duration {
	return j.ttl
}
