package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"storefront/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of an access token. The subject holds the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) TokenManager {
	return TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs an HS256 access token for the user.
func (tm *TokenManager) Issue(userId int, role string) (token string, expiresAt time.Time, err error) {
	issuedAt := tm.now().UTC()
	expiresAt = issuedAt.Add(tm.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userId),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		log.Printf("Issue: %v", err)
		err = models.ErrServerError
	}
	return
}

// Parse checks the signature and expiry of an access token.
func (tm *TokenManager) Parse(token string) (userId int, role string, err error) {
	claims := &Claims{}
	_, e := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if e != nil {
		if errors.Is(e, jwt.ErrTokenExpired) {
			err = models.Errorf(models.ErrUnauthorized, "access token expired")
		} else {
			err = models.Errorf(models.ErrUnauthorized, "invalid access token")
		}
		return
	}
	userId, e = strconv.Atoi(claims.Subject)
	if e != nil || userId < 1 {
		err = models.Errorf(models.ErrUnauthorized, "invalid access token")
		return
	}
	role = claims.Role
	return
}
