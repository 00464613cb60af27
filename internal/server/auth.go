package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/region23/tablebook/pkg/errors"
)

const (
	claimsKey           = "claims"
	telegramSecretToken = "X-Telegram-Bot-Api-Secret-Token"
)

// Claims содержит идентичность администратора из bearer токена
type Claims struct {
	AdminID      string `json:"admin_id"`
	RestaurantID string `json:"restaurant_id"`
	jwt.RegisteredClaims
}

// Authenticator выпускает и проверяет HS256 токены.
// С пустым секретом идентичность отключена.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator создает проверяющего токены
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Enabled сообщает, настроен ли секрет
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Issue выпускает токен администратора
func (a *Authenticator) Issue(adminID, restaurantID string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.New("jwt secret is not configured")
	}

	now := time.Now()
	claims := Claims{
		AdminID:      adminID,
		RestaurantID: restaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify проверяет подпись и срок действия токена
func (a *Authenticator) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// identity извлекает необязательную идентичность из заголовка Authorization.
// Запрос без заголовка проходит анонимно, неверный токен получает 401.
func (s *Server) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !s.auth.Enabled() {
			c.Next()
			return
		}

		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			s.securityLogger.LogFailedAuth(c.Request, "malformed authorization header")
			s.respondError(c, apperrors.ErrUnauthorized)
			return
		}

		claims, err := s.auth.Verify(tokenStr)
		if err != nil {
			s.securityLogger.LogFailedAuth(c.Request, err.Error())
			s.respondError(c, apperrors.ErrUnauthorized)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// callerClaims возвращает идентичность вызывающего, если она есть
func callerClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// restaurantScope определяет ресторан запроса. Ресторан из токена
// имеет приоритет, явный id другого ресторана запрещен.
func restaurantScope(c *gin.Context, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)

	if claims, ok := callerClaims(c); ok && claims.RestaurantID != "" {
		if explicit != "" && explicit != claims.RestaurantID {
			return "", apperrors.ErrForbidden.WithContext(map[string]string{"restaurant_id": explicit})
		}
		return claims.RestaurantID, nil
	}

	if explicit == "" {
		return "", apperrors.Validation("restaurant_id is required")
	}
	return explicit, nil
}

// webhookSecret проверяет секретный токен Telegram webhook
func (s *Server) webhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(telegramSecretToken)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			s.securityLogger.LogFailedAuth(c.Request, "invalid telegram secret token")
			s.respondError(c, apperrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
