package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ledgermail/core/internal/session"
)

var (
	// ErrInvalidToken indicates the JWT token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the JWT token has expired
	ErrTokenExpired = errors.New("token expired")
)

const (
	// SessionCookieName is the cookie carrying the session token
	SessionCookieName = "ledgermail_session"
	// AuthorizationHeader is the header name for JWT token
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for Bearer token
	BearerPrefix = "Bearer "

	contextSessionKey = "session"
	contextUserIDKey  = "user_id"
	tokenIssuer       = "ledgermail"
)

// JWTClaims represents the claims in a session token
type JWTClaims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates session tokens
type JWTManager struct {
	secretKey []byte
}

// NewJWTManager creates a new JWTManager instance
func NewJWTManager(secretKey string) *JWTManager {
	return &JWTManager{secretKey: []byte(secretKey)}
}

// GenerateToken signs a token bound to the session, expiring with it
func (m *JWTManager) GenerateToken(sess *session.Session) (string, error) {
	claims := &JWTClaims{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Username:  sess.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			NotBefore: jwt.NewNumericDate(sess.CreatedAt),
			Issuer:    tokenIssuer,
			Subject:   sess.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ValidateToken validates a session token and returns the claims
func (m *JWTManager) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// SetSessionCookie writes the session token cookie
func SetSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, maxAge, "/", "", c.Request.TLS != nil, true)
}

// ClearSessionCookie expires the session token cookie
func ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", c.Request.TLS != nil, true)
}

// tokenFromRequest reads the session token from the cookie, falling back to
// a Bearer authorization header
func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader(AuthorizationHeader)
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimPrefix(authHeader, BearerPrefix)
	}
	return ""
}

// SessionMiddleware resolves the session of the request when one is present.
// It never aborts; use RequireAuth on routes that need a session.
func SessionMiddleware(jwtManager *JWTManager, store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			c.Next()
			return
		}

		sess, err := store.Get(c.Request.Context(), claims.SessionID)
		if err != nil {
			if !errors.Is(err, session.ErrSessionNotFound) {
				log.Printf("[Auth] Session lookup failed: %v", err)
			}
			c.Next()
			return
		}
		if sess.UserID != claims.UserID {
			c.Next()
			return
		}

		c.Set(contextSessionKey, sess)
		c.Set(contextUserIDKey, sess.UserID)

		c.Next()
	}
}

// RequireAuth rejects requests without a resolved session
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetSessionFromContext(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "AUTH_FAILED",
					"message": "Authentication required",
				},
			})
			return
		}
		c.Next()
	}
}

// GetSessionFromContext retrieves the session from the Gin context
func GetSessionFromContext(c *gin.Context) (*session.Session, bool) {
	value, exists := c.Get(contextSessionKey)
	if !exists {
		return nil, false
	}
	sess, ok := value.(*session.Session)
	return sess, ok
}

// GetUserIDFromContext retrieves the user ID from the Gin context
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(contextUserIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}
