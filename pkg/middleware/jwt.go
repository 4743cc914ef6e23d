package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hackportal/portal/pkg/response"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Context keys for principal information
const (
	ContextKeyUserID = "user_id"
	ContextKeyEmail  = "email"
	ContextKeyRole   = "role"
)

// Roles understood by the portal
const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
	RoleMentor    = "mentor"
	RoleHacker    = "hacker"
)

// JWTConfig holds configuration for JWT middleware
type JWTConfig struct {
	// Secret key for validating JWT tokens
	Secret string
	// Issuer, when set, must match the iss claim
	Issuer string
	// SkipPaths are path prefixes that skip JWT validation
	SkipPaths []string
	// Optional lets requests without an Authorization header through anonymously.
	// A header that is present must still be valid.
	Optional bool
}

// Principal is the verified identity attached to a request
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// JWTMiddleware creates a new JWT validation middleware
func JWTMiddleware(config *JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if config.Optional {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("MISSING_TOKEN", "Authorization header is required"))
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Invalid authorization header format"))
			return
		}
		tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Token is empty"))
			return
		}

		principal, err := ParseToken(tokenString, config)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("TOKEN_EXPIRED", "Access token has expired"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Invalid access token"))
			return
		}

		c.Set(ContextKeyUserID, principal.UserID)
		c.Set(ContextKeyEmail, principal.Email)
		c.Set(ContextKeyRole, principal.Role)

		c.Next()
	}
}

// ParseToken validates an HMAC signed token and extracts the principal
func ParseToken(tokenString string, config *JWTConfig) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &Principal{UserID: userID, Email: email, Role: role}, nil
}

// RequireRole creates a middleware that checks if user has required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr, ok := GetRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
			return
		}

		for _, r := range roles {
			if roleStr == r {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Forbidden("Insufficient permissions"))
	}
}

// GetPrincipal returns the verified principal, if any
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	userID, ok := GetUserID(c)
	if !ok || userID == "" {
		return nil, false
	}
	email, _ := c.Get(ContextKeyEmail)
	role, _ := GetRole(c)
	e, _ := email.(string)
	return &Principal{UserID: userID, Email: e, Role: role}, true
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) (string, bool) {
	return getString(c, ContextKeyUserID)
}

// GetRole extracts role from gin context
func GetRole(c *gin.Context) (string, bool) {
	return getString(c, ContextKeyRole)
}

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
