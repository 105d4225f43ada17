package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kinder-payment-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

var ErrNoIdentity = errors.New("no authenticated user")

// Identity is the caller resolved from the bearer token.
type Identity struct {
	UserID string
	Role   models.Role
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

// AuthMiddleware validates an HS256 bearer token and stores the caller's id and
// role on the context. The id is read from "user_id", falling back to "sub";
// a token without a role is treated as a parent.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		identity, err := parseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextRole, identity.Role)
		c.Next()
	}
}

func parseToken(tokenString string, secret []byte) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}

	id := claimString(claims, "user_id")
	if id == "" {
		id, _ = claims.GetSubject()
	}
	if id == "" {
		return Identity{}, ErrNoIdentity
	}

	role := models.Role(claimString(claims, "role"))
	if role == "" {
		role = models.RoleParent
	}
	return Identity{UserID: id, Role: role}, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

// CurrentIdentity returns the caller set by AuthMiddleware.
func CurrentIdentity(c *gin.Context) (Identity, error) {
	id := c.GetString(ContextUserID)
	if id == "" {
		return Identity{}, ErrNoIdentity
	}
	role, _ := c.Get(ContextRole)
	r, _ := role.(models.Role)
	return Identity{UserID: id, Role: r}, nil
}

func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := CurrentIdentity(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		for _, r := range roles {
			if identity.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	}
}

// IssueToken signs a token for id and role. Used by tests and local tooling.
func IssueToken(secret []byte, id string, role models.Role, claims jwt.MapClaims) (string, error) {
	all := jwt.MapClaims{"user_id": id, "role": string(role)}
	for k, v := range claims {
		all[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, all).SignedString(secret)
}
