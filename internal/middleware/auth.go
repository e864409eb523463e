package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			helpers.RespondWithError(c, http.StatusInternalServerError, "JWT_SECRET not configured.")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Authorization header missing or malformed.")
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token.")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid token claims.")
			c.Abort()
			return
		}

		rawUserID, _ := claims["user_id"].(string)
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid user ID in token.")
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		if role, ok := claims["role"].(string); ok {
			c.Set("role", role)
		}
		c.Next()
	}
}

// ServiceKeyMiddleware admits internal callers whose X-Service-Key matches the bcrypt hash.
func ServiceKeyMiddleware(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Service-Key")
		if keyHash == "" || key == "" {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Service key required.")
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid service key.")
			c.Abort()
			return
		}
		c.Next()
	}
}
