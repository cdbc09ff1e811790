package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"maestro/internal/settings"
)

const userKey = "maestro.user"

// Authenticator resolves bearer tokens to configured users.
type Authenticator struct {
	mu    sync.RWMutex
	users map[string]settings.User
}

// NewAuthenticator creates an Authenticator. With no users every /api
// request is rejected.
func NewAuthenticator(users map[string]settings.User) *Authenticator {
	return &Authenticator{users: users}
}

// SetUsers replaces the token table.
func (a *Authenticator) SetUsers(users map[string]settings.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users = users
}

// Lookup returns the user owning token.
func (a *Authenticator) Lookup(token string) (settings.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for t, u := range a.users {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return u, true
		}
	}
	return settings.User{}, false
}

// Middleware rejects requests without a known bearer token.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		user, ok := a.Lookup(strings.TrimSpace(token))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func (s *Server) me(c *gin.Context) {
	u := c.MustGet(userKey).(settings.User)
	c.JSON(http.StatusOK, gin.H{
		"name":     u.Name,
		"email":    u.Email,
		"imageURL": u.ImageURL,
	})
}
