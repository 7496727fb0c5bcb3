package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
)

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ts := auth.NewTokenService(config.Config{JWTSecret: "s", JWTExpiresIn: time.Hour})
	token, err := ts.GenerateToken(7)
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.GET("/me", NewAuthMiddleware(ts).RequireAuth(), func(c *gin.Context) {
		id, ok := User(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no bearer", token, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
		})
	}
}
