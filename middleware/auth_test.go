package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func protectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", AuthRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetInt(ContextUserID),
			"role":    c.GetString(ContextRole),
		})
	})
	return router
}

func TestAuthRequired_ValidToken(t *testing.T) {
	token, err := SignToken(42, "admin", time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	router := protectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthRequired_QueryToken(t *testing.T) {
	token, err := SignToken(42, "user", time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	router := protectedRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with query token, got %d", w.Code)
	}
}

func TestAuthRequired_MissingToken(t *testing.T) {
	router := protectedRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestAuthRequired_GarbageToken(t *testing.T) {
	router := protectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestAuthRequired_ExpiredToken(t *testing.T) {
	token, err := SignToken(42, "user", -time.Minute)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	router := protectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for expired token, got %d", w.Code)
	}
}
