package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"sketchlab/internal/domain"
	"sketchlab/internal/service"
)

func protectedRouter(tokenSvc *service.TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(tokenSvc), func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": claims.Subject})
	})
	return r
}

func TestAuthMiddlewareAllowsValidSessionToken(t *testing.T) {
	tokenSvc := service.NewTokenService("secret", 15*time.Minute, 10*time.Minute)
	token, err := tokenSvc.IssueSession(domain.Account{ID: "u1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	rec := performAuthed(protectedRouter(tokenSvc), http.MethodGet, "/protected", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	tokenSvc := service.NewTokenService("secret", 15*time.Minute, 10*time.Minute)

	rec := performAuthed(protectedRouter(tokenSvc), http.MethodGet, "/protected", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsResetToken(t *testing.T) {
	tokenSvc := service.NewTokenService("secret", 15*time.Minute, 10*time.Minute)
	token, err := tokenSvc.IssueReset("u1")
	if err != nil {
		t.Fatalf("issue reset: %v", err)
	}

	// Un token de reset no sirve como credencial de sesion.
	rec := performAuthed(protectedRouter(tokenSvc), http.MethodGet, "/protected", token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
