package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"huduma-svc/middleware"
	"huduma-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAuthHandler(db *sql.DB, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, logger: logger}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be 'user' or 'admin'"})
		return
	}

	var existingID int
	err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT id FROM users WHERE username = $1 AND deleted_at IS NULL", req.Username,
	).Scan(&existingID)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		respondError(c, h.logger, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var user models.User
	err = h.db.QueryRowContext(c.Request.Context(),
		"INSERT INTO users (username, password_hash, role) VALUES ($1, $2, $3) RETURNING id, username, role, created_at",
		req.Username, string(hashedPassword), role,
	).Scan(&user.ID, &user.Username, &user.Role, &user.CreatedAt)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("User registered", zap.String("username", user.Username))
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT id, username, password_hash, role, created_at FROM users WHERE username = $1 AND deleted_at IS NULL",
		req.Username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.SignToken(user.ID, user.Role, 24*time.Hour)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("User logged in", zap.String("username", user.Username))
	c.JSON(http.StatusOK, models.LoginResponse{Token: token, UserID: user.ID})
}
