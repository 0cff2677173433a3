// Package auth issues and validates JWT access tokens and exposes the
// register/login HTTP handlers.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"chathub/internal/apperr"
	"chathub/internal/config"
	"chathub/internal/logger"
	"chathub/internal/repository/db"
	"chathub/pkg/validation"
)

type contextKey string

// UserContextKey carries the authenticated user's id in the request
// context.
const UserContextKey contextKey = "user_id"

// Claims are the JWT claims issued at login. Subject is the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type errorResponse struct {
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Service authenticates users against the store with a config-injected
// signing secret.
type Service struct {
	store     db.Store
	cfg       config.AuthConfig
	validator *validation.AuthRequestValidator
}

// NewService creates an auth Service.
func NewService(store db.Store, cfg config.AuthConfig) *Service {
	return &Service{
		store:     store,
		cfg:       cfg,
		validator: validation.NewAuthRequestValidator(),
	}
}

func sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := errorResponse{Code: status, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(resp)
}

// GenerateToken signs a token for a user.
func (s *Service) GenerateToken(userID, username string) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.cfg.TokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.JWTSecret)
}

// ValidateToken parses and verifies a token.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// Register creates an account and returns a signed token.
func (s *Service) Register(username, email, password string) (string, error) {
	if err := s.validator.ValidateRegisterRequest(username, email, password); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.CreateUser(username, email, string(hash))
	if err != nil {
		return "", err
	}

	logger.Log.WithField("username", username).Info("User registered")
	return s.GenerateToken(user.ID, user.Username)
}

// Login verifies credentials and returns a signed token.
func (s *Service) Login(username, password string) (string, error) {
	if err := s.validator.ValidateLoginRequest(username, password); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		return "", fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		logger.Log.WithField("username", username).Warn("Login failed: invalid password")
		return "", fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}

	logger.Log.WithField("username", username).Info("User logged in")
	return s.GenerateToken(user.ID, user.Username)
}

// LoginHandler authenticates a user and returns a JWT token.
func (s *Service) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	token, err := s.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrValidation):
			sendError(w, http.StatusBadRequest, "Username and password are required", nil)
		case errors.Is(err, apperr.ErrUnauthorized):
			sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		default:
			sendError(w, http.StatusInternalServerError, "Login failed", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{Token: token})
}

// RegisterHandler creates a new user account.
func (s *Service) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	token, err := s.Register(req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			sendError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		sendError(w, http.StatusInternalServerError, "Error creating user", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(RegisterResponse{
		Message: "User registered successfully",
		Token:   token,
	})
}

// Middleware validates the bearer token and injects the user id into
// the request context.
func (s *Service) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, http.StatusUnauthorized, "Missing authorization header", nil)
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			sendError(w, http.StatusUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := s.ValidateToken(bearerToken[1])
		if err != nil {
			sendError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// UserID extracts the authenticated user id from a request context.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserContextKey).(string)
	return id
}
