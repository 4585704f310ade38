// ABOUTME: Account handlers: register, login, logout, current user, user list
// ABOUTME: Login exchanges credentials for a signed bearer token

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/2389/campus-chat/internal/auth"
	"github.com/2389/campus-chat/internal/store"
)

// RegisterRequest is the JSON request body for POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type,omitempty"`
}

// LoginRequest is the JSON request body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for POST /api/login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the JSON shape for a user.
type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	UserType  string `json:"user_type"`
	CreatedAt string `json:"created_at"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		UserType:  string(u.UserType),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// handleRegister handles POST /api/register.
// Creates an account; user_type defaults to student when omitted.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.UserType != "" && !store.UserType(req.UserType).Valid() {
		s.sendJSONError(w, http.StatusBadRequest, "unknown user type")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &store.User{
		Username:     req.Username,
		Email:        req.Email,
		UserType:     store.UserType(req.UserType),
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			s.sendJSONError(w, http.StatusConflict, "username already exists")
			return
		}
		s.logger.Error("failed to create user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	s.writeJSON(w, http.StatusCreated, userResponse(user))
}

// handleLogin handles POST /api/login.
// Unknown usernames and wrong passwords produce the same response so the
// endpoint doesn't leak which accounts exist.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("failed to look up user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.verifier.Generate(user.ID, s.tokenTTL)
	if err != nil {
		s.logger.Error("failed to generate token", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	s.writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: userResponse(user)})
}

// handleLogout handles POST /api/logout.
// Tokens are stateless, so logout is the client discarding its token; the
// endpoint exists so clients have a uniform call to make.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleMe handles GET /api/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		s.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	s.writeJSON(w, http.StatusOK, userResponse(user))
}

// handleListUsers handles GET /api/users.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]UserResponse, len(users))
	for i, u := range users {
		response[i] = userResponse(u)
	}
	s.writeJSON(w, http.StatusOK, response)
}
