package main

import (
	"net/http"
	"time"

	"github.com/lychee-technology/tabula"
)

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse confirms a login and names the principal.
type LoginResponse struct {
	Message string            `json:"message"`
	User    *tabula.Principal `json:"user"`
}

// handleLogin handles POST /api/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := readJSONBody(r, &req); err != nil {
		writeTabulaError(w, r, err)
		return
	}

	principal, token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	http.SetCookie(w, s.sessionCookie(token, s.config.Auth.CookieMaxAge))
	writeSuccess(w, http.StatusOK, LoginResponse{Message: "Login successful", User: principal})
}

// handleLogout handles POST /api/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie := s.sessionCookie("", -1)
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
	writeSuccess(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// handleVerify handles GET /api/auth/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	principal, err := s.auth.Verify(r.Context(), sessionToken(r, s.config.Auth.CookieName))
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, principal)
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.Auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.Auth.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}
