package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/service"
)

// AuthHandler serves registration and login.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create a member, answer 201 with a Location header
//   - HandleLogin    → verify credentials, answer with a bearer token
//
// Both routes are public. Every other API route sits behind
// auth.RequireAuth and expects "Authorization: Bearer <token>".
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// userRequest is the JSON body of POST /auth/register, POST /users and
// PUT /users/{id}.
type userRequest struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	CPF       string      `json:"cpf"`
	DateBirth *model.Date `json:"dateBirth"`
	Password  string      `json:"password"`
}

func (req userRequest) input() service.UserInput {
	return service.UserInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CPF:       req.CPF,
		DateBirth: req.DateBirth,
		Password:  req.Password,
	}
}

// HandleRegister creates a member account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"name","email","phone","cpf","dateBirth","password"}
// RESPONSE: 201 {"name": "..."} with Location: /users/{id}
//
// The first violated rule is reported as a 400 with its own message, e.g.
// "CPF already registered".
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/users/"+user.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"name": user.Name})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin exchanges credentials for a session token.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
// RESPONSE: 200 {"token": "<jwt>"}, or 400 for bad credentials
//
// The client sends the token back as "Authorization: Bearer <jwt>". It
// expires two hours after issue.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
