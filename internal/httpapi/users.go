package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/conduit-realworld/conduitauth"
	"github.com/conduit-realworld/conduitauth/middleware"
)

type userResponse struct {
	User userView `json:"user"`
}

type userView struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Bio      *string `json:"bio"`
	Image    string  `json:"image"`
	Token    string  `json:"token"`
}

func (s *Server) userView(u conduitauth.User, token string) userResponse {
	image := u.Image
	if image == "" {
		image = s.defaultImage
	}
	return userResponse{User: userView{
		Username: u.Username,
		Email:    u.Email,
		Bio:      nullable(u.Bio),
		Image:    image,
		Token:    token,
	}}
}

type registerRequest struct {
	User struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"user"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, token, err := s.engine.Register(r.Context(), conduitauth.RegisterInput{
		Username: req.User.Username,
		Email:    req.User.Email,
		Password: req.User.Password,
	}, middleware.ClientIP(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, s.userView(user, token.Token))
	case errors.Is(err, conduitauth.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, inputMessage(err))
	case errors.Is(err, conduitauth.ErrUserExists):
		writeError(w, http.StatusConflict, "email or username has already been taken")
	default:
		s.internalError(w, r, "register", err)
	}
}

type loginRequest struct {
	User struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"user"`
}

type detailResponse struct {
	Detail []detailMessage `json:"detail"`
}

type detailMessage struct {
	Msg string `json:"msg"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, token, err := s.engine.Login(r.Context(), req.User.Email, req.User.Password, middleware.ClientIP(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.userView(user, token.Token))
	case errors.Is(err, conduitauth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, detailResponse{Detail: []detailMessage{{Msg: "incorrect credentials"}}})
	default:
		s.internalError(w, r, "login", err)
	}
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := conduitauth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	token, _ := conduitauth.ExtractToken(r.Header.Get("Authorization"))
	writeJSON(w, http.StatusOK, s.userView(identity.User, token))
}

type updateRequest struct {
	User struct {
		Username optionalString `json:"username"`
		Email    optionalString `json:"email"`
		Bio      optionalString `json:"bio"`
		Image    optionalString `json:"image"`
		Password optionalString `json:"password"`
	} `json:"user"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := conduitauth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, token, err := s.engine.UpdateUser(r.Context(), identity, conduitauth.UserChanges{
		Username: req.User.Username.ptr(),
		Email:    req.User.Email.ptr(),
		Bio:      req.User.Bio.ptr(),
		Image:    req.User.Image.ptr(),
		Password: req.User.Password.ptr(),
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.userView(user, token.Token))
	case errors.Is(err, conduitauth.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, inputMessage(err))
	case errors.Is(err, conduitauth.ErrUserExists):
		writeError(w, http.StatusConflict, "email or username has already been taken")
	default:
		s.internalError(w, r, "update user", err)
	}
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := conduitauth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.engine.Logout(r.Context(), identity.Session.ID); err != nil {
		s.internalError(w, r, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := conduitauth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	err := s.engine.LogoutAll(r.Context(), identity.User.ID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, conduitauth.ErrSessionStoreUnsupported):
		writeError(w, http.StatusNotImplemented, "not supported by the session backend")
	default:
		s.internalError(w, r, "logout all", err)
	}
}

type sessionsResponse struct {
	Sessions []sessionView `json:"sessions"`
}

type sessionView struct {
	ID        string     `json:"id"`
	IPAddress string     `json:"ip_address"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	Current   bool       `json:"current"`
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := conduitauth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	infos, err := s.engine.ListSessions(r.Context(), identity.User.ID)
	if err != nil {
		if errors.Is(err, conduitauth.ErrSessionStoreUnsupported) {
			writeError(w, http.StatusNotImplemented, "not supported by the session backend")
			return
		}
		s.internalError(w, r, "list sessions", err)
		return
	}

	resp := sessionsResponse{Sessions: make([]sessionView, 0, len(infos))}
	for _, info := range infos {
		view := sessionView{
			ID:        info.ID,
			IPAddress: info.IPAddress,
			CreatedAt: info.CreatedAt,
			Current:   info.ID == identity.Session.ID,
		}
		if !info.ExpiresAt.IsZero() {
			exp := info.ExpiresAt
			view.ExpiresAt = &exp
		}
		resp.Sessions = append(resp.Sessions, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.ErrorContext(r.Context(), "request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
