package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/conduit-realworld/conduitauth"
)

type profileResponse struct {
	Profile profileView `json:"profile"`
}

type profileView struct {
	Username  string  `json:"username"`
	Bio       *string `json:"bio"`
	Image     string  `json:"image"`
	Following bool    `json:"following"`
	// ViewerAuthenticated is true when the request carried a valid session.
	ViewerAuthenticated bool `json:"viewer_authenticated"`
}

// profile is served in optional mode: a bad token degrades to an anonymous view.
func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		writeError(w, http.StatusNotImplemented, "profiles are not available")
		return
	}
	user, err := s.profiles.GetUserByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		if errors.Is(err, conduitauth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		s.internalError(w, r, "profile", err)
		return
	}

	_, authenticated := conduitauth.IdentityFromContext(r.Context())
	image := user.Image
	if image == "" {
		image = s.defaultImage
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: profileView{
		Username:            user.Username,
		Bio:                 nullable(user.Bio),
		Image:               image,
		ViewerAuthenticated: authenticated,
	}})
}

type healthResponse struct {
	Status         string  `json:"status"`
	StoreLatencyMS float64 `json:"store_latency_ms"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Health(r.Context())
	resp := healthResponse{
		Status:         "ok",
		StoreLatencyMS: float64(status.StoreLatency) / float64(time.Millisecond),
	}
	code := http.StatusOK
	if !status.StoreAvailable {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
