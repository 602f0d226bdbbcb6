package api

import "net/http"

// LogoutResponse is the body of POST /auth/logout.
type LogoutResponse struct {
	Revoked bool `json:"revoked"`
}

// registerSessionRoutes registers session management routes.
func (a *API) registerSessionRoutes(mux *http.ServeMux) {
	mux.Handle("POST /auth/logout", a.private(a.logout))
}

// logout ends the session behind the caller's token. Later requests with
// the same token are rejected as unauthorized.
func (a *API) logout(w http.ResponseWriter, r *http.Request) error {
	if err := a.Issuer.Revoke(r.Context(), claimsFrom(r.Context())); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, LogoutResponse{Revoked: true})
	return nil
}
