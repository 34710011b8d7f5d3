package handlers

import (
	"net/http"

	"github.com/v2t/web/internal/auth"
)

// HomeHandler renders the landing page.
type HomeHandler struct{}

// Handle implements GET /.
func (HomeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	_, signedIn := auth.TokenFromRequest(r)
	render(w, r, http.StatusOK, "home", page{Title: "Home", SignedIn: signedIn})
}
