package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kimhsiao/lifetrack/backend/internal/navigation"
)

// Navigation handles GET /navigation
// Returns the tabs and the pillar catalogue of the create menu.
func Navigation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"bottomTabs":    navigation.BottomTabs,
		"secondaryTabs": navigation.SecondaryTabs,
		"pillars":       navigation.Pillars,
	})
}

// CreateCommand handles POST /navigation/create
// Body: {"to": "/stocks/routines"}. Returns the command and its route.
func CreateCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	cmd, err := navigation.Create(req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"command": cmd, "href": cmd.Href()})
}
