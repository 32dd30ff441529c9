package controller

import (
	"net/http"

	"github.com/unclebandit/smscampaigns/internal/model"
	"github.com/unclebandit/smscampaigns/internal/templates"
)

type TemplateController struct{}

// ListTemplates returns the catalog, optionally narrowed by ?category=.
func (c *TemplateController) ListTemplates(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeJSON(w, http.StatusOK, map[string]any{"data": templates.All()})
		return
	}

	t := model.CampaignType(category)
	if !t.Valid() {
		writeMessage(w, http.StatusBadRequest, "unknown category "+category)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": templates.ByCategory(t)})
}
