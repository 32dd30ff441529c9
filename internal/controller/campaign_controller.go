// internal/controller/campaign_controller.go
package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/unclebandit/smscampaigns/internal/logger"
	"github.com/unclebandit/smscampaigns/internal/model"
	"github.com/unclebandit/smscampaigns/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Logger          *logger.Logger
}

type contactRequest struct {
	FirstName string            `json:"first_name" validate:"max=100"`
	LastName  string            `json:"last_name" validate:"max=100"`
	Phone     string            `json:"phone" validate:"required"`
	Class     string            `json:"class" validate:"max=40"`
	Average   *float64          `json:"average" validate:"omitempty,gte=0,lte=20"`
	Fields    map[string]string `json:"fields"`
}

func (c contactRequest) toModel() model.Contact {
	return model.Contact{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Class:     c.Class,
		Average:   c.Average,
		Fields:    c.Fields,
	}
}

// toContacts keeps nil distinct from empty so updates can tell "unchanged" from "cleared".
func toContacts(in []contactRequest) []model.Contact {
	if in == nil {
		return nil
	}
	out := make([]model.Contact, len(in))
	for i, c := range in {
		out[i] = c.toModel()
	}
	return out
}

type createCampaignRequest struct {
	Name        string           `json:"name" validate:"required,max=120"`
	Type        string           `json:"type" validate:"required,oneof=academic marketing transactional"`
	Message     string           `json:"message"`
	TemplateID  string           `json:"template_id"`
	Contacts    []contactRequest `json:"contacts" validate:"omitempty,dive"`
	Group       string           `json:"group"`
	Groups      []string         `json:"groups" validate:"omitempty,dive,required"`
	ScheduledAt *time.Time       `json:"scheduled_at"`
}

type updateCampaignRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=120"`
	Message     *string          `json:"message"`
	Contacts    []contactRequest `json:"contacts" validate:"omitempty,dive"`
	ScheduledAt *time.Time       `json:"scheduled_at"`
}

type patchCampaignRequest struct {
	Action      string     `json:"action" validate:"required,oneof=duplicate send schedule"`
	ScheduledAt *time.Time `json:"scheduled_at" validate:"required_if=Action schedule"`
}

type previewRequest struct {
	ContactIndex     *int            `json:"contact_index" validate:"omitempty,gte=0"`
	Contact          *contactRequest `json:"contact" validate:"-"`
	OverrideTemplate *string         `json:"override_template"`
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), ownerID, page, pageSize, q.Get("status"), q.Get("type"))
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var body createCampaignRequest
	if !decodeJSON(w, r, &body, false) {
		return
	}

	groups := body.Groups
	if body.Group != "" {
		groups = append([]string{body.Group}, groups...)
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), ownerID, service.CreateCampaignInput{
		Name:        body.Name,
		Type:        model.CampaignType(body.Type),
		Message:     body.Message,
		TemplateID:  body.TemplateID,
		Contacts:    toContacts(body.Contacts),
		Groups:      groups,
		ScheduledAt: body.ScheduledAt,
	})
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), ownerID, id)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	var body updateCampaignRequest
	if !decodeJSON(w, r, &body, false) {
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), ownerID, id, service.UpdateCampaignInput{
		Name:        body.Name,
		Message:     body.Message,
		Contacts:    toContacts(body.Contacts),
		ScheduledAt: body.ScheduledAt,
	})
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, campaign)
}

// PatchCampaign runs one of the campaign actions: duplicate, send or schedule.
func (c *CampaignController) PatchCampaign(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	var body patchCampaignRequest
	if !decodeJSON(w, r, &body, false) {
		return
	}

	var (
		campaign *model.Campaign
		err      error
		status   = http.StatusOK
	)
	switch body.Action {
	case "duplicate":
		campaign, err = c.CampaignService.DuplicateCampaign(r.Context(), ownerID, id)
		status = http.StatusCreated
	case "send":
		campaign, err = c.CampaignService.SendCampaign(r.Context(), ownerID, id)
	case "schedule":
		campaign, err = c.CampaignService.ScheduleCampaign(r.Context(), ownerID, id, *body.ScheduledAt)
	}
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, status, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	if err := c.CampaignService.DeleteCampaign(r.Context(), ownerID, id); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) PreviewCampaign(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	var body previewRequest
	if !decodeJSON(w, r, &body, true) {
		return
	}

	in := service.PreviewInput{ContactIndex: body.ContactIndex, OverrideTemplate: body.OverrideTemplate}
	if body.Contact != nil {
		contact := body.Contact.toModel()
		in.Contact = &contact
	}

	rendered, err := c.CampaignService.RenderPreview(r.Context(), ownerID, id, in)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rendered_message": rendered,
		"used_template":    body.OverrideTemplate,
		"contact_index":    body.ContactIndex,
	})
}

func campaignID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid campaign id")
		return uuid.Nil, false
	}
	return id, true
}
