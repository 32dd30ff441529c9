package controller

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/unclebandit/smscampaigns/internal/logger"
	"github.com/unclebandit/smscampaigns/internal/model"
	"github.com/unclebandit/smscampaigns/internal/service"
)

const defaultMaxUploadBytes = 10 << 20

type ContactController struct {
	ContactService *service.ContactService
	Logger         *logger.Logger
	MaxUploadBytes int64
}

// ImportContacts handles a multipart upload with the fields file, group and category.
func (c *ContactController) ImportContacts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	limit := c.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	category := r.FormValue("category")
	if category == "" {
		category = string(model.TypeMarketing)
	}

	res, err := c.ContactService.ImportContacts(r.Context(), ownerID, r.FormValue("group"), model.CampaignType(category), file, header.Filename)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (c *ContactController) ListContacts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	contacts, pagination, err := c.ContactService.ListContacts(r.Context(), ownerID, q.Get("group"), page, pageSize)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       contacts,
		"pagination": pagination,
	})
}

func (c *ContactController) ListGroups(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	groups, err := c.ContactService.Groups(r.Context(), ownerID)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": groups})
}

func (c *ContactController) DeleteContact(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid contact id")
		return
	}

	if err := c.ContactService.DeleteContact(r.Context(), ownerID, id); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ContactController) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	// chi matches on RawPath when it is set, so only then is the param still escaped.
	group := chi.URLParam(r, "group")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(group)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid group")
			return
		}
		group = unescaped
	}
	n, err := c.ContactService.DeleteGroup(r.Context(), ownerID, group)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": group, "deleted": n})
}
