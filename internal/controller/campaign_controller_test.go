package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smscampaigns/internal/controller"
	appErrors "github.com/unclebandit/smscampaigns/internal/errors"
	"github.com/unclebandit/smscampaigns/internal/logger"
	"github.com/unclebandit/smscampaigns/internal/model"
	"github.com/unclebandit/smscampaigns/internal/queue"
	"github.com/unclebandit/smscampaigns/internal/repository"
	"github.com/unclebandit/smscampaigns/internal/service"
)

// --- Mock Repositories ---

type MockCampaignRepo struct {
	campaigns map[uuid.UUID]*model.Campaign
}

func newMockCampaignRepo(cs ...*model.Campaign) *MockCampaignRepo {
	m := &MockCampaignRepo{campaigns: map[uuid.UUID]*model.Campaign{}}
	for _, c := range cs {
		m.campaigns[c.ID] = c
	}
	return m
}

func (m *MockCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	m.campaigns[c.ID] = c
	return nil
}

func (m *MockCampaignRepo) GetByID(_ context.Context, ownerID string, id uuid.UUID) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return nil, appErrors.NewCampaignNotFound(id.String())
	}
	cp := *c
	return &cp, nil
}

func (m *MockCampaignRepo) List(_ context.Context, ownerID string, _ repository.CampaignFilter) ([]*model.Campaign, int, error) {
	var out []*model.Campaign
	for _, c := range m.campaigns {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (m *MockCampaignRepo) Update(_ context.Context, c *model.Campaign) error {
	m.campaigns[c.ID] = c
	return nil
}

func (m *MockCampaignRepo) Delete(_ context.Context, ownerID string, id uuid.UUID) error {
	c, ok := m.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return appErrors.NewCampaignNotFound(id.String())
	}
	delete(m.campaigns, id)
	return nil
}

func (m *MockCampaignRepo) AddDeliveryCounts(context.Context, uuid.UUID, int, int) error { return nil }

type MockOutboundRepo struct{}

func (MockOutboundRepo) CreateIfAbsent(context.Context, uuid.UUID, string, string) (*model.OutboundMessage, bool, error) {
	return nil, false, errors.New("not used")
}

func (MockOutboundRepo) UpdateStatus(context.Context, int64, model.DeliveryStatus, string) error {
	return nil
}

func (MockOutboundRepo) Stats(context.Context, uuid.UUID) (map[string]int, error) {
	return map[string]int{"total": 2, "pending": 0, "sent": 1, "failed": 1}, nil
}

type MockPublisher struct {
	Err  error
	Jobs []queue.DispatchJob
}

func (m *MockPublisher) Publish(_ context.Context, job queue.DispatchJob) error {
	if m.Err != nil {
		return m.Err
	}
	m.Jobs = append(m.Jobs, job)
	return nil
}

// --- Helpers ---

func newCampaignController(repo *MockCampaignRepo, pub *MockPublisher) *controller.CampaignController {
	return &controller.CampaignController{
		CampaignService: &service.CampaignService{
			CampaignRepo: repo,
			OutboundRepo: MockOutboundRepo{},
			Queue:        pub,
			Logger:       logger.NewNop(),
		},
		Logger: logger.NewNop(),
	}
}

func sampleCampaign(owner string) *model.Campaign {
	c := &model.Campaign{
		ID:      uuid.New(),
		OwnerID: owner,
		Name:    "Results",
		Type:    model.TypeAcademic,
		Status:  model.StatusDraft,
		Message: "Hello {first_name} {last_name}",
	}
	c.SetContacts([]model.Contact{
		{FirstName: "Alice", LastName: "Smith", Phone: "+33612345678"},
		{FirstName: "Bob", LastName: "Jones", Phone: "+33612345679"},
	})
	return c
}

// newRequest builds a request authenticated as owner with chi URL params set.
func newRequest(method, target, owner string, body any, params map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if owner != "" {
		ctx = controller.WithOwner(ctx, owner)
	}
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

// --- Tests ---

func TestCreateCampaignHandler(t *testing.T) {
	ctrl := newCampaignController(newMockCampaignRepo(), &MockPublisher{})
	body := map[string]any{
		"name":     "Promo",
		"type":     "marketing",
		"message":  "Hi {first_name}",
		"contacts": []map[string]any{{"first_name": "Ana", "phone": "+33612345678"}},
	}

	w := httptest.NewRecorder()
	ctrl.CreateCampaign(w, newRequest(http.MethodPost, "/api/campaigns", "user-1", body, nil))

	require.Equal(t, http.StatusCreated, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, "draft", out["status"])
	assert.Equal(t, float64(1), out["recipient_count"])
	assert.NotContains(t, out, "owner_id")
}

func TestCreateCampaignHandlerValidation(t *testing.T) {
	ctrl := newCampaignController(newMockCampaignRepo(), &MockPublisher{})
	body := map[string]any{"name": "", "type": "newsletter"}

	w := httptest.NewRecorder()
	ctrl.CreateCampaign(w, newRequest(http.MethodPost, "/api/campaigns", "user-1", body, nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, "validation failed", out["error"])
	assert.Len(t, out["errors"], 2)
}

func TestCreateCampaignHandlerRequiresOwner(t *testing.T) {
	ctrl := newCampaignController(newMockCampaignRepo(), &MockPublisher{})

	w := httptest.NewRecorder()
	ctrl.CreateCampaign(w, newRequest(http.MethodPost, "/api/campaigns", "", map[string]any{}, nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListCampaignsHandler(t *testing.T) {
	repo := newMockCampaignRepo(sampleCampaign("user-1"), sampleCampaign("user-2"))
	ctrl := newCampaignController(repo, &MockPublisher{})

	w := httptest.NewRecorder()
	ctrl.ListCampaigns(w, newRequest(http.MethodGet, "/api/campaigns?page=1&page_size=10", "user-1", nil, nil))

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Len(t, out["data"], 1)
	pagination := out["pagination"].(map[string]any)
	assert.Equal(t, float64(1), pagination["total_count"])
	assert.Equal(t, float64(10), pagination["page_size"])
}

func TestGetCampaignHandlerWithStats(t *testing.T) {
	c := sampleCampaign("user-1")
	ctrl := newCampaignController(newMockCampaignRepo(c), &MockPublisher{})

	w := httptest.NewRecorder()
	ctrl.GetCampaign(w, newRequest(http.MethodGet, "/api/campaigns/"+c.ID.String(), "user-1", nil, map[string]string{"id": c.ID.String()}))

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, c.ID.String(), out["id"])
	stats := out["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["sent"])
}

func TestGetCampaignHandlerErrors(t *testing.T) {
	c := sampleCampaign("user-1")
	ctrl := newCampaignController(newMockCampaignRepo(c), &MockPublisher{})

	w := httptest.NewRecorder()
	ctrl.GetCampaign(w, newRequest(http.MethodGet, "/api/campaigns/x", "user-1", nil, map[string]string{"id": "not-a-uuid"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	ctrl.GetCampaign(w, newRequest(http.MethodGet, "/api/campaigns/x", "user-2", nil, map[string]string{"id": c.ID.String()}))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "not found")
}

func TestPatchCampaignActions(t *testing.T) {
	c := sampleCampaign("user-1")
	repo := newMockCampaignRepo(c)
	pub := &MockPublisher{}
	ctrl := newCampaignController(repo, pub)
	params := map[string]string{"id": c.ID.String()}

	w := httptest.NewRecorder()
	ctrl.PatchCampaign(w, newRequest(http.MethodPatch, "/", "user-1", map[string]any{"action": "duplicate"}, params))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Results (copy)", decodeBody(t, w)["name"])

	w = httptest.NewRecorder()
	ctrl.PatchCampaign(w, newRequest(http.MethodPatch, "/", "user-1", map[string]any{"action": "send"}, params))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sent", decodeBody(t, w)["status"])
	assert.Len(t, pub.Jobs, 1)

	w = httptest.NewRecorder()
	ctrl.PatchCampaign(w, newRequest(http.MethodPatch, "/", "user-1", map[string]any{"action": "send"}, params))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPatchCampaignScheduleRequiresTime(t *testing.T) {
	c := sampleCampaign("user-1")
	ctrl := newCampaignController(newMockCampaignRepo(c), &MockPublisher{})
	params := map[string]string{"id": c.ID.String()}

	w := httptest.NewRecorder()
	ctrl.PatchCampaign(w, newRequest(http.MethodPatch, "/", "user-1", map[string]any{"action": "schedule"}, params))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	ctrl.PatchCampaign(w, newRequest(http.MethodPatch, "/", "user-1", map[string]any{"action": "schedule", "scheduled_at": at}, params))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scheduled", decodeBody(t, w)["status"])
}

func TestPatchCampaignSendPublishFailure(t *testing.T) {
	c := sampleCampaign("user-1")
	repo := newMockCampaignRepo(c)
	ctrl := newCampaignController(repo, &MockPublisher{Err: errors.New("broker down")})

	w := httptest.NewRecorder()
	ctrl.PatchCampaign(w, newRequest(http.MethodPatch, "/", "user-1", map[string]any{"action": "send"}, map[string]string{"id": c.ID.String()}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decodeBody(t, w)["error"])
	assert.Equal(t, model.StatusFailed, repo.campaigns[c.ID].Status)
}

func TestUpdateCampaignHandler(t *testing.T) {
	c := sampleCampaign("user-1")
	ctrl := newCampaignController(newMockCampaignRepo(c), &MockPublisher{})

	w := httptest.NewRecorder()
	ctrl.UpdateCampaign(w, newRequest(http.MethodPut, "/", "user-1", map[string]any{"message": "Bye {first_name}"}, map[string]string{"id": c.ID.String()}))

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, "Bye {first_name}", out["message"])
	assert.Equal(t, float64(2), out["recipient_count"])
}

func TestDeleteCampaignHandler(t *testing.T) {
	c := sampleCampaign("user-1")
	repo := newMockCampaignRepo(c)
	ctrl := newCampaignController(repo, &MockPublisher{})
	params := map[string]string{"id": c.ID.String()}

	w := httptest.NewRecorder()
	ctrl.DeleteCampaign(w, newRequest(http.MethodDelete, "/", "user-2", nil, params))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	ctrl.DeleteCampaign(w, newRequest(http.MethodDelete, "/", "user-1", nil, params))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.campaigns)
}

func TestPreviewCampaignHandler(t *testing.T) {
	c := sampleCampaign("user-1")
	ctrl := newCampaignController(newMockCampaignRepo(c), &MockPublisher{})
	params := map[string]string{"id": c.ID.String()}

	w := httptest.NewRecorder()
	ctrl.PreviewCampaign(w, newRequest(http.MethodPost, "/", "user-1", map[string]any{"contact_index": 1}, params))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello Bob Jones", decodeBody(t, w)["rendered_message"])

	// empty body previews the first contact
	w = httptest.NewRecorder()
	ctrl.PreviewCampaign(w, newRequest(http.MethodPost, "/", "user-1", nil, params))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello Alice Smith", decodeBody(t, w)["rendered_message"])

	w = httptest.NewRecorder()
	ctrl.PreviewCampaign(w, newRequest(http.MethodPost, "/", "user-1", map[string]any{
		"override_template": "Dear {full_name}",
		"contact":           map[string]any{"first_name": "Zoe", "last_name": "Lee"},
	}, params))
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, "Dear Zoe Lee", out["rendered_message"])
	assert.Equal(t, "Dear {full_name}", out["used_template"])
}

func TestListTemplatesHandler(t *testing.T) {
	ctrl := &controller.TemplateController{}

	w := httptest.NewRecorder()
	ctrl.ListTemplates(w, httptest.NewRequest(http.MethodGet, "/api/templates?category=academic", nil))
	require.Equal(t, http.StatusOK, w.Code)
	for _, tpl := range decodeBody(t, w)["data"].([]any) {
		assert.Equal(t, "academic", tpl.(map[string]any)["category"])
	}

	w = httptest.NewRecorder()
	ctrl.ListTemplates(w, httptest.NewRequest(http.MethodGet, "/api/templates?category=spam", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
