package service

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smscampaigns/internal/errors"
	"github.com/unclebandit/smscampaigns/internal/importer"
	"github.com/unclebandit/smscampaigns/internal/logger"
	"github.com/unclebandit/smscampaigns/internal/model"
	"github.com/unclebandit/smscampaigns/internal/repository"
)

const maxGroupLength = 80

type ContactService struct {
	ContactRepo repository.ContactRepositoryInterface
	Importer    *importer.Importer
	Logger      *logger.Logger
}

type ImportResult struct {
	Group    string              `json:"group"`
	Imported int                 `json:"imported"`
	Total    int                 `json:"total"`
	Skipped  []importer.RowError `json:"skipped"`
	Contacts []model.Contact     `json:"contacts"`
}

// ImportContacts parses an uploaded file and stores its valid rows in group.
func (s *ContactService) ImportContacts(ctx context.Context, ownerID, group string, category model.CampaignType, file io.Reader, filename string) (*ImportResult, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return nil, appErrors.NewValidation("group is required")
	}
	if len([]rune(group)) > maxGroupLength {
		return nil, appErrors.NewValidation("group must be at most %d characters", maxGroupLength)
	}
	if !category.Valid() {
		return nil, appErrors.NewValidation("unknown category %q", category)
	}

	res, err := s.Importer.Import(file, filename, category)
	if err != nil {
		return nil, err
	}

	n, err := s.ContactRepo.Upsert(ctx, ownerID, group, res.Contacts)
	if err != nil {
		return nil, err
	}

	s.log().Info("Contacts imported",
		zap.String("owner_id", ownerID),
		zap.String("group", group),
		zap.Int("imported", n),
		zap.Int("skipped", len(res.Skipped)))

	skipped := res.Skipped
	if skipped == nil {
		skipped = []importer.RowError{}
	}
	return &ImportResult{
		Group:    group,
		Imported: n,
		Total:    res.Total,
		Skipped:  skipped,
		Contacts: res.Contacts,
	}, nil
}

// ListContacts fetches one page of the owner's contacts, optionally within a group.
func (s *ContactService) ListContacts(ctx context.Context, ownerID, group string, page, pageSize int) ([]model.StoredContact, map[string]int, error) {
	page, pageSize = normalizePage(page, pageSize)
	contacts, total, err := s.ContactRepo.List(ctx, ownerID, strings.TrimSpace(group), (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, nil, err
	}
	if contacts == nil {
		contacts = []model.StoredContact{}
	}
	return contacts, pagination(page, pageSize, total), nil
}

func (s *ContactService) Groups(ctx context.Context, ownerID string) ([]model.Group, error) {
	groups, err := s.ContactRepo.Groups(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []model.Group{}
	}
	return groups, nil
}

func (s *ContactService) DeleteContact(ctx context.Context, ownerID string, id uuid.UUID) error {
	return s.ContactRepo.Delete(ctx, ownerID, id)
}

// DeleteGroup removes every contact of a group and returns how many were deleted.
func (s *ContactService) DeleteGroup(ctx context.Context, ownerID, group string) (int64, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return 0, appErrors.NewValidation("group is required")
	}
	n, err := s.ContactRepo.DeleteGroup(ctx, ownerID, group)
	if err != nil {
		return 0, err
	}
	s.log().Info("Contact group deleted", zap.String("owner_id", ownerID), zap.String("group", group), zap.Int64("deleted", n))
	return n, nil
}

func (s *ContactService) log() *logger.Logger {
	if s.Logger == nil {
		return logger.NewNop()
	}
	return s.Logger
}
