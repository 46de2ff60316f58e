package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/repository"
)

const unknownValue = "unknown"

type Visit struct {
	PageURL   string
	Referrer  string
	IPAddress string
	UserAgent string
}

type VisitorService interface {
	Track(ctx context.Context, v Visit) error
}

type visitorService struct {
	repo repository.VisitorRepository
}

func NewVisitorService(repo repository.VisitorRepository) VisitorService {
	return &visitorService{repo: repo}
}

// clip trims s, substitutes fallback for blanks and cuts it to max runes.
func clip(s, fallback string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}

func (s *visitorService) Track(ctx context.Context, v Visit) error {
	row := &model.VisitorLog{
		PageURL:   clip(v.PageURL, "", 255),
		IPAddress: clip(v.IPAddress, unknownValue, 45),
		UserAgent: clip(v.UserAgent, unknownValue, 0),
		Referrer:  clip(v.Referrer, "", 255),
	}
	return storeErr(s.repo.Create(ctx, row))
}
