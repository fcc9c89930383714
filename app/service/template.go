package service

import (
	"context"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

type templateRepository interface {
	GetActive(ctx context.Context) (*entity.CertificateTemplate, error)
	Create(ctx context.Context, tpl *entity.CertificateTemplate) error
	Update(ctx context.Context, tpl *entity.CertificateTemplate) error
}

type TemplateService struct {
	repo templateRepository
	mu   sync.Mutex
}

func NewTemplateService(repo templateRepository) *TemplateService {
	return &TemplateService{repo: repo}
}

// Active returns the active template, creating the default one on first use.
func (s *TemplateService) Active(ctx context.Context) (*entity.CertificateTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(ctx)
}

func (s *TemplateService) Update(ctx context.Context, update entity.TemplateUpdate) (*entity.CertificateTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, err := s.activeLocked(ctx)
	if err != nil {
		return nil, err
	}
	if !update.Apply(tpl) {
		return tpl, nil
	}

	tpl.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateService) activeLocked(ctx context.Context) (*entity.CertificateTemplate, error) {
	tpl, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if tpl != nil {
		return tpl, nil
	}

	tpl = entity.NewDefaultCertificateTemplate(time.Now().UTC())
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}
