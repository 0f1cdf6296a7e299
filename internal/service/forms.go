package service

import (
	"context"
	"fmt"

	"kwikflow/internal/outbox"
	"kwikflow/internal/repo"
)

// SubmitConsultation stores a consultation request and queues the notification
// and confirmation e-mails. CreatedAt is stamped here.
func (s *Service) SubmitConsultation(ctx context.Context, in repo.NewConsultationRequest) (*repo.ConsultationRequest, error) {
	in.CreatedAt = s.now().UTC()
	req, err := s.repo.CreateConsultationRequest(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("store consultation request: %w", err)
	}
	s.countForm("consultation")
	s.logger.Info("consultation request received", "id", req.ID)

	s.enqueue(ctx, outbox.KindConsultationNotify, req)
	s.enqueue(ctx, outbox.KindConsultationConfirm, req)
	return req, nil
}

// SubmitLead stores a lead and queues the notification and confirmation e-mails.
func (s *Service) SubmitLead(ctx context.Context, in repo.NewLead) (*repo.Lead, error) {
	in.CreatedAt = s.now().UTC()
	lead, err := s.repo.CreateLead(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("store lead: %w", err)
	}
	s.countForm("lead")
	s.logger.Info("lead received", "id", lead.ID)

	s.enqueue(ctx, outbox.KindLeadNotify, lead)
	s.enqueue(ctx, outbox.KindLeadConfirm, lead)
	return lead, nil
}

func (s *Service) ListConsultationRequests(ctx context.Context) ([]repo.ConsultationRequest, error) {
	return s.repo.ListConsultationRequests(ctx)
}

func (s *Service) ListLeads(ctx context.Context) ([]repo.Lead, error) {
	return s.repo.ListLeads(ctx)
}

func (s *Service) countForm(form string) {
	if s.metrics != nil {
		s.metrics.FormSubmissions.WithLabelValues(form).Inc()
	}
}
