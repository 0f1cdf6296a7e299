package service

import (
	"context"
	"errors"
	"net/http"

	"kwikflow/internal/mail"
	"kwikflow/internal/outbox"
	"kwikflow/internal/repo"
	"kwikflow/internal/whatsapp"
)

// RegisterJobs binds the e-mail and WhatsApp side effects to the outbox.
func (s *Service) RegisterJobs(r JobRegistrar) {
	r.Register(outbox.KindConsultationNotify, consultationJob(s, s.composer.ConsultationNotification))
	r.Register(outbox.KindConsultationConfirm, consultationJob(s, s.composer.ConsultationConfirmation))
	r.Register(outbox.KindLeadNotify, leadJob(s, s.composer.LeadNotification))
	r.Register(outbox.KindLeadConfirm, leadJob(s, s.composer.LeadConfirmation))
	r.Register(outbox.KindWhatsAppSendText, s.handleRelay)
}

func consultationJob(s *Service, compose func(repo.ConsultationRequest) (mail.Message, error)) outbox.HandlerFunc {
	return func(ctx context.Context, job outbox.Job) error {
		var req repo.ConsultationRequest
		if err := job.Decode(&req); err != nil {
			return err
		}
		msg, err := compose(req)
		if err != nil {
			return outbox.Permanent(err)
		}
		return s.sendMail(ctx, msg)
	}
}

func leadJob(s *Service, compose func(repo.Lead) (mail.Message, error)) outbox.HandlerFunc {
	return func(ctx context.Context, job outbox.Job) error {
		var lead repo.Lead
		if err := job.Decode(&lead); err != nil {
			return err
		}
		msg, err := compose(lead)
		if err != nil {
			return outbox.Permanent(err)
		}
		return s.sendMail(ctx, msg)
	}
}

func (s *Service) sendMail(ctx context.Context, msg mail.Message) error {
	if s.mailer == nil {
		return outbox.Permanent(mail.ErrNotConfigured)
	}
	err := s.mailer.Send(ctx, msg)
	if err == nil {
		return nil
	}
	if errors.Is(err, mail.ErrNotConfigured) {
		return outbox.Permanent(err)
	}
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) && sendErr.StatusCode < http.StatusInternalServerError && sendErr.StatusCode != http.StatusTooManyRequests {
		return outbox.Permanent(err)
	}
	return err
}

func (s *Service) handleRelay(ctx context.Context, job outbox.Job) error {
	var p RelayPayload
	if err := job.Decode(&p); err != nil {
		return err
	}
	if s.whatsapp == nil {
		return outbox.Permanent(whatsapp.ErrNotConfigured)
	}
	_, err := s.whatsapp.SendText(ctx, p.To, p.Text)
	if err == nil {
		return nil
	}
	if errors.Is(err, whatsapp.ErrNotConfigured) {
		return outbox.Permanent(err)
	}
	var apiErr *whatsapp.APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		return outbox.Permanent(err)
	}
	return err
}
