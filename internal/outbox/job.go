package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Job kinds handled by the service.
const (
	KindConsultationNotify  = "email.consultation.notify"
	KindConsultationConfirm = "email.consultation.confirm"
	KindLeadNotify          = "email.lead.notify"
	KindLeadConfirm         = "email.lead.confirm"
	KindWhatsAppSendText    = "whatsapp.send_text"
)

// Job is one side effect waiting to be executed.
type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Decode unmarshals the job payload into dest.
func (j Job) Decode(dest any) error {
	if err := json.Unmarshal(j.Payload, dest); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", j.Kind, err))
	}
	return nil
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
