package mail

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kwikflow/internal/logging"
	"kwikflow/internal/repo"
)

func ptr(s string) *string { return &s }

func TestSendPostsFormToMailgun(t *testing.T) {
	type captured struct {
		path, user, pass string
		form             map[string]string
	}
	got := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, pass, _ := r.BasicAuth()
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		got <- captured{path: r.URL.Path, user: user, pass: pass, form: form}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"<1@mg>","message":"Queued. Thank you."}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "key-123", Domain: "mg.example.com", BaseURL: srv.URL}, logging.Discard(), nil)
	require.True(t, c.Configured())

	err := c.Send(context.Background(), Message{
		Template: TemplateConsultationNotify,
		To:       "hello@kwikflow.co.za",
		Subject:  "New Consultation Request from Ann",
		HTML:     "<p>hi</p>",
		ReplyTo:  "ann@example.com",
	})
	require.NoError(t, err)

	req := <-got
	require.Equal(t, "/v3/mg.example.com/messages", req.path)
	require.Equal(t, "api", req.user)
	require.Equal(t, "key-123", req.pass)
	require.Equal(t, "KwikFlow <noreply@mg.example.com>", req.form["from"])
	require.Equal(t, "hello@kwikflow.co.za", req.form["to"])
	require.Equal(t, "ann@example.com", req.form["h:Reply-To"])
	require.Equal(t, "<p>hi</p>", req.form["html"])
}

func TestSendReportsProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "bad", Domain: "mg.example.com", BaseURL: srv.URL}, logging.Discard(), nil)
	err := c.Send(context.Background(), Message{To: "x@example.com"})

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	require.Equal(t, http.StatusUnauthorized, sendErr.StatusCode)
}

func TestSendWithoutCredentials(t *testing.T) {
	c := New(Config{Domain: "mg.example.com"}, logging.Discard(), nil)
	require.False(t, c.Configured())
	require.ErrorIs(t, c.Send(context.Background(), Message{}), ErrNotConfigured)
}

func TestComposerEscapesUserInput(t *testing.T) {
	comp := Composer{NotifyTo: "hello@kwikflow.co.za", Location: time.UTC}
	req := repo.ConsultationRequest{
		FullName:  "Ann <script>",
		Email:     "ann@example.com",
		Company:   ptr("Acme & Co"),
		Message:   "automate <b>invoices</b>",
		CreatedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}

	msg, err := comp.ConsultationNotification(req)
	require.NoError(t, err)
	require.Equal(t, "hello@kwikflow.co.za", msg.To)
	require.Equal(t, "ann@example.com", msg.ReplyTo)
	require.Equal(t, "New Consultation Request from Ann <script>", msg.Subject)
	require.Contains(t, msg.HTML, "Ann &lt;script&gt;")
	require.Contains(t, msg.HTML, "Acme &amp; Co")
	require.NotContains(t, msg.HTML, "<b>invoices</b>")
	require.NotContains(t, msg.HTML, "Phone:")
	require.Contains(t, msg.HTML, "1 May 2024 09:30 UTC")

	confirm, err := comp.ConsultationConfirmation(req)
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", confirm.To)
	require.Empty(t, confirm.ReplyTo)
	require.Contains(t, confirm.HTML, "hello@kwikflow.co.za")
}

func TestComposerListsLeadFeatures(t *testing.T) {
	comp := Composer{NotifyTo: "hello@kwikflow.co.za"}
	lead := repo.Lead{
		Email:              "lead@example.com",
		InterestedFeatures: "broadcasts, chatbots",
		PreferredPlan:      ptr("growth"),
		CreatedAt:          time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}

	msg, err := comp.LeadNotification(lead)
	require.NoError(t, err)
	require.Equal(t, "New Lead from lead@example.com", msg.Subject)
	require.Contains(t, msg.HTML, "<li>broadcasts</li>")
	require.Contains(t, msg.HTML, "<li>chatbots</li>")
	require.Contains(t, msg.HTML, "growth")

	confirm, err := comp.LeadConfirmation(lead)
	require.NoError(t, err)
	require.Equal(t, "lead@example.com", confirm.To)
	require.Contains(t, confirm.HTML, "Hello,")
}
