package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSender is a mock implementation of Sender interface.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, email *Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// MockSession adds session control to MockSender.
type MockSession struct {
	MockSender
}

func (m *MockSession) Open(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSession) Close() error {
	return m.Called().Error(0)
}

var recordData = map[string]string{"name": "Alice", "branch": "CSE", "year_of_study": "3"}

func TestMailer_Send_DefaultMessage(t *testing.T) {
	t.Parallel()

	sender := &MockSender{}
	m := New(sender, nil, Config{From: "certs@example.com"})

	sender.On("Send", mock.Anything, mock.MatchedBy(func(email *Email) bool {
		return email.To[0] == "alice@example.com" &&
			email.From == "certs@example.com" &&
			email.Subject == DefaultSubject &&
			email.Text == "Dear Alice,\n\nPlease find your certificate attached.\n\nBest regards,\nCertificate Team" &&
			len(email.Attachments) == 1 &&
			email.Attachments[0].Filename == "certificate_alice_1.pdf"
	})).Return(nil)

	err := m.Send(context.Background(), SendParams{
		To:   "alice@example.com",
		Data: recordData,
		Attachments: []Attachment{{
			Filename:    "certificate_alice_1.pdf",
			ContentType: "application/pdf",
			Content:     []byte("%PDF-"),
		}},
	})

	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestMailer_Compose_SubjectResolution(t *testing.T) {
	t.Parallel()

	withSubject, err := ParseTemplate([]byte("---\nSubject: Well done {name}\n---\nHi"))
	require.NoError(t, err)
	plain, err := ParseTemplate([]byte("Hi {name}"))
	require.NoError(t, err)

	tests := []struct {
		tmpl     *Template
		name     string
		override string
		fallback string
		want     string
	}{
		{name: "frontmatter wins", tmpl: withSubject, override: "Override", want: "Well done Alice"},
		{name: "param when no frontmatter", tmpl: plain, override: "For {name}", want: "For Alice"},
		{name: "config fallback", tmpl: plain, fallback: "Fallback", want: "Fallback"},
		{name: "built-in default", tmpl: plain, want: DefaultSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := New(&MockSender{}, nil, Config{FallbackSubject: tt.fallback})
			email, err := m.Compose(SendParams{
				To:       "alice@example.com",
				Template: tt.tmpl,
				Subject:  tt.override,
				Data:     recordData,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, email.Subject)
		})
	}
}

func TestMailer_Send_NoRecipient(t *testing.T) {
	t.Parallel()

	sender := &MockSender{}
	m := New(sender, nil, Config{})

	err := m.Send(context.Background(), SendParams{Data: recordData})

	require.ErrorIs(t, err, ErrNoRecipient)
	sender.AssertNotCalled(t, "Send")
}

func TestMailer_Send_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		senderErr error
		want      error
		name      string
		fatal     bool
	}{
		{name: "unclassified becomes send failure", senderErr: errors.New("boom"), want: ErrSendFailed},
		{name: "auth stays auth", senderErr: ErrAuth, want: ErrAuth, fatal: true},
		{name: "connect stays connect", senderErr: ErrConnect, want: ErrConnect, fatal: true},
		{name: "recipient stays recipient", senderErr: ErrInvalidRecipient, want: ErrInvalidRecipient},
		{name: "cancellation passes through", senderErr: context.Canceled, want: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := &MockSender{}
			sender.On("Send", mock.Anything, mock.Anything).Return(tt.senderErr)
			m := New(sender, nil, Config{})

			err := m.Send(context.Background(), SendParams{To: "a@example.com", Data: recordData})
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.fatal, IsFatal(err))
		})
	}
}

func TestMailer_SendRaw_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email *Email
		want  error
		name  string
	}{
		{name: "no recipient", email: &Email{Subject: "s", HTML: "h"}, want: ErrNoRecipient},
		{name: "no subject", email: &Email{To: []string{"a@example.com"}, HTML: "h"}, want: ErrNoSubject},
		{name: "no content", email: &Email{To: []string{"a@example.com"}, Subject: "s"}, want: ErrNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := &MockSender{}
			m := New(sender, nil, Config{})
			require.ErrorIs(t, m.SendRaw(context.Background(), tt.email), tt.want)
			sender.AssertNotCalled(t, "Send")
		})
	}
}

func TestMailer_Session(t *testing.T) {
	t.Parallel()

	t.Run("open and close delegate to a session sender", func(t *testing.T) {
		t.Parallel()

		s := &MockSession{}
		s.On("Open", mock.Anything).Return(nil)
		s.On("Close").Return(nil)
		m := New(s, nil, Config{})

		require.NoError(t, m.Open(context.Background()))
		require.NoError(t, m.Close())
		s.AssertExpectations(t)
	})

	t.Run("open failure keeps its class", func(t *testing.T) {
		t.Parallel()

		s := &MockSession{}
		s.On("Open", mock.Anything).Return(ErrAuth)
		m := New(s, nil, Config{})

		err := m.Open(context.Background())
		require.ErrorIs(t, err, ErrAuth)
		assert.True(t, IsFatal(err))
	})

	t.Run("plain sender needs no session", func(t *testing.T) {
		t.Parallel()

		m := New(&NopSender{}, nil, Config{})
		require.NoError(t, m.Open(context.Background()))
		require.NoError(t, m.Close())
	})
}

func TestNopSender_Records(t *testing.T) {
	t.Parallel()

	s := &NopSender{}
	m := New(s, nil, Config{})
	require.NoError(t, m.Send(context.Background(), SendParams{To: "a@example.com", Data: recordData}))
	require.NoError(t, m.Send(context.Background(), SendParams{To: "b@example.com", Data: recordData}))

	sent := s.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"b@example.com"}, sent[1].To)
}
