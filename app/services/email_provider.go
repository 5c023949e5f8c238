package services

import (
	"context"
	"errors"
)

// ErrProviderNotConfigured is returned when no email provider has been wired
var ErrProviderNotConfigured = errors.New("email provider not configured")

// EmailMessage is a single outgoing message as handed to a provider
type EmailMessage struct {
	FromEmail string
	FromName  string
	To        string
	Subject   string
	HTML      string
	Text      string
	Headers   map[string]string
	Tags      map[string]string
}

// EmailProvider sends messages through a transactional email service
type EmailProvider interface {
	// Send returns the provider message id on success
	Send(ctx context.Context, msg EmailMessage) (string, error)
	// Ping checks that credentials and sending quota are usable
	Ping(ctx context.Context) error
	Name() string
}
