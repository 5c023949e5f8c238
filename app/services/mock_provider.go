package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/amirphl/orochi-mail/utils"
)

// MockEmailProvider records messages instead of sending them.
// Recipients listed in FailFor get an error back.
type MockEmailProvider struct {
	mu           sync.Mutex
	sentMessages []MockEmailMessage
	failFor      map[string]error
	pingErr      error
	logger       *log.Logger
}

// MockEmailMessage represents a recorded mock email
type MockEmailMessage struct {
	EmailMessage
	MessageID string
}

// NewMockEmailProvider creates a new mock email provider
func NewMockEmailProvider(logger *log.Logger) *MockEmailProvider {
	return &MockEmailProvider{
		failFor: make(map[string]error),
		logger:  logger,
	}
}

func (p *MockEmailProvider) Name() string { return "mock" }

// FailFor makes every send to address fail with err. A nil err clears it.
func (p *MockEmailProvider) FailFor(address string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failFor, strings.ToLower(address))
		return
	}
	p.failFor[strings.ToLower(address)] = err
}

// SetPingError makes Ping return err
func (p *MockEmailProvider) SetPingError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingErr = err
}

func (p *MockEmailProvider) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.failFor[strings.ToLower(msg.To)]; ok {
		return "", err
	}

	id := fmt.Sprintf("mock-%d-%d", len(p.sentMessages)+1, utils.UTCNowUnixNano())
	p.sentMessages = append(p.sentMessages, MockEmailMessage{EmailMessage: msg, MessageID: id})
	if p.logger != nil {
		p.logger.Printf("Mock email sent to %s [%s]", msg.To, msg.Subject)
	}
	return id, nil
}

func (p *MockEmailProvider) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pingErr
}

// GetSentMessages returns a copy of all recorded messages
func (p *MockEmailProvider) GetSentMessages() []MockEmailMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]MockEmailMessage, len(p.sentMessages))
	copy(out, p.sentMessages)
	return out
}

// ClearSentMessages clears the recorded messages
func (p *MockEmailProvider) ClearSentMessages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentMessages = nil
}
