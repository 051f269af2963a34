package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fraatlas/internal/email"
	"fraatlas/internal/notifications"
	"fraatlas/internal/ocr"
)

// MemoryStore is an in-memory storage.ObjectStore.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	// FailPutAfter, when positive, fails every Put after that many have succeeded.
	FailPutAfter int
	puts         int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

// ErrStoreFailure is returned by MemoryStore once FailPutAfter is reached.
var ErrStoreFailure = errors.New("memory store: put failed")

func (m *MemoryStore) Put(_ context.Context, bucket, key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPutAfter > 0 && m.puts >= m.FailPutAfter {
		return ErrStoreFailure
	}
	m.puts++
	m.objects[bucket+"/"+key] = append([]byte(nil), data...)
	m.types[bucket+"/"+key] = contentType
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	delete(m.types, bucket+"/"+key)
	return nil
}

func (m *MemoryStore) URL(_ context.Context, bucket, key string) (string, error) {
	return fmt.Sprintf("http://storage.test/%s/%s", bucket, key), nil
}

// Object returns the stored bytes and content type.
func (m *MemoryStore) Object(bucket, key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	return data, m.types[bucket+"/"+key], ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// ExtractorStub is a canned ocr.Extractor.
type ExtractorStub struct {
	Provider string
	Text     string
	Err      error

	mu    sync.Mutex
	calls []ocr.Image
}

func (e *ExtractorStub) Name() string {
	if e.Provider == "" {
		return ocr.ProviderGateway
	}
	return e.Provider
}

func (e *ExtractorStub) Extract(_ context.Context, img ocr.Image) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, img)
	e.mu.Unlock()
	return e.Text, e.Err
}

// Calls returns the images passed to Extract.
func (e *ExtractorStub) Calls() []ocr.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ocr.Image(nil), e.calls...)
}

// SenderStub records status emails instead of sending them.
type SenderStub struct {
	Err error

	mu   sync.Mutex
	sent []email.StatusEmail
}

func (s *SenderStub) SendStatusUpdate(_ context.Context, msg email.StatusEmail) (*email.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.sent = append(s.sent, msg)
	return &email.SendResult{ID: fmt.Sprintf("msg-%d", len(s.sent))}, nil
}

// Sent returns the recorded emails.
func (s *SenderStub) Sent() []email.StatusEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.StatusEmail(nil), s.sent...)
}

// PublishedEvent is one call to PublisherStub.PublishEvent.
type PublishedEvent struct {
	UserID uint
	Event  notifications.Event
}

// PublisherStub records realtime events.
type PublisherStub struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func (p *PublisherStub) PublishEvent(_ context.Context, userID uint, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{UserID: userID, Event: ev})
	return nil
}

// Events returns the recorded events.
func (p *PublisherStub) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedEvent(nil), p.events...)
}
