package ports

import (
	"context"
	"io"

	"gentree/domain/events"
)

// Storage keys shared by the services.
const (
	TreeKey      = "gentree:tree"
	ViewStateKey = "gentree:viewstate"
)

// KeyValueStore persists opaque JSON documents by key.
// This is a port in hexagonal architecture - the services never see the backend.
type KeyValueStore interface {
	// Get returns the stored value, or a NOT_FOUND AppError when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set creates or overwrites the value under key
	Set(ctx context.Context, key string, value []byte) error
}

// Closer is implemented by stores holding connections or file handles.
type Closer interface {
	Close() error
}

// PhotoStore copies a photo into storage owned by the application.
type PhotoStore interface {
	// StorePhoto stores the photo found at source for personID and returns the
	// reference to save as the person's photoUri. Source may be a file path,
	// a file:// URI or a data: URI.
	StorePhoto(ctx context.Context, personID, source string) (string, error)

	// StorePhotoData stores raw bytes uploaded for personID. ext has no dot.
	StorePhotoData(ctx context.Context, personID, ext string, data io.Reader) (string, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventBus defines the interface for publishing domain events
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for an event type; "*" receives every event
	Subscribe(eventType string, handler EventHandler) error
}

// EventHandler defines the interface for handling domain events
type EventHandler interface {
	// Handle processes an event
	Handle(ctx context.Context, event events.DomainEvent) error

	// CanHandle checks if this handler can process the event
	CanHandle(eventType string) bool
}
