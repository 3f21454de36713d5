package services

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"gentree/application/ports"
	"gentree/domain/core/valueobjects"
	pkgerrors "gentree/pkg/errors"
)

// ViewStateService keeps the canvas viewport next to the tree.
type ViewStateService struct {
	store  ports.KeyValueStore
	saver  *SaveScheduler
	logger *zap.Logger
	key    string

	mu      sync.RWMutex
	current valueobjects.ViewState
}

// NewViewStateService creates the service; key defaults to ports.ViewStateKey.
func NewViewStateService(store ports.KeyValueStore, saver *SaveScheduler, key string, logger *zap.Logger) *ViewStateService {
	if key == "" {
		key = ports.ViewStateKey
	}
	return &ViewStateService{
		store:   store,
		saver:   saver,
		logger:  logger,
		key:     key,
		current: valueobjects.DefaultViewState(),
	}
}

// Load reads the stored viewport. It reports false, keeping the default,
// when nothing usable is stored or the store fails.
func (s *ViewStateService) Load(ctx context.Context) (valueobjects.ViewState, bool) {
	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			s.logger.Warn("Failed to load view state", zap.String("key", s.key), zap.Error(err))
		}
		return s.Current(), false
	}

	vs, ok := valueobjects.ParseViewState(data)
	if !ok {
		s.logger.Warn("Ignoring malformed view state", zap.String("key", s.key))
		return s.Current(), false
	}

	s.mu.Lock()
	s.current = vs
	s.mu.Unlock()
	return vs, true
}

// Current returns the last loaded or saved viewport.
func (s *ViewStateService) Current() valueobjects.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save records the viewport and schedules a write.
func (s *ViewStateService) Save(vs valueobjects.ViewState) {
	s.mu.Lock()
	s.current = vs
	s.mu.Unlock()

	s.saver.Schedule(s.key, func() ([]byte, error) {
		return json.Marshal(vs)
	})
}
