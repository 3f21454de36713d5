package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gentree/application/ports"
	"gentree/domain/core/aggregates"
	"gentree/domain/core/entities"
	"gentree/domain/core/valueobjects"
	"gentree/domain/events"
	domainservices "gentree/domain/services"
	pkgerrors "gentree/pkg/errors"
)

// TreeMetrics observes tree mutations.
type TreeMetrics interface {
	RecordMutation(operation string, changed bool)
	SetTreeSize(persons, positioned int)
}

// TreeServiceConfig configures the tree service.
type TreeServiceConfig struct {
	TreeKey     string
	LoadTimeout time.Duration
}

// TreeService owns the family graph for the lifetime of the process.
//
// Mutations are applied under one mutex and return whether the state changed;
// a missing person is never an error. Changes to persons or positions are
// handed to the SaveScheduler, and persistence failures never reach callers.
type TreeService struct {
	mu    sync.RWMutex
	state aggregates.TreeState

	store     ports.KeyValueStore
	saver     *SaveScheduler
	publisher ports.EventPublisher
	metrics   TreeMetrics
	logger    *zap.Logger

	selectors *domainservices.Selectors
	placement *domainservices.Placement
	newID     func() string
	now       func() time.Time

	treeKey     string
	loadTimeout time.Duration

	startOnce sync.Once
	ready     chan struct{}
}

// TreeServiceOption customizes a TreeService.
type TreeServiceOption func(*TreeService)

// WithEventPublisher publishes domain events after each change.
func WithEventPublisher(p ports.EventPublisher) TreeServiceOption {
	return func(s *TreeService) { s.publisher = p }
}

// WithTreeMetrics records mutation metrics.
func WithTreeMetrics(m TreeMetrics) TreeServiceOption {
	return func(s *TreeService) { s.metrics = m }
}

// WithIDGenerator replaces the person id generator.
func WithIDGenerator(fn func() string) TreeServiceOption {
	return func(s *TreeService) { s.newID = fn }
}

// WithClock replaces the time source used for creation timestamps.
func WithClock(fn func() time.Time) TreeServiceOption {
	return func(s *TreeService) { s.now = fn }
}

// WithSelectors replaces the selectors, e.g. to collate for another locale.
func WithSelectors(sel *domainservices.Selectors) TreeServiceOption {
	return func(s *TreeService) { s.selectors = sel }
}

// WithPlacement replaces the placement rules.
func WithPlacement(pl *domainservices.Placement) TreeServiceOption {
	return func(s *TreeService) { s.placement = pl }
}

// NewTreeService creates the service. Nothing is loaded until Start.
func NewTreeService(
	store ports.KeyValueStore,
	saver *SaveScheduler,
	cfg TreeServiceConfig,
	logger *zap.Logger,
	opts ...TreeServiceOption,
) *TreeService {
	if cfg.TreeKey == "" {
		cfg.TreeKey = ports.TreeKey
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}

	s := &TreeService{
		state:       aggregates.NewTreeState(),
		store:       store,
		saver:       saver,
		logger:      logger,
		selectors:   domainservices.DefaultSelectors,
		placement:   domainservices.NewPlacement(nil),
		newID:       valueobjects.NewPersonID,
		now:         time.Now,
		treeKey:     cfg.TreeKey,
		loadTimeout: cfg.LoadTimeout,
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the last saved tree in the background. Mutations issued before
// the load completes wait for it; reads see the empty tree until then.
// Without Start, mutations wait twice the load timeout and are dropped.
func (s *TreeService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.ready)
			s.load(ctx)
		}()
	})
}

// Ready is closed once the initial load finished, successfully or not.
func (s *TreeService) Ready() <-chan struct{} {
	return s.ready
}

// IsReady reports whether the initial load finished.
func (s *TreeService) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the initial load finished or ctx ends.
func (s *TreeService) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return pkgerrors.NewTimeoutError("load tree").WithCause(ctx.Err())
	}
}

// Flush waits for pending saves to reach the store.
func (s *TreeService) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

func (s *TreeService) load(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	data, err := s.store.Get(loadCtx, s.treeKey)
	switch {
	case pkgerrors.IsNotFound(err):
		s.logger.Info("No saved tree, starting empty", zap.String("key", s.treeKey))
		return
	case err != nil:
		s.logger.Error("Failed to load tree, starting empty", zap.String("key", s.treeKey), zap.Error(err))
		return
	}

	raw, ok := aggregates.DecodeSnapshot(data)
	if !ok {
		s.logger.Warn("Saved tree is malformed, starting empty", zap.String("key", s.treeKey), zap.Int("bytes", len(data)))
		return
	}

	s.mu.Lock()
	s.state, _ = s.state.ReplaceAll(raw.Persons, raw.Positions, s.now())
	state := s.state
	s.mu.Unlock()

	s.logger.Info("Loaded tree",
		zap.Int("persons", state.Len()),
		zap.Int("positions", len(raw.Positions)),
	)
	s.observeSize(state)
	s.publish(events.NewTreeReplaced("load", state.Len(), len(raw.Positions), s.now()))
}

type transition func(aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent)

// mutate applies fn under the write lock once the tree is loaded.
func (s *TreeService) mutate(op string, fn transition) bool {
	if !s.awaitLoad(op) {
		return false
	}

	s.mu.Lock()
	next, change, evs := fn(s.state)
	if change == aggregates.ChangeNone {
		s.mu.Unlock()
		s.recordMutation(op, false)
		return false
	}
	s.state = next
	if change.Persistent() {
		s.scheduleSaveLocked(next)
	}
	s.mu.Unlock()

	s.logger.Debug("Tree changed", zap.String("operation", op), zap.Uint8("change", uint8(change)))
	s.recordMutation(op, true)
	if change.Has(aggregates.ChangePersons | aggregates.ChangePositions) {
		s.observeSize(next)
	}
	s.publish(evs...)
	return true
}

// awaitLoad waits for the initial load. The load is bounded by loadTimeout,
// so a wait past twice that means Start was never called; the mutation is
// dropped instead of blocking forever.
func (s *TreeService) awaitLoad(op string) bool {
	select {
	case <-s.ready:
		return true
	default:
	}

	timer := time.NewTimer(2 * s.loadTimeout)
	defer timer.Stop()
	select {
	case <-s.ready:
		return true
	case <-timer.C:
		s.logger.Error("Tree not loaded, mutation dropped", zap.String("operation", op))
		return false
	}
}

// scheduleSaveLocked must run under mu so saves are scheduled in commit order.
func (s *TreeService) scheduleSaveLocked(state aggregates.TreeState) {
	s.saver.Schedule(s.treeKey, func() ([]byte, error) {
		return aggregates.EncodeSnapshot(state.Snapshot())
	})
}

// AddPerson creates a person from input without relations and returns its id.
func (s *TreeService) AddPerson(input entities.PartialPerson) string {
	id := s.newID()
	s.mutate("add_person", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		now := s.now()
		next, change := st.AddPerson(id, input, now)
		p, _ := next.Person(id)
		return next, change, []events.DomainEvent{events.NewPersonAdded(id, p.FirstName, now)}
	})
	return id
}

// NewPersonRequest describes a person created together with its first links.
type NewPersonRequest struct {
	ID       string // optional pre-generated id
	Person   entities.PartialPerson
	ParentID string
	SpouseID string
	Place    bool // compute an initial canvas position
}

// AddPersonWithRelations creates a person, links the optional parent and
// spouse, and places the node next to its siblings, as one change.
func (s *TreeService) AddPersonWithRelations(req NewPersonRequest) string {
	id := req.ID
	if id == "" {
		id = s.newID()
	}
	s.mutate("add_person", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		now := s.now()
		next, change := st.AddPerson(id, req.Person, now)
		if change == aggregates.ChangeNone {
			return st, change, nil
		}
		p, _ := next.Person(id)
		evs := []events.DomainEvent{events.NewPersonAdded(id, p.FirstName, now)}

		var c aggregates.Change
		if req.ParentID != "" {
			if next, c = next.LinkParentChild(req.ParentID, id); c != aggregates.ChangeNone {
				evs = append(evs, events.NewRelationshipLinked(events.RelationParentChild, req.ParentID, id, now))
			}
			change |= c
		}
		if req.SpouseID != "" && req.SpouseID != id {
			if next, c = next.LinkSpouses(req.SpouseID, id); c != aggregates.ChangeNone {
				evs = append(evs, events.NewRelationshipLinked(events.RelationSpouse, req.SpouseID, id, now))
			}
			change |= c
		}
		if req.Place {
			pos := s.placement.SiblingAwarePosition(next.Positions(), next.PersonsByID(), req.ParentID)
			next, c = next.SetNodePosition(id, pos)
			change |= c
			evs = append(evs, events.NewNodeMoved(id, pos.X, pos.Y, now))
		}
		return next, change, evs
	})
	return id
}

// UpdatePerson replaces an existing person with its normalized form.
func (s *TreeService) UpdatePerson(p entities.Person) bool {
	return s.mutate("update_person", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.UpdatePerson(p, s.now())
		return next, change, []events.DomainEvent{events.NewPersonUpdated(p.ID, s.now())}
	})
}

// RemovePerson deletes a person and strips it from every parent list.
func (s *TreeService) RemovePerson(id string) bool {
	return s.mutate("remove_person", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.RemovePerson(id)
		return next, change, []events.DomainEvent{events.NewPersonRemoved(id, s.now())}
	})
}

// LinkParentChild records parentID as a parent of childID. It returns false
// when the child is missing, already linked, or already has two parents.
func (s *TreeService) LinkParentChild(parentID, childID string) bool {
	return s.mutate("link_parent_child", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.LinkParentChild(parentID, childID)
		return next, change, []events.DomainEvent{events.NewRelationshipLinked(events.RelationParentChild, parentID, childID, s.now())}
	})
}

// UnlinkParentChild removes parentID from childID's parents.
func (s *TreeService) UnlinkParentChild(parentID, childID string) bool {
	return s.mutate("unlink_parent_child", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.UnlinkParentChild(parentID, childID)
		return next, change, []events.DomainEvent{events.NewRelationshipUnlinked(events.RelationParentChild, parentID, childID, s.now())}
	})
}

// LinkSpouses links two existing persons as spouses on both sides.
func (s *TreeService) LinkSpouses(aID, bID string) bool {
	return s.mutate("link_spouses", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.LinkSpouses(aID, bID)
		return next, change, []events.DomainEvent{events.NewRelationshipLinked(events.RelationSpouse, aID, bID, s.now())}
	})
}

// UnlinkSpouses removes the spouse link on both sides.
func (s *TreeService) UnlinkSpouses(aID, bID string) bool {
	return s.mutate("unlink_spouses", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.UnlinkSpouses(aID, bID)
		return next, change, []events.DomainEvent{events.NewRelationshipUnlinked(events.RelationSpouse, aID, bID, s.now())}
	})
}

// EditRelations rewires the first recorded parent and the first spouse of a
// person to parentID and spouseID. Empty values remove the link. Other
// parents and spouses are left alone.
func (s *TreeService) EditRelations(personID, parentID, spouseID string) bool {
	return s.mutate("edit_relations", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		p, ok := st.Person(personID)
		if !ok {
			return st, aggregates.ChangeNone, nil
		}
		now := s.now()
		next, change := st, aggregates.ChangeNone
		var evs []events.DomainEvent
		var c aggregates.Change

		oldParent := firstOf(p.ParentIDs)
		if oldParent != parentID {
			if oldParent != "" {
				if next, c = next.UnlinkParentChild(oldParent, personID); c != aggregates.ChangeNone {
					evs = append(evs, events.NewRelationshipUnlinked(events.RelationParentChild, oldParent, personID, now))
				}
				change |= c
			}
			if parentID != "" {
				if next, c = next.LinkParentChild(parentID, personID); c != aggregates.ChangeNone {
					evs = append(evs, events.NewRelationshipLinked(events.RelationParentChild, parentID, personID, now))
				}
				change |= c
			}
		}

		oldSpouse := firstOf(p.SpouseIDs)
		if oldSpouse != spouseID {
			if oldSpouse != "" {
				if next, c = next.UnlinkSpouses(oldSpouse, personID); c != aggregates.ChangeNone {
					evs = append(evs, events.NewRelationshipUnlinked(events.RelationSpouse, oldSpouse, personID, now))
				}
				change |= c
			}
			if spouseID != "" && spouseID != personID {
				if next, c = next.LinkSpouses(spouseID, personID); c != aggregates.ChangeNone {
					evs = append(evs, events.NewRelationshipLinked(events.RelationSpouse, spouseID, personID, now))
				}
				change |= c
			}
		}
		return next, change, evs
	})
}

// SetRootID selects the displayed root; "" clears it. The id is not checked.
func (s *TreeService) SetRootID(id string) bool {
	return s.mutate("set_root", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.SetRootID(id)
		return next, change, []events.DomainEvent{events.NewRootChanged(id, s.now())}
	})
}

// SetNodePosition stores a node's canvas position.
func (s *TreeService) SetNodePosition(id string, x, y float64) bool {
	return s.mutate("set_position", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.SetNodePosition(id, valueobjects.Position{X: x, Y: y})
		return next, change, []events.DomainEvent{events.NewNodeMoved(id, x, y, s.now())}
	})
}

// SetNodeOffset stores a drag-preview offset. It is never saved.
func (s *TreeService) SetNodeOffset(id string, offset float64) bool {
	return s.mutate("set_offset", func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.SetNodeOffset(id, offset)
		return next, change, nil
	})
}

// ReplaceAll installs a decoded snapshot, normalizing every person.
func (s *TreeService) ReplaceAll(raw aggregates.RawSnapshot) bool {
	return s.replace("replace", raw)
}

// ImportSnapshot replaces the tree with a JSON snapshot and saves it. A
// document that does not parse or lacks a persons array changes nothing.
func (s *TreeService) ImportSnapshot(data []byte) bool {
	raw, ok := aggregates.DecodeSnapshot(data)
	if !ok {
		s.logger.Warn("Ignoring malformed snapshot import", zap.Int("bytes", len(data)))
		s.recordMutation("import", false)
		return false
	}
	return s.replace("import", raw)
}

func (s *TreeService) replace(source string, raw aggregates.RawSnapshot) bool {
	return s.mutate(source, func(st aggregates.TreeState) (aggregates.TreeState, aggregates.Change, []events.DomainEvent) {
		next, change := st.ReplaceAll(raw.Persons, raw.Positions, s.now())
		return next, change, []events.DomainEvent{events.NewTreeReplaced(source, next.Len(), len(raw.Positions), s.now())}
	})
}

// ExportSnapshot renders persons and positions as indented JSON.
func (s *TreeService) ExportSnapshot() ([]byte, error) {
	data, err := aggregates.EncodeSnapshot(s.State().Snapshot())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "export snapshot")
	}
	return data, nil
}

// State returns the current immutable state.
func (s *TreeService) State() aggregates.TreeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Person returns a person by id.
func (s *TreeService) Person(id string) (entities.Person, bool) {
	return s.State().Person(id)
}

// Persons returns every person in insertion order.
func (s *TreeService) Persons() []entities.Person {
	return s.State().Persons()
}

// ChildrenOf lists a person's children by display name.
func (s *TreeService) ChildrenOf(parentID string) []entities.Person {
	return s.selectors.ChildrenOf(s.State().PersonsByID(), parentID)
}

// ParentsOf lists a person's parents in stored order.
func (s *TreeService) ParentsOf(childID string) []entities.Person {
	return s.selectors.ParentsOf(s.State().PersonsByID(), childID)
}

// SiblingsOf lists everyone sharing a parent with the person.
func (s *TreeService) SiblingsOf(personID string) []entities.Person {
	return s.selectors.SiblingsOf(s.State().PersonsByID(), personID)
}

// RootCandidates lists persons without parents.
func (s *TreeService) RootCandidates() []entities.Person {
	return s.selectors.RootCandidates(s.State().PersonsByID())
}

// SearchPersons filters by name and orders newest first.
func (s *TreeService) SearchPersons(query string) []entities.Person {
	return s.selectors.FilterAndSortForSelector(s.State().Persons(), query)
}

// SuggestPosition returns where a new node would be placed, fanned out among
// the placed children of parentID when given.
func (s *TreeService) SuggestPosition(parentID string) valueobjects.Position {
	st := s.State()
	return s.placement.SiblingAwarePosition(st.Positions(), st.PersonsByID(), parentID)
}

// Edges lists the relations between existing persons.
func (s *TreeService) Edges() []aggregates.Edge {
	return s.State().Edges()
}

// Stats summarizes the tree.
func (s *TreeService) Stats() aggregates.Stats {
	return s.State().Stats()
}

func (s *TreeService) publish(evs ...events.DomainEvent) {
	if s.publisher == nil || len(evs) == 0 {
		return
	}
	if err := s.publisher.PublishBatch(context.Background(), evs); err != nil {
		s.logger.Warn("Failed to publish tree events", zap.Int("count", len(evs)), zap.Error(err))
	}
}

func (s *TreeService) recordMutation(op string, changed bool) {
	if s.metrics != nil {
		s.metrics.RecordMutation(op, changed)
	}
}

func (s *TreeService) observeSize(st aggregates.TreeState) {
	if s.metrics != nil {
		stats := st.Stats()
		s.metrics.SetTreeSize(stats.Persons, stats.Positioned)
	}
}

func firstOf(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
