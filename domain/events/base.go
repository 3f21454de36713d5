package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

const (
	TypePersonAdded         = "person.added"
	TypePersonUpdated       = "person.updated"
	TypePersonRemoved       = "person.removed"
	TypeRelationshipLinked  = "relationship.linked"
	TypeRelationshipRemoved = "relationship.unlinked"
	TypeNodeMoved           = "node.moved"
	TypeRootChanged         = "tree.root_changed"
	TypeTreeReplaced        = "tree.replaced"
)

// Relationship kinds carried by relationship events.
const (
	RelationParentChild = "parent_child"
	RelationSpouse      = "spouse"
)

// Person Events

// PersonAdded is raised when a person is created
type PersonAdded struct {
	BaseEvent
	PersonID  string `json:"person_id"`
	FirstName string `json:"first_name"`
}

// NewPersonAdded creates a PersonAdded event
func NewPersonAdded(personID, firstName string, timestamp time.Time) PersonAdded {
	return PersonAdded{
		BaseEvent: BaseEvent{AggregateID: personID, EventType: TypePersonAdded, Timestamp: timestamp},
		PersonID:  personID,
		FirstName: firstName,
	}
}

// PersonUpdated is raised when a person record is replaced
type PersonUpdated struct {
	BaseEvent
	PersonID string `json:"person_id"`
}

// NewPersonUpdated creates a PersonUpdated event
func NewPersonUpdated(personID string, timestamp time.Time) PersonUpdated {
	return PersonUpdated{
		BaseEvent: BaseEvent{AggregateID: personID, EventType: TypePersonUpdated, Timestamp: timestamp},
		PersonID:  personID,
	}
}

// PersonRemoved is raised when a person and its links are deleted
type PersonRemoved struct {
	BaseEvent
	PersonID string `json:"person_id"`
}

// NewPersonRemoved creates a PersonRemoved event
func NewPersonRemoved(personID string, timestamp time.Time) PersonRemoved {
	return PersonRemoved{
		BaseEvent: BaseEvent{AggregateID: personID, EventType: TypePersonRemoved, Timestamp: timestamp},
		PersonID:  personID,
	}
}

// Relationship Events

// RelationshipChanged is raised when a parent-child or spouse link is added
// or removed. For parent-child links From is the parent.
type RelationshipChanged struct {
	BaseEvent
	Kind string `json:"kind"`
	From string `json:"from"`
	To   string `json:"to"`
}

// NewRelationshipLinked creates a RelationshipChanged event for a new link
func NewRelationshipLinked(kind, from, to string, timestamp time.Time) RelationshipChanged {
	return RelationshipChanged{
		BaseEvent: BaseEvent{AggregateID: to, EventType: TypeRelationshipLinked, Timestamp: timestamp},
		Kind:      kind,
		From:      from,
		To:        to,
	}
}

// NewRelationshipUnlinked creates a RelationshipChanged event for a removed link
func NewRelationshipUnlinked(kind, from, to string, timestamp time.Time) RelationshipChanged {
	return RelationshipChanged{
		BaseEvent: BaseEvent{AggregateID: to, EventType: TypeRelationshipRemoved, Timestamp: timestamp},
		Kind:      kind,
		From:      from,
		To:        to,
	}
}

// Layout Events

// NodeMoved is raised when a node gets a new canvas position
type NodeMoved struct {
	BaseEvent
	PersonID string  `json:"person_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(personID string, x, y float64, timestamp time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent: BaseEvent{AggregateID: personID, EventType: TypeNodeMoved, Timestamp: timestamp},
		PersonID:  personID,
		X:         x,
		Y:         y,
	}
}

// Tree Events

// RootChanged is raised when the displayed root changes; RootID is empty when cleared
type RootChanged struct {
	BaseEvent
	RootID string `json:"root_id"`
}

// NewRootChanged creates a RootChanged event
func NewRootChanged(rootID string, timestamp time.Time) RootChanged {
	return RootChanged{
		BaseEvent: BaseEvent{AggregateID: rootID, EventType: TypeRootChanged, Timestamp: timestamp},
		RootID:    rootID,
	}
}

// TreeReplaced is raised after a load or import swapped the whole tree
type TreeReplaced struct {
	BaseEvent
	Source    string `json:"source"` // "load" or "import"
	Persons   int    `json:"persons"`
	Positions int    `json:"positions"`
}

// NewTreeReplaced creates a TreeReplaced event
func NewTreeReplaced(source string, persons, positions int, timestamp time.Time) TreeReplaced {
	return TreeReplaced{
		BaseEvent: BaseEvent{AggregateID: "tree", EventType: TypeTreeReplaced, Timestamp: timestamp},
		Source:    source,
		Persons:   persons,
		Positions: positions,
	}
}
