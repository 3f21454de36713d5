package handlers

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gentree/application/commands"
	"gentree/application/commands/bus"
	"gentree/application/services"
	"gentree/domain/core/valueobjects"
	"gentree/infrastructure/persistence/memory"
	pkgerrors "gentree/pkg/errors"
)

type MockPhotoStore struct {
	mock.Mock
}

func (m *MockPhotoStore) StorePhoto(ctx context.Context, personID, source string) (string, error) {
	args := m.Called(ctx, personID, source)
	return args.String(0), args.Error(1)
}

func (m *MockPhotoStore) StorePhotoData(ctx context.Context, personID, ext string, data io.Reader) (string, error) {
	args := m.Called(ctx, personID, ext, data)
	return args.String(0), args.Error(1)
}

type handlerFixture struct {
	bus    *bus.CommandBus
	tree   *services.TreeService
	views  *services.ViewStateService
	photos *MockPhotoStore
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	saver := services.NewSaveScheduler(store, services.DefaultSaveSchedulerConfig(), logger)
	saver.Start(context.Background())
	t.Cleanup(saver.Stop)

	tree := services.NewTreeService(store, saver, services.TreeServiceConfig{}, logger)
	tree.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tree.WaitReady(ctx))

	views := services.NewViewStateService(store, saver, "", logger)
	photos := new(MockPhotoStore)

	b := bus.NewCommandBus(bus.LoggingMiddleware(logger))
	require.NoError(t, NewTreeCommandHandler(tree, views, photos, logger).Register(b))

	return &handlerFixture{bus: b, tree: tree, views: views, photos: photos}
}

func (f *handlerFixture) create(t *testing.T, id, name string) {
	t.Helper()
	cmd := commands.CreatePersonCommand{PersonID: id, PersonFields: commands.PersonFields{FirstName: name}}
	require.NoError(t, f.bus.Send(context.Background(), cmd))
}

func TestCreatePerson(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.create(t, "mom", "Mom")
	f.create(t, "dad", "Dad")

	cmd := commands.CreatePersonCommand{
		PersonID:     "kid",
		PersonFields: commands.PersonFields{FirstName: "Kid", LastName: "Smith", BirthDateISO: "2001-02-03"},
		ParentID:     "mom",
		SpouseID:     "dad",
		Place:        true,
	}
	require.NoError(t, f.bus.Send(ctx, cmd))

	kid, ok := f.tree.Person("kid")
	require.True(t, ok)
	assert.Equal(t, "Smith", kid.LastName)
	assert.Equal(t, []string{"mom"}, kid.ParentIDs)
	assert.Equal(t, []string{"dad"}, kid.SpouseIDs)
	_, placed := f.tree.State().Position("kid")
	assert.True(t, placed)

	err := f.bus.Send(ctx, cmd)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict))

	err = f.bus.Send(ctx, commands.CreatePersonCommand{PersonID: "x", PersonFields: commands.PersonFields{FirstName: "X"}, ParentID: "ghost"})
	assert.True(t, pkgerrors.IsNotFound(err))
	_, exists := f.tree.Person("x")
	assert.False(t, exists, "nothing created when a reference is missing")

	err = f.bus.Send(ctx, commands.CreatePersonCommand{PersonID: "y", PersonFields: commands.PersonFields{FirstName: "  "}})
	assert.True(t, pkgerrors.IsValidation(err))

	err = f.bus.Send(ctx, commands.CreatePersonCommand{PersonID: "z", PersonFields: commands.PersonFields{FirstName: "Z"}, SpouseID: "z"})
	assert.True(t, pkgerrors.IsValidation(err), "self spouse rejected")
}

func TestUpdatePerson(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.create(t, "a", "Ann")

	comment := "likes tea"
	require.NoError(t, f.bus.Send(ctx, commands.UpdatePersonCommand{PersonID: "a", Comment: &comment}))

	a, _ := f.tree.Person("a")
	assert.Equal(t, "Ann", a.FirstName)
	assert.Equal(t, "likes tea", a.Comment)

	err := f.bus.Send(ctx, commands.UpdatePersonCommand{PersonID: "nobody", Comment: &comment})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDeletePerson(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.create(t, "a", "Ann")

	require.NoError(t, f.bus.Send(ctx, commands.DeletePersonCommand{PersonID: "a"}))
	assert.True(t, pkgerrors.IsNotFound(f.bus.Send(ctx, commands.DeletePersonCommand{PersonID: "a"})))
}

func TestRelationshipCommands(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	for _, id := range []string{"m", "d", "x", "k"} {
		f.create(t, id, id)
	}

	tests := []struct {
		name    string
		cmd     bus.Command
		checkFn func(error) bool
	}{
		{"link mother", commands.LinkParentChildCommand{ParentID: "m", ChildID: "k"}, isNil},
		{"link mother again", commands.LinkParentChildCommand{ParentID: "m", ChildID: "k"}, isNil},
		{"link father", commands.LinkParentChildCommand{ParentID: "d", ChildID: "k"}, isNil},
		{"third parent", commands.LinkParentChildCommand{ParentID: "x", ChildID: "k"}, isConflict},
		{"missing child", commands.LinkParentChildCommand{ParentID: "m", ChildID: "ghost"}, pkgerrors.IsNotFound},
		{"self parent", commands.LinkParentChildCommand{ParentID: "k", ChildID: "k"}, pkgerrors.IsValidation},
		{"unlink father", commands.UnlinkParentChildCommand{ParentID: "d", ChildID: "k"}, isNil},
		{"spouses", commands.LinkSpousesCommand{PersonAID: "m", PersonBID: "d"}, isNil},
		{"missing spouse", commands.LinkSpousesCommand{PersonAID: "m", PersonBID: "ghost"}, pkgerrors.IsNotFound},
		{"unlink spouses", commands.UnlinkSpousesCommand{PersonAID: "m", PersonBID: "d"}, isNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.bus.Send(ctx, tt.cmd)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}

	k, _ := f.tree.Person("k")
	assert.Equal(t, []string{"m"}, k.ParentIDs)
	m, _ := f.tree.Person("m")
	assert.Empty(t, m.SpouseIDs)
}

func TestEditRelations(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "s1", "me"} {
		f.create(t, id, id)
	}
	require.NoError(t, f.bus.Send(ctx, commands.LinkParentChildCommand{ParentID: "p1", ChildID: "me"}))

	require.NoError(t, f.bus.Send(ctx, commands.EditRelationsCommand{PersonID: "me", ParentID: "p2", SpouseID: "s1"}))
	me, _ := f.tree.Person("me")
	assert.Equal(t, []string{"p2"}, me.ParentIDs)
	assert.Equal(t, []string{"s1"}, me.SpouseIDs)

	err := f.bus.Send(ctx, commands.EditRelationsCommand{PersonID: "me", ParentID: "ghost"})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestLayoutCommands(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.create(t, "a", "Ann")

	require.NoError(t, f.bus.Send(ctx, commands.SetPositionCommand{PersonID: "a", X: 5, Y: 6}))
	require.NoError(t, f.bus.Send(ctx, commands.SetOffsetCommand{PersonID: "a", Offset: 2}))
	require.NoError(t, f.bus.Send(ctx, commands.SetRootCommand{PersonID: "a"}))
	assert.Equal(t, "a", f.tree.State().RootID())
	require.NoError(t, f.bus.Send(ctx, commands.SetRootCommand{}))
	assert.Empty(t, f.tree.State().RootID())

	assert.True(t, pkgerrors.IsNotFound(f.bus.Send(ctx, commands.SetPositionCommand{PersonID: "ghost"})))
	assert.True(t, pkgerrors.IsValidation(f.bus.Send(ctx, commands.SetPositionCommand{PersonID: "a", X: math.NaN()})))
	pos, _ := f.tree.State().Position("a")
	assert.Equal(t, valueobjects.Position{X: 5, Y: 6}, pos)
	assert.True(t, pkgerrors.IsNotFound(f.bus.Send(ctx, commands.SetRootCommand{PersonID: "ghost"})))

	require.NoError(t, f.bus.Send(ctx, commands.UpdateViewStateCommand{Scale: 1.25, OffsetX: 3}))
	assert.Equal(t, 1.25, f.views.Current().Scale)
	assert.True(t, pkgerrors.IsValidation(f.bus.Send(ctx, commands.UpdateViewStateCommand{Scale: 0})))
}

func TestImportTree(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.create(t, "keep", "Keep")

	err := f.bus.Send(ctx, commands.ImportTreeCommand{Data: []byte(`{"persons":"not array"}`)})
	assert.True(t, pkgerrors.IsValidation(err))
	_, ok := f.tree.Person("keep")
	assert.True(t, ok)

	require.NoError(t, f.bus.Send(ctx, commands.ImportTreeCommand{Data: []byte(`{"persons":[{"id":"n","name":"New"}]}`)}))
	_, ok = f.tree.Person("keep")
	assert.False(t, ok)
	n, ok := f.tree.Person("n")
	require.True(t, ok)
	assert.Equal(t, "New", n.FirstName)
}

func TestAttachPhoto(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.create(t, "a", "Ann")

	f.photos.On("StorePhoto", mock.Anything, "a", "file:///tmp/pic.png").Return("photos/a.png", nil).Once()
	require.NoError(t, f.bus.Send(ctx, commands.AttachPhotoCommand{PersonID: "a", Source: "file:///tmp/pic.png"}))
	a, _ := f.tree.Person("a")
	assert.Equal(t, "photos/a.png", a.PhotoURI)

	f.photos.On("StorePhoto", mock.Anything, "a", "broken").Return("", errors.New("unreadable")).Once()
	err := f.bus.Send(ctx, commands.AttachPhotoCommand{PersonID: "a", Source: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store photo for a")
	a, _ = f.tree.Person("a")
	assert.Equal(t, "photos/a.png", a.PhotoURI, "failed copy keeps the old photo")

	err = f.bus.Send(ctx, commands.AttachPhotoCommand{PersonID: "ghost", Source: "x"})
	assert.True(t, pkgerrors.IsNotFound(err))

	f.photos.AssertExpectations(t)
}

func isNil(err error) bool { return err == nil }

func isConflict(err error) bool { return pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict) }
