package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackcore/pkg/domain"
)

func newTestMap(t *testing.T, opts ...Option) (*Map, *[]domain.CollectionEvent) {
	t.Helper()
	reg := domain.NewRegistry()
	reg.RegisterGeneric("box", "item")
	m := New(reg, opts...)
	var events []domain.CollectionEvent
	m.AddListener(func(ev domain.CollectionEvent) { events = append(events, ev) })
	return m, &events
}

func TestLoadResolvesForwardReferencesWithinBatch(t *testing.T) {
	m, events := newTestMap(t)
	records := []domain.Record{
		{Category: "item", ID: 1, Fields: map[string]any{"name": "bolt"}, Refs: map[string][]domain.Ref{"box": {{Category: "box", ID: 7}}}},
		{Category: "box", ID: 7, Fields: map[string]any{"label": "A"}},
	}
	pairs, err := m.Load(records)
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	item := pairs[0].Object.(*domain.GenericObject)
	box := pairs[1].Object
	assert.Equal(t, []domain.Object{box}, item.Links("box"))
	assert.Equal(t, domain.StateSynced, item.Tracking().State())
	assert.Equal(t, 2, m.Len())

	require.Len(t, *events, 1)
	assert.Equal(t, domain.ActionAdd, (*events)[0].Action)
	assert.Len(t, (*events)[0].Objects, 2)
}

func TestLoadReusesExistingObjects(t *testing.T) {
	m, events := newTestMap(t)
	first, err := m.Load([]domain.Record{{Category: "box", ID: 1, Fields: map[string]any{"label": "A"}}})
	require.NoError(t, err)

	second, err := m.Load([]domain.Record{
		{Category: "box", ID: 1, Fields: map[string]any{"label": "B"}},
		{Category: "box", ID: 2},
	})
	require.NoError(t, err)
	assert.Same(t, first[0].Object, second[0].Object)
	label, _ := second[0].Object.(*domain.GenericObject).Field("label")
	assert.Equal(t, "B", label)

	require.Len(t, *events, 2)
	assert.Equal(t, []domain.Object{second[1].Object}, (*events)[1].Objects, "only newly created objects are reported")
}

func TestLoadUsesLoadOnDemand(t *testing.T) {
	var asked []domain.Ref
	external := domain.NewGenericObject("box")
	external.Tracking().SetID(9)
	m, _ := newTestMap(t, WithLoadOnDemand(func(c domain.Category, id int64) (domain.Object, bool) {
		asked = append(asked, domain.Ref{Category: c, ID: id})
		if id == 9 {
			return external, true
		}
		return nil, false
	}))
	pairs, err := m.Load([]domain.Record{{Category: "item", ID: 1, Refs: map[string][]domain.Ref{"box": {{Category: "box", ID: 9}, {Category: "box", ID: 10}}}}})
	require.NoError(t, err)
	item := pairs[0].Object.(*domain.GenericObject)
	assert.Equal(t, []domain.Object{external}, item.Links("box"))
	assert.Equal(t, []domain.Ref{{Category: "box", ID: 10}}, item.Dangling("box"))
	assert.Len(t, asked, 2)
}

func TestLoadAttachesTracker(t *testing.T) {
	tr := &nopTracker{}
	m, _ := newTestMap(t, WithTracker(tr))
	pairs, err := m.Load([]domain.Record{{Category: "box", ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, domain.Tracker(tr), pairs[0].Object.Tracking().Tracker())
}

func TestLoadUnknownCategory(t *testing.T) {
	m, _ := newTestMap(t)
	_, err := m.Load([]domain.Record{{Category: "ghost", ID: 1}})
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)
}

func TestFailedLoadInsertsNothing(t *testing.T) {
	m, events := newTestMap(t)
	pairs, err := m.Load([]domain.Record{
		{Category: "box", ID: 1},
		{Category: "ghost", ID: 1},
	})
	require.ErrorIs(t, err, domain.ErrUnknownCategory)
	assert.Nil(t, pairs)
	assert.Zero(t, m.Len())
	assert.Empty(t, *events)

	m.registry.Register("mislabelled", func() domain.Object { return domain.NewGenericObject("box") })
	_, err = m.Load([]domain.Record{
		{Category: "box", ID: 2},
		{Category: "mislabelled", ID: 1},
	})
	require.Error(t, err)
	_, ok := m.TryGet("box", 2)
	assert.False(t, ok, "fields failed later in the batch")
	assert.Empty(t, *events)
}

func TestLoadRepeatedRecordInOneBatch(t *testing.T) {
	m, events := newTestMap(t)
	pairs, err := m.Load([]domain.Record{
		{Category: "box", ID: 1, Fields: map[string]any{"label": "A"}},
		{Category: "box", ID: 1, Fields: map[string]any{"label": "B"}},
	})
	require.NoError(t, err)
	assert.Same(t, pairs[0].Object, pairs[1].Object)
	assert.Equal(t, 1, m.Len())
	label, _ := pairs[0].Object.(*domain.GenericObject).Field("label")
	assert.Equal(t, "B", label)
	require.Len(t, *events, 1)
	assert.Len(t, (*events)[0].Objects, 1)
}

func TestDropHonoursPins(t *testing.T) {
	m, events := newTestMap(t)
	pairs, err := m.Load([]domain.Record{{Category: "box", ID: 1}, {Category: "box", ID: 2}})
	require.NoError(t, err)
	pinned, free := pairs[0].Object, pairs[1].Object
	pinned.Tracking().AddHardReference()

	removed := m.Drop([]domain.Object{pinned, free}, false)
	assert.Equal(t, []domain.Object{free}, removed)
	_, ok := m.TryGet("box", 1)
	assert.True(t, ok)
	last := (*events)[len(*events)-1]
	assert.Equal(t, domain.ActionRemove, last.Action)
	assert.Equal(t, []domain.Object{free}, last.Objects)

	removed = m.Drop([]domain.Object{pinned}, true)
	assert.Equal(t, []domain.Object{pinned}, removed)
	assert.Equal(t, 0, m.Len())
}

func TestDropIgnoresImpostors(t *testing.T) {
	m, _ := newTestMap(t)
	_, err := m.Load([]domain.Record{{Category: "box", ID: 1}})
	require.NoError(t, err)
	impostor := domain.NewGenericObject("box")
	impostor.Tracking().SetID(1)
	assert.Empty(t, m.Drop([]domain.Object{impostor}, true))
	assert.Equal(t, 1, m.Len())
}

func TestAddSkipsDuplicatesButReportsAll(t *testing.T) {
	m, events := newTestMap(t)
	a := domain.NewGenericObject("box")
	a.Tracking().SetID(1)
	b := domain.NewGenericObject("box")
	b.Tracking().SetID(1)

	m.Add([]domain.Object{a, b})
	got, ok := m.TryGet("box", 1)
	require.True(t, ok)
	assert.Same(t, a, got)
	require.Len(t, *events, 1)
	assert.Len(t, (*events)[0].Objects, 2)
}

func TestOneEventPerCallAndUnsubscribe(t *testing.T) {
	m, events := newTestMap(t)
	var second int
	remove := m.AddListener(func(domain.CollectionEvent) { second++ })

	m.Add(nil)
	m.Drop(nil, false)
	_, err := m.Load(nil)
	require.NoError(t, err)
	assert.Len(t, *events, 3)
	assert.Equal(t, 3, second)

	remove()
	m.Add(nil)
	assert.Len(t, *events, 4)
	assert.Equal(t, 3, second)
}

func TestObjectsAndCategoriesOrdered(t *testing.T) {
	m, _ := newTestMap(t)
	_, err := m.Load([]domain.Record{{Category: "item", ID: 3}, {Category: "box", ID: 2}, {Category: "box", ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, []domain.Category{"box", "item"}, m.Categories())
	boxes := m.Objects("box")
	require.Len(t, boxes, 2)
	assert.Equal(t, int64(1), boxes[0].Tracking().ID())
	assert.Len(t, m.All(), 3)
}

type nopTracker struct{}

func (*nopTracker) MarkDirty(domain.Object)           {}
func (*nopTracker) MarkRemoved(domain.Object)         {}
func (*nopTracker) CancelPendingChange(domain.Object) {}
