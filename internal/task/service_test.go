package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motido/internal/graph"
	"motido/internal/model"
	"motido/internal/telemetry"
	"motido/internal/view"
)

var testNow = time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *telemetry.MemoryRepository) {
	t.Helper()
	events := telemetry.NewMemoryRepository()
	svc := NewService(NewMemoryRepo(), nil, nil, events)
	svc.now = func() time.Time { return testNow }
	return svc, events
}

func eventTypes(t *testing.T, events *telemetry.MemoryRepository) map[telemetry.EventType]int {
	t.Helper()
	got, err := events.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	out := map[telemetry.EventType]int{}
	for _, e := range got {
		out[e.Type]++
	}
	return out
}

func dailyHabit(title string, due time.Time) model.Task {
	t := newTask(title)
	t.Habit = true
	t.DueDate = &due
	t.Recurrence = &model.Recurrence{
		Rule:        model.Rule{Freq: model.Daily, Interval: 1},
		Anchor:      model.FromDueDate,
		SubtaskMode: model.SubtaskDefault,
	}
	return t
}

func TestServiceCreateScoresTask(t *testing.T) {
	svc, events := newTestService(t)

	require.NoError(t, svc.SetTag(model.TagDef{Name: "work", Multiplier: 2.0}))

	in := newTask("scored")
	in.Tags = []string{"work"}
	created, err := svc.CreateTask(in)
	require.NoError(t, err)
	assert.Equal(t, 18.0, created.Score) // three medium weights times the tag multiplier

	types := eventTypes(t, events)
	assert.Equal(t, 1, types[telemetry.EventTaskCreated])
	assert.Equal(t, 1, types[telemetry.EventRegistryUpdated])
}

func TestServiceUpdateRescores(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateTask(newTask("rescore"))
	require.NoError(t, err)
	assert.Equal(t, 9.0, created.Score)

	highest := model.PriorityHighest
	updated, err := svc.UpdateTask(created.ID, Patch{Priority: &highest})
	require.NoError(t, err)
	assert.Equal(t, 14.0, updated.Score)
	assert.Equal(t, model.PriorityHighest, updated.Priority)
}

func TestServiceCompleteOneOff(t *testing.T) {
	svc, events := newTestService(t)

	created, err := svc.CreateTask(newTask("one-off"))
	require.NoError(t, err)

	res, err := svc.Complete(created.ID)
	require.NoError(t, err)
	assert.True(t, res.Closed.Complete)
	assert.Nil(t, res.Next)
	assert.Equal(t, 9.0, res.XP)
	assert.Empty(t, res.NextErr)

	stored, err := svc.GetTask(created.ID)
	require.NoError(t, err)
	assert.True(t, stored.Complete)
	require.NotNil(t, stored.CompletionDate)
	assert.True(t, stored.CompletionDate.Equal(testNow))

	_, err = svc.Complete(created.ID)
	assert.ErrorIs(t, err, ErrAlreadyComplete)

	types := eventTypes(t, events)
	assert.Equal(t, 1, types[telemetry.EventTaskCompleted])
	assert.Zero(t, types[telemetry.EventNextInstance])
}

func TestServiceCompleteHabitGeneratesNext(t *testing.T) {
	svc, events := newTestService(t)

	created, err := svc.CreateTask(dailyHabit("morning run", time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	res, err := svc.Complete(created.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Next)
	assert.NotEqual(t, created.ID, res.Next.ID)
	require.NotNil(t, res.Next.DueDate)
	assert.True(t, res.Next.DueDate.Equal(time.Date(2024, time.January, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, res.Closed.StreakCurrent)
	assert.Equal(t, 1, res.Next.StreakCurrent)
	assert.Equal(t, 9.0, res.Next.Score)

	// Both records landed in the store.
	snap, err := svc.store.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap, 2)

	types := eventTypes(t, events)
	assert.Equal(t, 1, types[telemetry.EventTaskCompleted])
	assert.Equal(t, 1, types[telemetry.EventStreakAdvanced])
	assert.Equal(t, 1, types[telemetry.EventNextInstance])
}

func TestServiceCompleteReportsRecurrenceFailure(t *testing.T) {
	svc, events := newTestService(t)

	// Plant a broken rule directly in the store; create/update would reject it.
	broken := newTask("broken schedule")
	broken.ID = "broken-1"
	broken.Recurrence = &model.Recurrence{
		Rule:        model.Rule{Freq: model.Weekly, Interval: 1},
		Anchor:      model.FromDueDate,
		SubtaskMode: model.SubtaskDefault,
	}
	mem := svc.store.(*MemoryRepo)
	mem.tasks[broken.ID] = broken

	res, err := svc.Complete(broken.ID)
	require.NoError(t, err)
	assert.True(t, res.Closed.Complete)
	assert.Nil(t, res.Next)
	assert.NotEmpty(t, res.NextErr)

	stored, err := svc.GetTask(broken.ID)
	require.NoError(t, err)
	assert.True(t, stored.Complete, "closure must persist even when the next instance fails")

	types := eventTypes(t, events)
	assert.Equal(t, 1, types[telemetry.EventRecurrenceFailed])
}

func TestServiceUncomplete(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateTask(newTask("flip"))
	require.NoError(t, err)

	_, err = svc.Uncomplete(created.ID)
	assert.ErrorIs(t, err, ErrNotComplete)

	_, err = svc.Complete(created.ID)
	require.NoError(t, err)

	undone, err := svc.Uncomplete(created.ID)
	require.NoError(t, err)
	assert.False(t, undone.Complete)
	assert.Nil(t, undone.CompletionDate)
}

func TestServiceUndoAfterUncompleteRestoresCompletionDate(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateTask(newTask("flip back"))
	require.NoError(t, err)

	res, err := svc.Complete(created.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Closed.CompletionDate)

	_, err = svc.Uncomplete(created.ID)
	require.NoError(t, err)

	reverted, err := svc.Undo(created.ID)
	require.NoError(t, err)
	assert.True(t, reverted.Complete)
	require.NotNil(t, reverted.CompletionDate, "complete task must carry its completion date")
	assert.True(t, reverted.CompletionDate.Equal(testNow))
}

func TestServiceListView(t *testing.T) {
	svc, _ := newTestService(t)

	done := newTask("done")
	done.Complete = true
	created, err := svc.CreateTask(done)
	require.NoError(t, err)

	gated := newTask("gated")
	gated.Dependencies = []model.TaskID{created.ID}
	_, err = svc.CreateTask(gated)
	require.NoError(t, err)

	open := newTask("open")
	_, err = svc.CreateTask(open)
	require.NoError(t, err)

	blocker, err := svc.CreateTask(newTask("blocker"))
	require.NoError(t, err)
	waiting := newTask("waiting")
	waiting.Dependencies = []model.TaskID{blocker.ID}
	_, err = svc.CreateTask(waiting)
	require.NoError(t, err)

	res, err := svc.ListView(view.FilterSpec{Status: view.StatusActive}, view.SortSpec{Field: view.SortByTitle})
	require.NoError(t, err)
	require.Len(t, res.Tasks, 3)
	assert.Equal(t, "blocker", res.Tasks[0].Title)
	assert.Equal(t, "gated", res.Tasks[1].Title) // its only dependency is complete
	assert.Equal(t, "open", res.Tasks[2].Title)

	res, err = svc.ListView(view.FilterSpec{Status: view.StatusBlocked}, view.SortSpec{})
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "waiting", res.Tasks[0].Title)
}

func TestServiceListViewReportsCycles(t *testing.T) {
	svc, events := newTestService(t)

	a, err := svc.CreateTask(newTask("a"))
	require.NoError(t, err)
	b := newTask("b")
	b.Dependencies = []model.TaskID{a.ID}
	createdB, err := svc.CreateTask(b)
	require.NoError(t, err)

	// Close the loop: a -> b -> a. Write-time checks only see existence,
	// cycle detection happens at read time over the full snapshot.
	deps := []model.TaskID{createdB.ID}
	_, err = svc.UpdateTask(a.ID, Patch{Dependencies: &deps})
	require.NoError(t, err)

	res, err := svc.ListView(view.FilterSpec{}, view.SortSpec{})
	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Problems, a.ID)
	assert.Contains(t, res.Problems, createdB.ID)
	assert.NotContains(t, res.Statuses, a.ID)

	types := eventTypes(t, events)
	assert.Equal(t, 1, types[telemetry.EventIntegrityReported])
}

func TestServiceProcessingDate(t *testing.T) {
	svc, _ := newTestService(t)

	// Unset: start of the current day.
	assert.True(t, svc.ProcessingDate().Equal(time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)))

	svc.SetLastProcessed(time.Date(2024, time.January, 20, 17, 30, 0, 0, time.UTC))
	assert.True(t, svc.ProcessingDate().Equal(time.Date(2024, time.January, 21, 0, 0, 0, 0, time.UTC)))
}

func TestServiceProcessingDateDrivesFutureStatus(t *testing.T) {
	svc, _ := newTestService(t)

	later := newTask("later")
	later.StartDate = dayPtrUTC(2024, time.January, 20)
	created, err := svc.CreateTask(later)
	require.NoError(t, err)

	res, err := svc.ListView(view.FilterSpec{}, view.SortSpec{})
	require.NoError(t, err)
	assert.Equal(t, view.StatusFuture, res.Statuses[created.ID])

	// Once processing catches up past the start date the task activates.
	svc.SetLastProcessed(time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC))
	res, err = svc.ListView(view.FilterSpec{}, view.SortSpec{})
	require.NoError(t, err)
	assert.Equal(t, view.StatusActive, res.Statuses[created.ID])
}

func TestServiceSubgraphView(t *testing.T) {
	svc, _ := newTestService(t)

	base, err := svc.CreateTask(newTask("base"))
	require.NoError(t, err)
	mid := newTask("mid")
	mid.Dependencies = []model.TaskID{base.ID}
	createdMid, err := svc.CreateTask(mid)
	require.NoError(t, err)
	top := newTask("top")
	top.Dependencies = []model.TaskID{createdMid.ID}
	_, err = svc.CreateTask(top)
	require.NoError(t, err)

	tasks, err := svc.SubgraphView(createdMid.ID, graph.ModeUpstream)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	tasks, err = svc.SubgraphView(createdMid.ID, graph.ModeIsolated)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	_, err = svc.SubgraphView("missing", graph.ModeUpstream)
	assert.ErrorIs(t, err, graph.ErrUnknownTask)
}

func TestServiceUndo(t *testing.T) {
	svc, events := newTestService(t)

	created, err := svc.CreateTask(newTask("original"))
	require.NoError(t, err)
	_, err = svc.UpdateTask(created.ID, Patch{Title: strPtr("renamed")})
	require.NoError(t, err)

	reverted, err := svc.Undo(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", reverted.Title)

	_, err = svc.Undo(created.ID)
	assert.ErrorIs(t, err, ErrNoHistory)

	types := eventTypes(t, events)
	assert.Equal(t, 1, types[telemetry.EventUndoApplied])
}

func dayPtrUTC(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
