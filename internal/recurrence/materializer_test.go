package recurrence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store that enforces (parent, start) uniqueness.
type memStore struct {
	mu        sync.Mutex
	nextID    uint
	rows      map[uint]map[int64]Instance
	failOn    map[int64]error
	findErr   error
	latestErr map[uint]error
}

func newMemStore() *memStore {
	return &memStore{
		rows:      make(map[uint]map[int64]Instance),
		failOn:    make(map[int64]error),
		latestErr: make(map[uint]error),
	}
}

func (s *memStore) CreateInstance(_ context.Context, inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := inst.Start.UnixNano()
	if err := s.failOn[key]; err != nil {
		return err
	}
	if s.rows[inst.ParentID] == nil {
		s.rows[inst.ParentID] = make(map[int64]Instance)
	}
	if _, ok := s.rows[inst.ParentID][key]; ok {
		return ErrDuplicateInstance
	}
	s.nextID++
	inst.ID = s.nextID
	s.rows[inst.ParentID][key] = *inst
	return nil
}

func (s *memStore) FindInstances(_ context.Context, templateID uint, from, to time.Time) ([]Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []Instance
	for _, inst := range s.rows[templateID] {
		if !inst.Start.Before(from) && inst.Start.Before(to) {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *memStore) DeleteInstances(_ context.Context, templateID uint, from time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, inst := range s.rows[templateID] {
		if !inst.Start.Before(from) {
			delete(s.rows[templateID], key)
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpdateInstances(_ context.Context, templateID uint, from time.Time, d Display) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, inst := range s.rows[templateID] {
		if !inst.Start.Before(from) {
			inst.Display = d
			s.rows[templateID][key] = inst
			n++
		}
	}
	return n, nil
}

func (s *memStore) LatestInstanceStart(_ context.Context, templateID uint) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.latestErr[templateID]; err != nil {
		return nil, err
	}
	var latest *time.Time
	for _, inst := range s.rows[templateID] {
		if latest == nil || inst.Start.After(*latest) {
			start := inst.Start
			latest = &start
		}
	}
	return latest, nil
}

func (s *memStore) all(templateID uint) []Instance {
	out, _ := s.FindInstances(context.Background(), templateID, time.Time{}, date(9999, 1, 1))
	return out
}

func weeklyTemplate(id uint, days []int, start time.Time) Template {
	return Template{
		ID:      id,
		Rule:    Rule{Pattern: PatternWeekly, Days: days, Start: start, Duration: 90 * time.Minute},
		Display: Display{GroupID: 7, Title: "Choir practice", EventType: "rehearsal", Location: "Hall B"},
	}
}

func TestMaterializer_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewMaterializer(store, NewGenerator(DefaultOptions), FixedClock(date(2024, 1, 1)), nil)

	tmpl := weeklyTemplate(1, []int{1, 3, 5}, time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC))

	first, err := m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 1, 15))
	require.NoError(t, err)
	assert.Len(t, first.Created, 6)
	assert.Zero(t, first.Skipped)

	second, err := m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 1, 22))
	require.NoError(t, err)
	assert.Len(t, second.Created, 3)
	assert.Equal(t, 6, second.Skipped)

	assert.Len(t, store.all(1), 9)
}

func TestMaterializer_CopiesDisplayAndDuration(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewMaterializer(store, NewGenerator(DefaultOptions), nil, nil)

	tmpl := weeklyTemplate(1, []int{2}, time.Date(2024, 1, 2, 19, 0, 0, 0, time.UTC))
	_, err := m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)

	insts := store.all(1)
	require.Len(t, insts, 5)
	for _, inst := range insts {
		assert.Equal(t, uint(1), inst.ParentID)
		assert.Equal(t, tmpl.Display, inst.Display)
		require.NotNil(t, inst.End)
		assert.Equal(t, 90*time.Minute, inst.End.Sub(inst.Start))
	}
}

func TestMaterializer_NoEndTime(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewMaterializer(store, NewGenerator(DefaultOptions), nil, nil)

	tmpl := weeklyTemplate(1, []int{1}, date(2024, 1, 1))
	tmpl.Rule.Duration = 0
	res, err := m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 1, 8))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Nil(t, res.Created[0].End)
}

func TestMaterializer_PartialFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewMaterializer(store, NewGenerator(DefaultOptions), nil, nil)

	tmpl := weeklyTemplate(1, []int{1}, date(2024, 1, 1))
	broken := date(2024, 1, 15)
	store.failOn[broken.UnixNano()] = errors.New("connection reset")

	res, err := m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)
	assert.Len(t, res.Created, 4)
	assert.Equal(t, 1, res.Failed)

	// A later call fills the gap and nothing else.
	delete(store.failOn, broken.UnixNano())
	res, err = m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.True(t, res.Created[0].Start.Equal(broken))
	assert.Equal(t, 4, res.Skipped)
}

func TestMaterializer_LookupFailureFallsBackOnUniqueness(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewMaterializer(store, NewGenerator(DefaultOptions), nil, nil)

	tmpl := weeklyTemplate(1, []int{1}, date(2024, 1, 1))
	_, err := m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 1, 15))
	require.NoError(t, err)

	store.findErr = errors.New("timeout")
	res, err := m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 1, 22))
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Failed)
}

func TestMaterializer_ConcurrentWindowsNeverDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewMaterializer(store, NewGenerator(DefaultOptions), nil, nil)
	tmpl := weeklyTemplate(1, []int{0, 3}, date(2024, 1, 1))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 3, 1))
		}()
	}
	wg.Wait()

	dates, err := NewGenerator(DefaultOptions).Generate(tmpl.Rule, date(2024, 1, 1), date(2024, 3, 1))
	require.NoError(t, err)
	assert.Len(t, store.all(1), len(dates))
}

func TestMaterializer_MaterializeDefault(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewMaterializer(store, NewGenerator(DefaultOptions), nil, nil)

	tmpl := weeklyTemplate(1, []int{1}, date(2024, 1, 1))
	res, err := m.MaterializeDefault(ctx, tmpl)
	require.NoError(t, err)

	// Mondays from Jan 1 up to, not including, Apr 1.
	assert.Len(t, res.Created, 13)
	for _, inst := range res.Created {
		assert.True(t, inst.Start.Before(date(2024, 4, 1)))
	}
}

func TestMaterializer_TopUp(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := date(2024, 3, 1)
	m := NewMaterializer(store, NewGenerator(DefaultOptions), FixedClock(now), nil)

	// Far enough ahead: left alone.
	stocked := weeklyTemplate(1, []int{5}, date(2024, 1, 1))
	_, err := m.MaterializeWindow(ctx, stocked, now, now.AddDate(0, 2, 0))
	require.NoError(t, err)
	before := len(store.all(1))

	// No instances at all: topped up.
	empty := weeklyTemplate(2, []int{1}, date(2024, 1, 1))

	// Store failure: reported, does not block the others.
	broken := weeklyTemplate(3, []int{2}, date(2024, 1, 1))
	store.latestErr[3] = errors.New("boom")

	// Running low: topped up.
	low := weeklyTemplate(4, []int{4}, date(2024, 1, 1))
	_, err = m.MaterializeWindow(ctx, low, date(2024, 2, 1), now.AddDate(0, 0, 7))
	require.NoError(t, err)

	report := m.TopUp(ctx, []Template{stocked, empty, broken, low})
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, 2, report.ToppedUp)
	assert.Equal(t, []uint{3}, report.Failed)
	assert.Equal(t, []uint{2, 4}, report.Refreshed)

	assert.Len(t, store.all(1), before)

	mondays := store.all(2)
	assert.Len(t, mondays, 4) // Mar 4, 11, 18, 25
	for _, inst := range mondays {
		assert.False(t, inst.Start.Before(now))
		assert.True(t, inst.Start.Before(now.Add(DefaultOptions.PreviewWindow)))
	}

	// Thursdays Feb 1..Mar 7 existed; the window adds Mar 14, 21, 28.
	assert.Equal(t, 4+3, report.Created)
}

func TestMaterializer_Regenerate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := date(2024, 2, 1)
	m := NewMaterializer(store, NewGenerator(DefaultOptions), FixedClock(now), nil)

	tmpl := weeklyTemplate(1, []int{1}, date(2024, 1, 1))
	_, err := m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 3, 1))
	require.NoError(t, err)

	tmpl.Rule.Days = []int{3}
	res, err := m.Regenerate(ctx, tmpl)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Created)

	for _, inst := range store.all(1) {
		if inst.Start.Before(now) {
			assert.Equal(t, time.Monday, inst.Start.Weekday(), "past instance %s was touched", inst.Start)
			continue
		}
		assert.Equal(t, time.Wednesday, inst.Start.Weekday(), "future instance %s kept old rule", inst.Start)
		assert.True(t, inst.Start.Before(date(2024, 5, 1)))
	}
	// Mondays Jan 1, 8, 15, 22, 29 remain.
	assert.Len(t, store.all(1), 5+len(res.Created))
}

func TestMaterializer_RegenerateHonoursEndDate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewMaterializer(store, NewGenerator(DefaultOptions), FixedClock(date(2024, 1, 1)), nil)

	tmpl := weeklyTemplate(1, []int{1}, date(2024, 1, 1))
	tmpl.Rule.End = ptr(date(2024, 1, 20))
	res, err := m.Regenerate(ctx, tmpl)
	require.NoError(t, err)
	assert.Len(t, res.Created, 3)
}

func TestMaterializer_RegenerateRejectsMalformedRule(t *testing.T) {
	store := newMemStore()
	m := NewMaterializer(store, NewGenerator(DefaultOptions), nil, nil)

	tmpl := weeklyTemplate(1, nil, date(2024, 1, 1))
	_, err := m.Regenerate(context.Background(), tmpl)
	assert.True(t, IsValidation(err))
}

func TestMaterializer_PropagateDisplay(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := date(2024, 1, 20)
	m := NewMaterializer(store, NewGenerator(DefaultOptions), FixedClock(now), nil)

	tmpl := weeklyTemplate(1, []int{1}, date(2024, 1, 1))
	_, err := m.MaterializeWindow(ctx, tmpl, date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)

	renamed := tmpl.Display
	renamed.Title = "Choir practice (new hall)"
	renamed.Location = "Hall C"
	n, err := m.PropagateDisplay(ctx, 1, renamed)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, inst := range store.all(1) {
		if inst.Start.Before(now) {
			assert.Equal(t, "Choir practice", inst.Display.Title)
		} else {
			assert.Equal(t, "Hall C", inst.Display.Location)
		}
	}
}

func TestMaterializer_Preview(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := date(2024, 1, 1)
	m := NewMaterializer(store, NewGenerator(DefaultOptions), FixedClock(now), nil)

	tmpl := weeklyTemplate(1, []int{1}, now)
	_, err := m.MaterializeWindow(ctx, tmpl, now, date(2024, 1, 10))
	require.NoError(t, err)

	from, to := m.PreviewRange(tmpl.Rule)
	existing, err := store.FindInstances(ctx, 1, from, to)
	require.NoError(t, err)

	previews, err := m.Preview(tmpl, existing)
	require.NoError(t, err)
	require.Len(t, previews, 5) // Jan 1, 8, 15, 22, 29

	assert.NotZero(t, previews[0].ID)
	assert.NotZero(t, previews[1].ID)
	for _, p := range previews[2:] {
		assert.Zero(t, p.ID)
	}
	for _, p := range previews {
		assert.Equal(t, uint(1), p.ParentEventID)
		assert.Equal(t, "Choir practice", p.Title)
		require.NotNil(t, p.EndTime)
	}

	// Nothing was persisted by previewing.
	assert.Len(t, store.all(1), 2)
}
