package recurrence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Store is the persistence capability the materializer consumes.
//
// CreateInstance must return ErrDuplicateInstance when an instance with the
// same parent and start time exists; the uniqueness has to be enforced by the
// store itself so that concurrent top-ups cannot both succeed.
type Store interface {
	CreateInstance(ctx context.Context, inst *Instance) error
	FindInstances(ctx context.Context, templateID uint, from, to time.Time) ([]Instance, error)
	DeleteInstances(ctx context.Context, templateID uint, from time.Time) (int64, error)
	UpdateInstances(ctx context.Context, templateID uint, from time.Time, d Display) (int64, error)
	LatestInstanceStart(ctx context.Context, templateID uint) (*time.Time, error)
}

// Result summarizes one materialization call.
type Result struct {
	Created []Instance
	Skipped int // dates that already had an instance
	Failed  int // dates whose creation failed; retried on a later call
}

// TopUpReport summarizes a lazy top-up over several templates.
type TopUpReport struct {
	Checked   int
	ToppedUp  int
	Created   int
	Refreshed []uint // template ids that received new instances
	Failed    []uint // template ids whose top-up failed
}

// Materializer turns generated occurrence dates into persisted instances.
type Materializer struct {
	store Store
	gen   *Generator
	clock Clock
	log   *zap.Logger
}

// NewMaterializer wires a materializer. A nil clock uses the system clock and a
// nil logger discards output.
func NewMaterializer(store Store, gen *Generator, clock Clock, log *zap.Logger) *Materializer {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Materializer{store: store, gen: gen, clock: clock, log: log}
}

// MaterializeWindow creates the missing instances of tmpl in [from, to).
// Calling it again with an overlapping window creates nothing twice. Individual
// persistence failures are logged and counted; only a malformed rule is an error.
func (m *Materializer) MaterializeWindow(ctx context.Context, tmpl Template, from, to time.Time) (Result, error) {
	var res Result

	dates, err := m.gen.Generate(tmpl.Rule, from, to)
	if err != nil {
		return res, err
	}
	if len(dates) == 0 {
		return res, nil
	}

	existing := make(map[int64]struct{})
	found, err := m.store.FindInstances(ctx, tmpl.ID, from, to)
	if err != nil {
		// The uniqueness constraint still protects against duplicates.
		m.log.Warn("existing instance lookup failed, relying on unique constraint",
			zap.Uint("template_id", tmpl.ID), zap.Error(err))
	}
	for _, inst := range found {
		existing[inst.Start.UnixNano()] = struct{}{}
	}

	for _, start := range dates {
		if _, ok := existing[start.UnixNano()]; ok {
			res.Skipped++
			continue
		}

		inst := Instance{
			ParentID: tmpl.ID,
			Start:    start,
			End:      tmpl.Rule.EndAt(start),
			Display:  tmpl.Display,
		}
		if err := m.store.CreateInstance(ctx, &inst); err != nil {
			if errors.Is(err, ErrDuplicateInstance) {
				res.Skipped++
				continue
			}
			res.Failed++
			m.log.Error("failed to materialize instance",
				zap.Uint("template_id", tmpl.ID), zap.Time("start", start), zap.Error(err))
			continue
		}
		res.Created = append(res.Created, inst)
	}

	m.log.Debug("materialized window",
		zap.Uint("template_id", tmpl.ID),
		zap.Time("from", from), zap.Time("to", to),
		zap.Int("created", len(res.Created)), zap.Int("skipped", res.Skipped), zap.Int("failed", res.Failed))
	return res, nil
}

// MaterializeDefault eagerly materializes the template's default window.
func (m *Materializer) MaterializeDefault(ctx context.Context, tmpl Template) (Result, error) {
	from, to := m.gen.opts.DefaultWindow(tmpl.Rule)
	return m.MaterializeWindow(ctx, tmpl, from, to)
}

// TopUp keeps a rolling window of instances ahead of now. Templates whose latest
// instance is further away than the buffer are left alone. A failure for one
// template never stops the others.
func (m *Materializer) TopUp(ctx context.Context, templates []Template) TopUpReport {
	var report TopUpReport
	now := m.clock.Now()

	for _, tmpl := range templates {
		report.Checked++
		created, topped, err := m.topUpOne(ctx, tmpl, now)
		if created > 0 {
			report.Refreshed = append(report.Refreshed, tmpl.ID)
		}
		if err != nil {
			report.Failed = append(report.Failed, tmpl.ID)
			m.log.Error("top-up failed", zap.Uint("template_id", tmpl.ID), zap.Error(err))
			continue
		}
		if topped {
			report.ToppedUp++
			report.Created += created
		}
	}
	return report
}

func (m *Materializer) topUpOne(ctx context.Context, tmpl Template, now time.Time) (int, bool, error) {
	latest, err := m.store.LatestInstanceStart(ctx, tmpl.ID)
	if err != nil {
		return 0, false, err
	}
	if latest != nil && !latest.Before(now.Add(m.gen.opts.TopUpBuffer)) {
		return 0, false, nil
	}

	res, err := m.MaterializeWindow(ctx, tmpl, now, now.Add(m.gen.opts.PreviewWindow))
	if err != nil {
		return 0, false, err
	}
	if res.Failed > 0 {
		return len(res.Created), true, errors.New("some instances could not be created")
	}
	return len(res.Created), true, nil
}

// Regenerate replaces the future instances of tmpl after its rule changed.
// Past instances are kept.
func (m *Materializer) Regenerate(ctx context.Context, tmpl Template) (Result, error) {
	if err := tmpl.Rule.Validate(); err != nil {
		return Result{}, err
	}

	now := m.clock.Now()
	deleted, err := m.store.DeleteInstances(ctx, tmpl.ID, now)
	if err != nil {
		return Result{}, err
	}

	from := now
	if tmpl.Rule.Start.After(from) {
		from = tmpl.Rule.Start
	}
	to := m.gen.opts.horizonFrom(from)
	if tmpl.Rule.End != nil {
		to = *tmpl.Rule.End
	}

	res, err := m.MaterializeWindow(ctx, tmpl, now, to)
	m.log.Info("regenerated future instances",
		zap.Uint("template_id", tmpl.ID), zap.Int64("deleted", deleted), zap.Int("created", len(res.Created)))
	return res, err
}

// PropagateDisplay copies changed display attributes onto future instances
// without touching their start times. Past instances are kept as they were.
func (m *Materializer) PropagateDisplay(ctx context.Context, templateID uint, d Display) (int64, error) {
	return m.store.UpdateInstances(ctx, templateID, m.clock.Now(), d)
}

// Preview lists the next occurrences of tmpl inside the preview window without
// persisting anything. Occurrences that already exist in existing keep their id.
func (m *Materializer) Preview(tmpl Template, existing []Instance) ([]OccurrencePreview, error) {
	from, to := m.gen.opts.PreviewRange(tmpl.Rule, m.clock.Now())
	dates, err := m.gen.Generate(tmpl.Rule, from, to)
	if err != nil {
		return nil, err
	}

	ids := make(map[int64]uint, len(existing))
	for _, inst := range existing {
		ids[inst.Start.UnixNano()] = inst.ID
	}

	out := make([]OccurrencePreview, 0, len(dates))
	for _, start := range dates {
		out = append(out, OccurrencePreview{
			ID:            ids[start.UnixNano()],
			ParentEventID: tmpl.ID,
			Title:         tmpl.Display.Title,
			StartTime:     start,
			EndTime:       tmpl.Rule.EndAt(start),
		})
	}
	return out, nil
}

// PreviewRange returns the window Preview would use right now.
func (m *Materializer) PreviewRange(r Rule) (time.Time, time.Time) {
	return m.gen.opts.PreviewRange(r, m.clock.Now())
}
