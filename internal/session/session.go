package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"demand_forecast/internal/database"
	"demand_forecast/internal/features"
	"demand_forecast/internal/ingest"
	"demand_forecast/internal/metrics"
	"demand_forecast/internal/model"
	"demand_forecast/internal/predictor"
	"demand_forecast/internal/report"
	"demand_forecast/internal/sheets"
	"demand_forecast/internal/sheetsync"
	"demand_forecast/internal/solar"
	"demand_forecast/internal/store"
)

// NotTrainedError reports a prediction or export for a target without a model.
type NotTrainedError struct {
	Target model.Target
}

func (e *NotTrainedError) Error() string {
	return fmt.Sprintf("no trained model for %s", e.Target)
}

// Options configures a Session.
type Options struct {
	Split predictor.SplitConfig
	Seed  uint64
	Solar solar.PVProfile
	Sink  report.Sink
}

// DefaultOptions uses the default split, seed 42, no solar fleet and a log sink.
func DefaultOptions() Options {
	return Options{
		Split: predictor.DefaultSplitConfig(),
		Seed:  42,
		Solar: solar.NewProfile(0, 0),
		Sink:  report.LogSink{},
	}
}

// Session owns the working table, its sync engine, and the current model and
// report per target. Models are swapped atomically so predictions never see
// a half-trained model; a failed training run keeps the previous one.
type Session struct {
	store   *store.Store
	sync    *sheetsync.Engine
	trainer *predictor.Trainer
	split   predictor.SplitConfig
	solar   solar.PVProfile
	sink    report.Sink

	// tableMu runs pulls, pushes and edits one at a time.
	tableMu sync.Mutex
	trainMu sync.Mutex
	models  map[model.Target]*atomic.Pointer[predictor.TrainedModel]
	reports map[model.Target]*atomic.Pointer[predictor.EvaluationReport]
}

func New(table sheets.Table, opts Options) *Session {
	st := store.New()
	if opts.Sink == nil {
		opts.Sink = report.LogSink{}
	}
	s := &Session{
		store:   st,
		sync:    sheetsync.New(table, st),
		trainer: predictor.NewTrainer(opts.Seed),
		split:   opts.Split,
		solar:   opts.Solar,
		sink:    opts.Sink,
		models:  make(map[model.Target]*atomic.Pointer[predictor.TrainedModel]),
		reports: make(map[model.Target]*atomic.Pointer[predictor.EvaluationReport]),
	}
	for _, t := range model.Targets {
		s.models[t] = new(atomic.Pointer[predictor.TrainedModel])
		s.reports[t] = new(atomic.Pointer[predictor.EvaluationReport])
	}
	return s
}

// Store exposes the working table for read access.
func (s *Session) Store() *store.Store { return s.store }

// Sync exposes the sync engine so callers can tune retries.
func (s *Session) Sync() *sheetsync.Engine { return s.sync }

func (s *Session) Pull(ctx context.Context) (sheetsync.PullResult, error) {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	return s.sync.Pull(ctx)
}

func (s *Session) Push(ctx context.Context) (sheetsync.PushResult, error) {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	return s.sync.Push(ctx)
}

func (s *Session) Edit(key, column, value string) error {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	if err := s.store.Edit(key, column, value); err != nil {
		return err
	}
	metrics.PendingEdits.Set(float64(s.store.SnapshotDiff().Len()))
	return nil
}

func (s *Session) Insert(date time.Time) (model.DailyRecord, error) {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	rec, err := s.store.Insert(date)
	if err != nil {
		return model.DailyRecord{}, err
	}
	metrics.PendingEdits.Set(float64(s.store.SnapshotDiff().Len()))
	return rec, nil
}

// Diff returns the pending edits without clearing them.
func (s *Session) Diff() store.EditSet {
	return s.store.SnapshotDiff()
}

// engineerFor returns a feature engineer using the solar scale m was
// trained with. Models saved without one use the configured profile.
func (s *Session) engineerFor(m *predictor.TrainedModel) *features.Engineer {
	profile := s.solar
	if m.SolarScale > 0 {
		profile.Scale = m.SolarScale
	}
	return features.NewEngineer(profile)
}

// Train builds the dataset for target, splits it, fits, evaluates, and then
// installs the model and report. On any error the previous model stays.
func (s *Session) Train(ctx context.Context, target model.Target) (predictor.EvaluationReport, error) {
	if _, ok := s.models[target]; !ok {
		return predictor.EvaluationReport{}, fmt.Errorf("unknown target %q", target)
	}
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	start := time.Now()
	rep, m, err := s.train(target)
	metrics.TrainDuration.WithLabelValues(string(target)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TrainFailures.WithLabelValues(string(target)).Inc()
		log.Printf("train: %s failed: %v", target, err)
		return predictor.EvaluationReport{}, err
	}

	s.models[target].Store(m)
	s.reports[target].Store(&rep)
	metrics.ModelR2.WithLabelValues(string(target)).Set(rep.R2)
	metrics.ModelMAE.WithLabelValues(string(target)).Set(rep.MAE)
	log.Printf("train: %s: %s mae %.2f r2 %.3f", target, rep.Model, rep.MAE, rep.R2)

	if err := s.sink.Report(ctx, rep); err != nil {
		log.Printf("report: %s not delivered: %v", target, err)
	}
	return rep, nil
}

func (s *Session) train(target model.Target) (predictor.EvaluationReport, *predictor.TrainedModel, error) {
	records := s.store.Records()
	profile := s.solar.Calibrate(records)
	ds, err := features.NewEngineer(profile).Build(records, target)
	if err != nil {
		return predictor.EvaluationReport{}, nil, err
	}
	trainSet, testSet, err := predictor.Split(ds, s.split)
	if err != nil {
		return predictor.EvaluationReport{}, nil, err
	}
	m, err := s.trainer.Fit(trainSet)
	if err != nil {
		return predictor.EvaluationReport{}, nil, err
	}
	m.SolarScale = profile.Scale
	rep, err := predictor.Evaluate(m, testSet)
	if err != nil {
		return predictor.EvaluationReport{}, nil, err
	}
	rep.Skipped = len(ds.Skipped)
	return rep, m, nil
}

// TrainAll trains every target. Failures are collected; the other targets
// still train.
func (s *Session) TrainAll(ctx context.Context) (map[model.Target]predictor.EvaluationReport, error) {
	out := make(map[model.Target]predictor.EvaluationReport)
	var errs []error
	for _, t := range model.Targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := s.Train(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
			continue
		}
		out[t] = rep
	}
	return out, errors.Join(errs...)
}

// Query selects what to predict: a date present in the table, or manual
// feature values.
type Query struct {
	Date   *time.Time
	Values map[string]float64
}

// Predict returns a point estimate from the current model of target.
func (s *Session) Predict(ctx context.Context, target model.Target, q Query) (predictor.Prediction, error) {
	m, ok := s.Model(target)
	if !ok {
		return predictor.Prediction{}, &NotTrainedError{Target: target}
	}

	var (
		p   predictor.Prediction
		err error
	)
	if q.Date != nil {
		records := s.store.Records()
		p, err = predictor.PredictDate(m, s.engineerFor(m), records, *q.Date)
	} else {
		p, err = predictor.PredictManual(m, q.Values)
	}
	if err != nil {
		return predictor.Prediction{}, err
	}

	metrics.Predictions.WithLabelValues(string(target)).Inc()
	if err := s.sink.Prediction(ctx, p); err != nil {
		log.Printf("report: prediction for %s not delivered: %v", target, err)
	}
	return p, nil
}

// PredictDate predicts the recorded day date.
func (s *Session) PredictDate(ctx context.Context, target model.Target, date time.Time) (predictor.Prediction, error) {
	return s.Predict(ctx, target, Query{Date: &date})
}

// Model returns the current model of target.
func (s *Session) Model(target model.Target) (*predictor.TrainedModel, bool) {
	p, ok := s.models[target]
	if !ok {
		return nil, false
	}
	m := p.Load()
	return m, m != nil
}

// SetModel installs an imported model for its target.
func (s *Session) SetModel(m *predictor.TrainedModel) error {
	p, ok := s.models[m.Target]
	if !ok {
		return fmt.Errorf("unknown target %q", m.Target)
	}
	p.Store(m)
	return nil
}

// Report returns the last evaluation of target.
func (s *Session) Report(target model.Target) (predictor.EvaluationReport, bool) {
	p, ok := s.reports[target]
	if !ok {
		return predictor.EvaluationReport{}, false
	}
	r := p.Load()
	if r == nil {
		return predictor.EvaluationReport{}, false
	}
	return *r, true
}

// Reports returns the last evaluation of every trained target.
func (s *Session) Reports() []predictor.EvaluationReport {
	var out []predictor.EvaluationReport
	for _, t := range model.Targets {
		if r, ok := s.Report(t); ok {
			out = append(out, r)
		}
	}
	return out
}

// Status summarises the working table.
type Status struct {
	Rows         int
	PendingEdits int
	TimeRange    *model.TimeRange
}

func (s *Session) Status() Status {
	st := Status{Rows: s.store.Len(), PendingEdits: s.store.SnapshotDiff().Len()}
	if tr, ok := s.store.TimeRange(); ok {
		st.TimeRange = &tr
	}
	return st
}

// Snapshot captures the working table for persistence between runs.
func (s *Session) Snapshot() database.State {
	var headers []string
	if l := s.sync.Layout(); l != nil {
		headers = l.Headers
	}
	return database.State{
		Headers: headers,
		Rows:    s.store.Rows(),
		Edits:   s.store.SnapshotDiff(),
		SavedAt: time.Now().UTC(),
	}
}

// Restore reloads a saved working table, including its pending edits.
func (s *Session) Restore(st database.State) error {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	if err := s.store.Restore(st.Rows, st.Edits); err != nil {
		return err
	}
	if len(st.Headers) > 0 {
		s.sync.SetLayout(ingest.NewLayout(st.Headers))
	}
	metrics.RowsLoaded.Set(float64(len(st.Rows)))
	metrics.PendingEdits.Set(float64(st.Edits.Len()))
	return nil
}
