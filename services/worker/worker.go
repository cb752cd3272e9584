package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sjsage522/pricewatch/internal/detector"
	"sjsage522/pricewatch/internal/history"
	"sjsage522/pricewatch/internal/money"
	"sjsage522/pricewatch/internal/product"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/services/notifier"
	"sjsage522/pricewatch/services/publisher"
)

// State is the phase a run is in
type State string

const (
	StateIdle              State = "idle"
	StateLoadingHistory    State = "loading_history"
	StateSweepingQueries   State = "sweeping_queries"
	StatePersistingHistory State = "persisting_history"
	StateReportingSummary  State = "reporting_summary"
	StateDone              State = "done"
)

// Resolver turns a query into candidate product page URLs
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]string, error)
}

// Extractor reads one product page
type Extractor interface {
	Extract(ctx context.Context, query, location string) product.Result
}

// Deps holds everything a Worker needs
type Deps struct {
	Queries       []string
	HistoryFile   string
	Targets       detector.TargetTable
	DropThreshold decimal.Decimal
	Interval      time.Duration

	Resolver  Resolver
	Extractor Extractor
	Notifier  notifier.Notifier
	// Publisher is optional; alerts are mirrored to it when set
	Publisher publisher.Publisher
}

// Summary reports the outcome of one run
type Summary struct {
	RunID    string
	Checked  int
	Alerts   int
	Skipped  int
	Stored   int
	Duration time.Duration
}

// Worker runs price sweeps
type Worker struct {
	deps  Deps
	state State
}

// NewWorker creates a new worker
func NewWorker(deps Deps) *Worker {
	return &Worker{deps: deps, state: StateIdle}
}

// State returns the phase of the current or last run
func (w *Worker) State() State {
	return w.state
}

// Start runs a sweep, then keeps sweeping every Interval until ctx is done.
// With a zero Interval it returns after the first run.
func (w *Worker) Start(ctx context.Context) error {
	for {
		start := time.Now()
		summary, err := w.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.ForRun(summary.RunID).Warn().Err(err).Msg("Sweep interrupted, history not saved")
				return nil
			}
			return err
		}
		logger.ForRun(summary.RunID).Info().
			Dur("elapsed", time.Since(start)).
			Msg("Sweep finished")

		if w.deps.Interval <= 0 {
			return nil
		}

		timer := time.NewTimer(w.deps.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce performs one full sweep. Any returned error aborts the run before
// history is saved, so the file keeps its previous contents.
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	log := logger.ForRun(summary.RunID)
	start := time.Now()

	w.state = StateLoadingHistory
	store, err := history.Load(w.deps.HistoryFile)
	if err != nil {
		return summary, err
	}
	log.Info().Int("entries", store.Len()).Str("file", w.deps.HistoryFile).Msg("Loaded price history")

	w.state = StateSweepingQueries
	for _, query := range w.deps.Queries {
		if err := w.sweepQuery(ctx, query, store, &summary); err != nil {
			return summary, err
		}
	}

	w.state = StatePersistingHistory
	if err := store.Save(w.deps.HistoryFile); err != nil {
		return summary, err
	}
	summary.Stored = store.Len()

	w.state = StateReportingSummary
	if err := w.deps.Notifier.Send(ctx, detector.RenderSummary(summary.Checked, summary.Alerts)); err != nil {
		return summary, err
	}

	w.state = StateDone
	summary.Duration = time.Since(start)
	log.Info().
		Int("checked", summary.Checked).
		Int("alerts", summary.Alerts).
		Int("skipped", summary.Skipped).
		Int("stored", summary.Stored).
		Dur("duration", summary.Duration).
		Msg("Run completed")
	return summary, nil
}

// sweepQuery resolves query and handles its candidates one at a time
func (w *Worker) sweepQuery(ctx context.Context, query string, store *history.Store, summary *Summary) error {
	log := logger.ForRun(summary.RunID).WithField("query", query)

	locations, err := w.deps.Resolver.Resolve(ctx, query)
	if err != nil {
		return fmt.Errorf("query %q: %w", query, err)
	}
	log.Debug().Int("candidates", len(locations)).Msg("Resolved candidates")

	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := w.deps.Extractor.Extract(ctx, query, location)
		if result.Skip != nil {
			summary.Skipped++
			continue
		}
		obs := *result.Observation
		summary.Checked++

		alert := detector.Decide(obs, store.Get(obs.Location), w.deps.Targets, w.deps.DropThreshold)
		if alert != nil {
			if err := w.deps.Notifier.Send(ctx, detector.Render(*alert)); err != nil {
				return err
			}
			summary.Alerts++
			w.publish(ctx, log, *alert)
		}

		if store.Put(obs) {
			log.Debug().
				Str("location", obs.Location).
				Str("price", money.Format(obs.Price.Decimal)).
				Msg("Observed price")
		} else {
			log.Debug().Str("location", obs.Location).Msg("No price found")
		}
	}
	return nil
}

// alertEvent is the stream form of a dispatched alert
type alertEvent struct {
	Kind         detector.Kind `json:"kind"`
	Query        string        `json:"query"`
	Location     string        `json:"location"`
	Name         string        `json:"name"`
	NewPrice     string        `json:"new_price"`
	OldPrice     string        `json:"old_price,omitempty"`
	DropFraction string        `json:"drop_fraction,omitempty"`
	Target       string        `json:"target,omitempty"`
	SentAt       int64         `json:"sent_at"`
}

func newAlertEvent(a detector.Alert, at time.Time) alertEvent {
	ev := alertEvent{
		Kind:     a.Kind,
		Query:    a.Query,
		Location: a.Location,
		Name:     a.Name,
		NewPrice: money.Format(a.NewPrice),
		SentAt:   at.Unix(),
	}
	switch a.Kind {
	case detector.PriceDrop:
		ev.OldPrice = money.Format(a.OldPrice)
		ev.DropFraction = a.DropFraction.StringFixed(4)
	case detector.TargetReached:
		ev.Target = money.Format(a.Target)
	}
	return ev
}

// publish mirrors an alert to the stream; failures are only logged
func (w *Worker) publish(ctx context.Context, log *logger.Logger, a detector.Alert) {
	if w.deps.Publisher == nil {
		return
	}
	data, err := json.Marshal(newAlertEvent(a, time.Now()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode alert event")
		return
	}
	if err := w.deps.Publisher.Publish(ctx, string(a.Kind), data); err != nil {
		log.Warn().Err(err).Msg("Failed to publish alert event")
		return
	}
	if err := w.deps.Publisher.Trim(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to trim alert stream")
	}
}
