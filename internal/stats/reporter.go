// Package stats is the read-only reporting surface over C2: totals,
// histograms, and error samples for `blockctl print-stats` and
// `blockctl debug-errors-sample`. No side effects, no writes.
package stats

import (
	"context"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/corvidlabs/blockctl/internal/storage/sqlite"
)

// maxSamplesPerBucket bounds the error-sample dump per §4.6 ("3-5
// sample messages per bucket").
const maxSamplesPerBucket = 5

// Totals summarizes the outcomes table by terminal status.
type Totals struct {
	All             int
	Blocked         int
	Remaining       int
	Failed          int
	RetryCeilingHit int
	RetryEligible   int
}

// Report is the full `print-stats` payload: totals plus the two
// histograms and the attempts distribution.
type Report struct {
	Totals            Totals
	UserStates        map[domain.UserState]int
	ErrorKinds        map[domain.ErrorKind]int
	ErrorSamples      map[domain.ErrorKind][]string
	AttemptsHistogram AttemptsSummary
}

// AttemptsSummary is an HdrHistogram-backed view of attempts-per-target,
// recovering a metric the original tool only logged ad hoc.
type AttemptsSummary struct {
	Count int64
	Min   int64
	Max   int64
	Mean  float64
	P50   int64
	P95   int64
	P99   int64
}

// Reporter queries C2's outcomes table. It never mutates state.
type Reporter struct {
	store *sqlite.Store
}

// NewReporter ties a Reporter to the persistence store it reads from.
func NewReporter(store *sqlite.Store) *Reporter {
	return &Reporter{store: store}
}

// Generate builds the full report: all totals and histograms computed
// from one pass over GetPermanentFailures/GetSuccessful/ListRetryCandidates
// plus the store's own aggregate Stats query.
func (r *Reporter) Generate(ctx context.Context, retryCeiling int) (Report, error) {
	st, err := r.store.Stats(ctx)
	if err != nil {
		return Report{}, err
	}

	permanent, err := r.store.GetPermanentFailures(ctx, nil)
	if err != nil {
		return Report{}, err
	}
	retryCandidates, err := r.store.ListRetryCandidates(ctx, retryCeiling)
	if err != nil {
		return Report{}, err
	}
	ceilingHit, err := r.store.ListRetryCandidates(ctx, 1<<30)
	if err != nil {
		return Report{}, err
	}

	successful, err := r.store.GetSuccessful(ctx, nil)
	if err != nil {
		return Report{}, err
	}

	retryCeilingReached := 0
	for _, o := range ceilingHit {
		if o.Attempts >= retryCeiling {
			retryCeilingReached++
		}
	}

	report := Report{
		Totals: Totals{
			All:             st.Total,
			Blocked:         st.Success,
			Remaining:       st.Total - st.Success - st.Skipped - st.PermanentFailure - st.TransientFailure,
			Failed:          st.PermanentFailure + st.TransientFailure,
			RetryCeilingHit: retryCeilingReached,
			RetryEligible:   len(retryCandidates),
		},
		UserStates:   map[domain.UserState]int{},
		ErrorKinds:   map[domain.ErrorKind]int{},
		ErrorSamples: map[domain.ErrorKind][]string{},
	}

	all := make([]domain.Outcome, 0, len(permanent)+len(retryCandidates)+len(successful))
	all = append(all, permanent...)
	all = append(all, retryCandidates...)
	all = append(all, successful...)

	for _, o := range all {
		report.UserStates[o.UserState]++
		if o.ErrorKind != "" {
			report.ErrorKinds[o.ErrorKind]++
			if samples := report.ErrorSamples[o.ErrorKind]; len(samples) < maxSamplesPerBucket && o.ErrorSample != "" {
				report.ErrorSamples[o.ErrorKind] = append(samples, o.ErrorSample)
			}
		}
	}

	report.AttemptsHistogram = attemptsSummary(all)
	return report, nil
}

// ErrorSamples is the dedicated `debug-errors-sample` dump: every
// sampled message of permanent failures and of transient failures still
// under retryCeiling, not capped to the summary report's per-bucket
// ceiling. Transient failures at or above retryCeiling are not included.
func (r *Reporter) ErrorSamples(ctx context.Context, retryCeiling int) (map[domain.ErrorKind][]string, error) {
	permanent, err := r.store.GetPermanentFailures(ctx, nil)
	if err != nil {
		return nil, err
	}
	transient, err := r.store.ListRetryCandidates(ctx, retryCeiling)
	if err != nil {
		return nil, err
	}

	out := map[domain.ErrorKind][]string{}
	for _, o := range append(permanent, transient...) {
		if o.ErrorSample == "" {
			continue
		}
		kind := o.ErrorKind
		if kind == "" {
			kind = domain.ErrorKindUnknown
		}
		out[kind] = append(out[kind], o.ErrorSample)
	}
	return out, nil
}

func attemptsSummary(outcomes []domain.Outcome) AttemptsSummary {
	if len(outcomes) == 0 {
		return AttemptsSummary{}
	}

	hist := hdrhistogram.New(1, 10000, 3)
	for _, o := range outcomes {
		_ = hist.RecordValue(int64(o.Attempts))
	}

	return AttemptsSummary{
		Count: hist.TotalCount(),
		Min:   hist.Min(),
		Max:   hist.Max(),
		Mean:  hist.Mean(),
		P50:   hist.ValueAtQuantile(50),
		P95:   hist.ValueAtQuantile(95),
		P99:   hist.ValueAtQuantile(99),
	}
}
