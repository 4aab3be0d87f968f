package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/metrics"
)

// MaxAttempts caps extractor invocations per audit cycle.
const MaxAttempts = 2

// ErrExtraction marks a cycle aborted because the extractor itself failed.
var ErrExtraction = errors.New("EXTRACTION_FAILED")

// Extractor reads structured fields out of document text. Implementations are
// non-deterministic and may call paid external APIs.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text string, schema Schema, expected *ExpectedValues) (Record, error)
}

// Result is the terminal state of one audit cycle. Extracted is always the
// last attempt's record, never a merge of attempts.
type Result struct {
	Variant    SchemaVariant    `json:"variant"`
	Extracted  Record           `json:"extracted"`
	Checklist  []ChecklistEntry `json:"checklist"`
	IsValid    bool             `json:"isValid"`
	Iterations int              `json:"iterations"`
	Provider   string           `json:"provider"`
}

type cycleState int

const (
	stateExtracting cycleState = iota
	stateAuditing
	stateDone
)

// Controller runs the bounded extract -> audit -> retry loop.
type Controller struct {
	extractor   Extractor
	maxAttempts int
	logger      *zap.Logger
}

// NewController builds a controller. maxAttempts outside 1..MaxAttempts is
// clamped to MaxAttempts.
func NewController(extractor Extractor, maxAttempts int, logger *zap.Logger) *Controller {
	if maxAttempts < 1 || maxAttempts > MaxAttempts {
		maxAttempts = MaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{extractor: extractor, maxAttempts: maxAttempts, logger: logger}
}

// Run executes one audit cycle. It stops at the first valid audit or when the
// attempt cap is reached. An extractor error aborts the cycle immediately and
// is returned wrapped in ErrExtraction; it is not retried.
func (c *Controller) Run(ctx context.Context, text string, variant SchemaVariant, expected *ExpectedValues) (*Result, error) {
	schema, err := SchemaFor(variant)
	if err != nil {
		return nil, err
	}
	logCtx := c.logger.With(zap.String("schema", string(variant)), zap.String("provider", c.extractor.Name()))

	var (
		current   Record
		checklist []ChecklistEntry
		valid     bool
		iteration int
	)

	state := stateExtracting
	for state != stateDone {
		switch state {
		case stateExtracting:
			if err := ctx.Err(); err != nil {
				metrics.AuditCyclesFailed.WithLabelValues(string(variant)).Inc()
				return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
			}
			iteration++
			start := time.Now()
			rec, err := c.extractor.Extract(ctx, text, schema, expected)
			metrics.ExtractionDuration.WithLabelValues(c.extractor.Name()).Observe(time.Since(start).Seconds())
			if err != nil {
				logCtx.Error("Extractor failed, aborting audit cycle", zap.Int("attempt", iteration), zap.Error(err))
				metrics.AuditCyclesFailed.WithLabelValues(string(variant)).Inc()
				return nil, fmt.Errorf("%w: attempt %d: %v", ErrExtraction, iteration, err)
			}
			if rec == nil {
				rec = Record{}
			}
			current = rec
			state = stateAuditing

		case stateAuditing:
			checklist, valid = Audit(schema, current, expected)
			if valid || iteration >= c.maxAttempts {
				state = stateDone
				continue
			}
			logCtx.Info("Audit found missing or mismatched fields, retrying extraction",
				zap.Int("attempt", iteration), zap.Int("maxAttempts", c.maxAttempts))
			state = stateExtracting
		}
	}

	metrics.AuditCyclesCompleted.WithLabelValues(string(variant), fmt.Sprint(valid)).Inc()
	metrics.ExtractionAttempts.WithLabelValues(string(variant)).Observe(float64(iteration))
	logCtx.Info("Audit cycle complete.", zap.Bool("isValid", valid), zap.Int("iterations", iteration))

	return &Result{
		Variant:    variant,
		Extracted:  current,
		Checklist:  checklist,
		IsValid:    valid,
		Iterations: iteration,
		Provider:   c.extractor.Name(),
	}, nil
}
