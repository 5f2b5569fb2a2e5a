package processor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder observes per-item outcomes, typically for metrics.
type Recorder interface {
	ObserveProcessed(item ProcessedItem, elapsed time.Duration)
	ObserveFailed(item FailedItem, elapsed time.Duration)
}

// Coordinator runs validate, rasterize and encode over every item of a batch.
// A Coordinator holds no per-batch state and may be reused concurrently.
type Coordinator struct {
	logger   *zap.Logger
	workers  int
	updates  chan<- ProgressUpdate
	recorder Recorder
	process  func(index int, item SourceItem, limits Limits, budget Budget) outcome
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConcurrency caps how many items are processed at once. Values below one
// mean runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.workers = n
	}
}

// WithProgress sends counter deltas to updates as items complete. Sends
// block, so the receiver must keep draining until ProcessBatch returns.
func WithProgress(updates chan<- ProgressUpdate) Option {
	return func(c *Coordinator) {
		c.updates = updates
	}
}

// WithRecorder reports every item outcome to r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{logger: zap.NewNop(), process: processItem}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = runtime.NumCPU()
	}
	return c
}

type job struct {
	index int
	item  SourceItem
}

type outcome struct {
	index     int
	processed *ProcessedItem
	failed    *FailedItem
	elapsed   time.Duration
}

// ProcessBatch classifies every item as processed or failed and returns both
// lists in input order. It returns an error only for invalid limits or budget
// (ErrInvalidArgument) or when ctx is cancelled; in the latter case in-flight
// items finish but their results are discarded.
func (c *Coordinator) ProcessBatch(ctx context.Context, items []SourceItem, limits Limits, budget Budget) (BatchResult, error) {
	if err := CheckArgs(limits, budget); err != nil {
		return BatchResult{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := BatchResult{BatchID: uuid.NewString()}
	log := c.logger.With(zap.String("batch_id", result.BatchID))
	log.Info("batch started", zap.Int("items", len(items)), zap.Int("workers", c.workers))
	started := time.Now()

	if len(items) == 0 {
		return result, nil
	}
	c.send(ProgressUpdate{TotalDelta: len(items)})

	jobs := make(chan job)
	results := make(chan outcome)

	workers := c.workers
	if workers > len(items) {
		workers = len(items)
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			c.worker(ctx, jobs, results, limits, budget, log)
		}()
	}

	slots := make([]outcome, len(items))
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			slots[res.index] = res
			c.observe(res)
		}
	}()

	go func() {
		defer close(jobs)
		for i, item := range items {
			select {
			case jobs <- job{index: i, item: item}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	if err := ctx.Err(); err != nil {
		log.Warn("batch abandoned, results discarded", zap.Error(err))
		return BatchResult{BatchID: result.BatchID}, err
	}

	for _, res := range slots {
		switch {
		case res.processed != nil:
			result.Successful = append(result.Successful, *res.processed)
			result.TotalOriginalBytes += res.processed.Original.ByteLength
			result.TotalOutputBytes += res.processed.OutputBytes
		case res.failed != nil:
			result.Failed = append(result.Failed, *res.failed)
		}
	}

	log.Info("batch finished",
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)),
		zap.Int64("original_bytes", result.TotalOriginalBytes),
		zap.Int64("output_bytes", result.TotalOutputBytes),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (c *Coordinator) worker(ctx context.Context, jobs <-chan job, results chan<- outcome, limits Limits, budget Budget, log *zap.Logger) {
	for j := range jobs {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		res := c.process(j.index, j.item, limits, budget)
		res.elapsed = time.Since(start)

		if res.failed != nil {
			log.Debug("item failed",
				zap.Int("index", j.index),
				zap.String("name", j.item.Name),
				zap.String("reason", string(res.failed.Reason)),
				zap.String("detail", res.failed.Message),
			)
		} else {
			log.Debug("item processed",
				zap.Int("index", j.index),
				zap.String("name", j.item.Name),
				zap.Int64("original_bytes", j.item.ByteLength),
				zap.Int64("output_bytes", res.processed.OutputBytes),
				zap.Float64("quality", res.processed.QualityUsed),
				zap.Int("passes", res.processed.Passes),
			)
		}
		results <- res
	}
}

// processItem runs one item through the pipeline. Any error or codec panic
// becomes a FailedItem; nothing escapes to the batch.
func processItem(index int, item SourceItem, limits Limits, budget Budget) outcome {
	return guarded(index, item, func(stage *error) outcome {
		return runStages(index, item, limits, budget, stage)
	})
}

// guarded turns a panic in run into a FailedItem whose reason is the last
// stage run set.
func guarded(index int, item SourceItem, run func(stage *error) outcome) (res outcome) {
	stage := ErrDecode
	defer func() {
		if r := recover(); r != nil {
			res = failedOutcome(index, item, fmt.Errorf("%w: panic: %v", stage, r))
		}
	}()
	return run(&stage)
}

func runStages(index int, item SourceItem, limits Limits, budget Budget, stage *error) outcome {
	v := Validate(item, limits)
	if !v.OK {
		return outcome{index: index, failed: &FailedItem{
			Index:        index,
			OriginalName: item.Name,
			Reason:       v.Reasons[0],
			Reasons:      v.Reasons,
			Message:      v.Err.Error(),
		}}
	}

	surface, err := Rasterize(item, budget, limits.MaxPixels)
	if err != nil {
		return failedOutcome(index, item, err)
	}
	defer surface.Release()

	*stage = ErrEncode
	enc, err := Encode(surface, surface.TargetWidth, surface.TargetHeight, budget)
	origW, origH := surface.Width, surface.Height
	surface.Release()
	if err != nil {
		return failedOutcome(index, item, err)
	}

	outBytes := int64(len(enc.Buffer))
	return outcome{index: index, processed: &ProcessedItem{
		Index:                   index,
		Original:                item,
		Output:                  enc.Buffer,
		OutputBytes:             outBytes,
		OriginalWidth:           origW,
		OriginalHeight:          origH,
		WidthPx:                 enc.Width,
		HeightPx:                enc.Height,
		QualityUsed:             enc.QualityUsed,
		Passes:                  enc.Passes,
		CompressionRatioPercent: CompressionRatio(item.ByteLength, outBytes),
	}}
}

func failedOutcome(index int, item SourceItem, err error) outcome {
	reason := ReasonFor(err)
	return outcome{index: index, failed: &FailedItem{
		Index:        index,
		OriginalName: item.Name,
		Reason:       reason,
		Reasons:      []Reason{reason},
		Message:      err.Error(),
	}}
}

// CompressionRatio is the percentage by which output is smaller than original.
// It is negative when re-encoding grew the file.
func CompressionRatio(original, output int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-output) / float64(original) * 100
}

func (c *Coordinator) observe(res outcome) {
	switch {
	case res.processed != nil:
		if c.recorder != nil {
			c.recorder.ObserveProcessed(*res.processed, res.elapsed)
		}
		c.send(ProgressUpdate{
			ProcessedDelta:     1,
			OriginalBytesDelta: res.processed.Original.ByteLength,
			OutputBytesDelta:   res.processed.OutputBytes,
		})
	case res.failed != nil:
		if c.recorder != nil {
			c.recorder.ObserveFailed(*res.failed, res.elapsed)
		}
		c.send(ProgressUpdate{FailedDelta: 1})
	}
}

func (c *Coordinator) send(u ProgressUpdate) {
	if c.updates != nil {
		c.updates <- u
	}
}
