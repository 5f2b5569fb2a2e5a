package processor

// SourceItem is one user-selected file. It is never mutated after creation.
type SourceItem struct {
	Name       string
	MediaType  string
	ByteLength int64
	Payload    []byte
}

// NewSourceItem builds a SourceItem whose declared length is the payload length.
func NewSourceItem(name, mediaType string, payload []byte) SourceItem {
	return SourceItem{
		Name:       name,
		MediaType:  mediaType,
		ByteLength: int64(len(payload)),
		Payload:    payload,
	}
}

// Limits bounds what the validator accepts.
type Limits struct {
	AllowedTypes  []string `validate:"min=1,dive,required"`
	MaxInputBytes int64    `validate:"gt=0"`
	// MaxPixels caps width*height read from the image header. Zero disables it.
	MaxPixels int64 `validate:"gte=0"`
}

// OverBudgetPolicy decides what happens when the last pass is still too large.
type OverBudgetPolicy int

const (
	OverBudgetBestEffort OverBudgetPolicy = iota
	OverBudgetReject
)

// Budget holds the size, quality and dimension constraints for one batch.
// Quality factors are in 0..1.
type Budget struct {
	MaxWidthPx     int     `validate:"gt=0"`
	MaxHeightPx    int     `validate:"gt=0"`
	InitialQuality float64 `validate:"gte=0,lte=1"`
	QualityFloor   float64 `validate:"gte=0,lte=1,ltefield=InitialQuality"`
	MaxOutputBytes int64   `validate:"gt=0"`
	// MaxPasses bounds encode passes per item. Zero means two (one retry).
	MaxPasses  int              `validate:"gte=0,lte=8"`
	OverBudget OverBudgetPolicy `validate:"gte=0,lte=1"`
}

// QualityStep is how far each retry lowers the quality factor.
const QualityStep = 0.2

const defaultMaxPasses = 2

func (b Budget) passes() int {
	if b.MaxPasses <= 0 {
		return defaultMaxPasses
	}
	return b.MaxPasses
}

// ValidationResult is the outcome of validating one SourceItem.
type ValidationResult struct {
	OK      bool
	Reasons []Reason
	Err     error
}

// ProcessedItem is a successfully re-encoded SourceItem.
type ProcessedItem struct {
	Index                   int
	Original                SourceItem
	Output                  []byte
	OutputBytes             int64
	OriginalWidth           int
	OriginalHeight          int
	WidthPx                 int
	HeightPx                int
	QualityUsed             float64
	Passes                  int
	CompressionRatioPercent float64
}

// FailedItem records why one SourceItem did not make it through.
type FailedItem struct {
	Index        int
	OriginalName string
	Reason       Reason
	Reasons      []Reason
	Message      string
}

// BatchResult is the immutable outcome of one ProcessBatch call.
type BatchResult struct {
	BatchID            string
	Successful         []ProcessedItem
	Failed             []FailedItem
	TotalOriginalBytes int64
	TotalOutputBytes   int64
}

// SavedBytes is the total shrink over successful items. It can be negative.
func (r BatchResult) SavedBytes() int64 {
	return r.TotalOriginalBytes - r.TotalOutputBytes
}

// ProgressUpdate carries counter deltas for progress displays.
type ProgressUpdate struct {
	TotalDelta         int
	ProcessedDelta     int
	FailedDelta        int
	OriginalBytesDelta int64
	OutputBytesDelta   int64
}
