package store

import (
	"context"
	"time"
)

// Event kinds recorded in generation_events.
const (
	KindText  = "text"
	KindImage = "image"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int       // id > After
	Before  int       // id < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Kind    string    // exact kind match when set
	Purpose string    // exact purpose match when set
}

// LLMRequestEventData captures the data for a single generation request.
type LLMRequestEventData struct {
	Kind         string `sql:"kind"`
	Provider     string `sql:"provider"`
	Model        string `sql:"model"`
	Purpose      string `sql:"purpose"`
	InputTokens  int    `sql:"input_tokens"`
	OutputTokens int    `sql:"output_tokens"`
	LatencyMs    int64  `sql:"latency_ms"`
	Success      bool   `sql:"success"`
	ErrorMessage string `sql:"error_message"`
	RequestBody  string `sql:"request_body"`
	ResponseBody string `sql:"response_body"`
}

// LLMEventRecord is a stored generation event.
type LLMEventRecord struct {
	ID        int       `sql:"id"`
	Timestamp time.Time `sql:"timestamp"`
	LLMRequestEventData
}

// LLMUsageStat aggregates usage by purpose.
type LLMUsageStat struct {
	Purpose      string `sql:"purpose"`
	Calls        int    `sql:"calls"`
	InputTokens  int    `sql:"input_tokens"`
	OutputTokens int    `sql:"output_tokens"`
	AvgLatencyMs int64  `sql:"avg_latency_ms"`
}

// LLMModelUsage aggregates usage by model.
type LLMModelUsage struct {
	Model        string `sql:"model"`
	Calls        int    `sql:"calls"`
	InputTokens  int    `sql:"input_tokens"`
	OutputTokens int    `sql:"output_tokens"`
}

// EventRepo provides append and query access to generation events.
type EventRepo interface {
	// AppendLLMRequest records a provider call.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)

	// GetLLMEvent returns a single event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)

	// LLMUsageByPurpose aggregates token usage per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStat, error)

	// LLMUsageByModel aggregates token usage per model.
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}

// NopEventRepo discards appends and returns empty query results. Used when
// history is disabled.
type NopEventRepo struct{}

var _ EventRepo = NopEventRepo{}

func (NopEventRepo) AppendLLMRequest(context.Context, LLMRequestEventData) error { return nil }

func (NopEventRepo) QueryLLMEvents(context.Context, QueryOpts) ([]LLMEventRecord, error) {
	return nil, nil
}

func (NopEventRepo) GetLLMEvent(context.Context, int) (*LLMEventRecord, error) { return nil, nil }

func (NopEventRepo) LLMUsageByPurpose(context.Context) ([]LLMUsageStat, error) { return nil, nil }

func (NopEventRepo) LLMUsageByModel(context.Context) ([]LLMModelUsage, error) { return nil, nil }
