package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// eventRepo implements EventRepo with ent's SQL builders over the
// generation_events table.
type eventRepo struct {
	drv *entsql.Driver
	now func() time.Time
}

func (r *eventRepo) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *eventRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	kind := data.Kind
	if kind == "" {
		kind = KindText
	}

	query, args := r.builder().Insert(GenerationEventsTable.Name).
		Columns(
			"timestamp", "kind", "purpose", "provider", "model",
			"input_tokens", "output_tokens", "latency_ms", "success",
			"error_message", "request_body", "response_body",
		).
		Values(
			r.clock().UTC(), kind, data.Purpose, data.Provider, data.Model,
			data.InputTokens, data.OutputTokens, data.LatencyMs, data.Success,
			data.ErrorMessage, data.RequestBody, data.ResponseBody,
		).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func (r *eventRepo) selectEvents() *entsql.Selector {
	cols := make([]string, len(GenerationEventsColumns))
	for i, c := range GenerationEventsColumns {
		cols[i] = c.Name
	}
	return r.builder().Select(cols...).From(r.builder().Table(GenerationEventsTable.Name))
}

func (r *eventRepo) scanEvents(ctx context.Context, sel *entsql.Selector) ([]LLMEventRecord, error) {
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	defer rows.Close()

	var records []LLMEventRecord
	if err := entsql.ScanSlice(rows, &records); err != nil {
		return nil, fmt.Errorf("scan LLM events: %w", err)
	}
	return records, nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error) {
	var preds []*entsql.Predicate
	if opts.After > 0 {
		preds = append(preds, entsql.GT("id", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("id", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", opts.From.UTC()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", opts.To.UTC()))
	}
	if opts.Kind != "" {
		preds = append(preds, entsql.EQ("kind", opts.Kind))
	}
	if opts.Purpose != "" {
		preds = append(preds, entsql.EQ("purpose", opts.Purpose))
	}

	sel := r.selectEvents().OrderBy(entsql.Desc("id"))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	return r.scanEvents(ctx, sel)
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error) {
	records, err := r.scanEvents(ctx, r.selectEvents().Where(entsql.EQ("id", id)).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStat, error) {
	sel := r.builder().Select(
		"purpose",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(coalesceZero(entsql.Sum("input_tokens")), "input_tokens"),
		entsql.As(coalesceZero(entsql.Sum("output_tokens")), "output_tokens"),
		entsql.As(coalesceZero("CAST("+entsql.Avg("latency_ms")+" AS INTEGER)"), "avg_latency_ms"),
	).
		From(r.builder().Table(GenerationEventsTable.Name)).
		GroupBy("purpose").
		OrderBy("purpose")

	var stats []LLMUsageStat
	if err := r.scanAggregate(ctx, sel, &stats); err != nil {
		return nil, fmt.Errorf("usage by purpose: %w", err)
	}
	return stats, nil
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error) {
	sel := r.builder().Select(
		"model",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(coalesceZero(entsql.Sum("input_tokens")), "input_tokens"),
		entsql.As(coalesceZero(entsql.Sum("output_tokens")), "output_tokens"),
	).
		From(r.builder().Table(GenerationEventsTable.Name)).
		Where(entsql.NEQ("model", "")).
		GroupBy("model").
		OrderBy("model")

	var usage []LLMModelUsage
	if err := r.scanAggregate(ctx, sel, &usage); err != nil {
		return nil, fmt.Errorf("usage by model: %w", err)
	}
	return usage, nil
}

func (r *eventRepo) scanAggregate(ctx context.Context, sel *entsql.Selector, v any) error {
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	return entsql.ScanSlice(rows, v)
}

// coalesceZero maps a NULL aggregate over an empty group to 0.
func coalesceZero(expr string) string {
	return "COALESCE(" + expr + ", 0)"
}
