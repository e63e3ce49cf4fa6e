// Package provider composes the entity store, relation store, event
// bus, action manager, artifact cache, retrieval engine, and
// transaction buffer into the single contract external callers use.
// It is the only package that knows about every other core package at
// once; the packages built on top of it (httpapi, cmd/entitystored)
// get their components through Provider instead of wiring them.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"eve.evalgo.org/action"
	"eve.evalgo.org/artifact"
	"eve.evalgo.org/concurrency"
	"eve.evalgo.org/eventbus"
	"eve.evalgo.org/graph"
	"eve.evalgo.org/retrieval"
	"eve.evalgo.org/schema"
	"eve.evalgo.org/semantic/runtime"
	"eve.evalgo.org/store"
	"eve.evalgo.org/txn"
)

const maxBatchSize = 1000
const systemActor = "system"

// Provider is the composed in-memory implementation of its contract.
type Provider struct {
	Schema    *schema.Schema
	Graph     *graph.Graph
	Entities  *store.EntityStore
	Relations *store.RelationStore
	Bus       *eventbus.Bus
	Actions   *action.Manager
	Artifacts *artifact.Cache
	Policy    *artifact.Policy
	Retrieval *retrieval.Engine
	Limiter   *concurrency.Limiter

	embeddingConfig map[string]artifact.FieldConfig
}

// settings collects construction-time choices so New can resolve
// every option before any component is built.
type settings struct {
	limiterCapacity int
	busOptions      []eventbus.Option
	embeddingConfig map[string]artifact.FieldConfig
	embedder        artifact.EmbeddingProvider
}

// Option configures a Provider at construction.
type Option func(*settings)

// WithEmbeddingConfig installs the per-type embedding configuration
// used by the automatic embedding pipeline.
func WithEmbeddingConfig(cfg map[string]artifact.FieldConfig) Option {
	return func(s *settings) { s.embeddingConfig = cfg }
}

// WithEmbeddingProvider installs an injected embedding backend for
// both the automatic embedding pipeline and semantic search.
func WithEmbeddingProvider(ep artifact.EmbeddingProvider) Option {
	return func(s *settings) { s.embedder = ep }
}

// WithLimiterCapacity bounds concurrent event-handler dispatch and
// replay; embedding calls are not limited. Zero or negative falls back
// to the limiter's default.
func WithLimiterCapacity(n int) Option {
	return func(s *settings) { s.limiterCapacity = n }
}

// WithBusOptions forwards eventbus.Option values (retention, error
// logging) to the bus created for this provider. The provider's
// limiter is always installed on the bus regardless.
func WithBusOptions(opts ...eventbus.Option) Option {
	return func(s *settings) { s.busOptions = append(s.busOptions, opts...) }
}

// New composes every core component around s, leaves first.
func New(s *schema.Schema, opts ...Option) *Provider {
	cfg := settings{embeddingConfig: map[string]artifact.FieldConfig{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.embedder == nil {
		cfg.embedder = artifact.MockProvider{}
	}

	limiter := concurrency.NewLimiter(cfg.limiterCapacity)
	busOpts := append([]eventbus.Option{eventbus.WithLimiter(limiter)}, cfg.busOptions...)
	bus := eventbus.New(busOpts...)
	entities := store.NewEntityStore()
	cache := artifact.NewCache()

	return &Provider{
		Schema:          s,
		Graph:           graph.Build(s),
		Entities:        entities,
		Relations:       store.NewRelationStore(),
		Bus:             bus,
		Actions:         action.NewManager(bus),
		Artifacts:       cache,
		Policy:          artifact.NewPolicy(cache, cfg.embedder, nil),
		Retrieval:       retrieval.NewEngine(entities, cache, cfg.embedder),
		Limiter:         limiter,
		embeddingConfig: cfg.embeddingConfig,
	}
}

func (p *Provider) fieldConfig(typeName string) artifact.FieldConfig {
	return p.embeddingConfig[typeName]
}

// Get returns the record, or nil if absent.
func (p *Provider) Get(typeName, id string) map[string]any {
	return p.Entities.Get(typeName, id)
}

// List returns validated where/orderBy/offset/limit results.
func (p *Provider) List(typeName string, opts store.ListOptions) ([]map[string]any, error) {
	return p.Entities.List(typeName, opts)
}

// Search runs FTS with score.
func (p *Provider) Search(typeName, query string, opts store.SearchOptions) []store.SearchResult {
	return p.Entities.Search(typeName, query, opts)
}

// SemanticSearch runs top-K cosine retrieval.
func (p *Provider) SemanticSearch(ctx context.Context, typeName, query string, opts retrieval.SemanticOptions) ([]retrieval.SemanticResult, error) {
	return p.Retrieval.SemanticSearch(ctx, typeName, query, opts)
}

// HybridSearch runs RRF-fused FTS+semantic retrieval.
func (p *Provider) HybridSearch(ctx context.Context, typeName, query string, opts retrieval.HybridOptions) ([]retrieval.HybridResult, error) {
	return p.Retrieval.HybridSearch(ctx, typeName, query, opts)
}

// UnionSearch resolves a pipe-separated candidate type list.
func (p *Provider) UnionSearch(ctx context.Context, types []string, query string, opts retrieval.UnionOptions) (*retrieval.UnionResult, error) {
	return p.Retrieval.UnionSearch(ctx, types, query, opts)
}

// emitPair appends the type-specific event then the global keyword
// event, always in that order.
func (p *Provider) emitPair(ctx context.Context, actor, typeEvent, globalEvent, id string, objectData map[string]any) {
	p.Bus.Emit(ctx, runtime.NewEvent(actor, typeEvent).WithObject(id, objectData))
	p.Bus.Emit(ctx, runtime.NewEvent(actor, globalEvent).WithObject(id, objectData))
}

func (p *Provider) embedEntity(ctx context.Context, typeName, id string, fields map[string]any) {
	cfg := p.fieldConfig(typeName)
	e := runtime.NewEntity(typeName, id, fields, time.Now())
	text := e.ContentText(cfg.Fields)
	p.Policy.Embed(ctx, artifact.URL(typeName, id), text, cfg)
}

// Create assigns an id if omitted, emits the created-event pair, and
// auto-embeds.
func (p *Provider) Create(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error) {
	return p.createAs(ctx, systemActor, typeName, id, data)
}

func (p *Provider) createAs(ctx context.Context, actor, typeName, id string, data map[string]any) (map[string]any, error) {
	e, err := p.Entities.Create(typeName, id, data)
	if err != nil {
		return nil, err
	}
	rec := e.Projection()
	p.embedEntity(ctx, typeName, e.ID, e.Fields)
	p.emitPair(ctx, actor, typeName+".created", "entity:created", e.ID, rec)
	return rec, nil
}

// Update merges the patch, re-embeds, invalidates non-embedding
// artifacts, and emits the updated-event pair.
func (p *Provider) Update(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error) {
	return p.updateAs(ctx, systemActor, typeName, id, data)
}

func (p *Provider) updateAs(ctx context.Context, actor, typeName, id string, data map[string]any) (map[string]any, error) {
	e, err := p.Entities.Update(typeName, id, data)
	if err != nil {
		return nil, err
	}
	rec := e.Projection()
	url := artifact.URL(typeName, id)
	p.Artifacts.InvalidateExcept(url, artifact.EmbeddingKind)
	p.embedEntity(ctx, typeName, id, e.Fields)
	p.emitPair(ctx, actor, typeName+".updated", "entity:updated", id, rec)
	return rec, nil
}

// Delete removes the record, its incident relations, and its
// artifacts, and emits the deleted-event pair. A missing entity
// returns false, not an error.
func (p *Provider) Delete(ctx context.Context, typeName, id string) (bool, error) {
	return p.deleteAs(ctx, systemActor, typeName, id)
}

func (p *Provider) deleteAs(ctx context.Context, actor, typeName, id string) (bool, error) {
	e, ok := p.Entities.Delete(typeName, id)
	if !ok {
		return false, nil
	}
	p.Relations.CleanupEntity(typeName, id)
	p.Artifacts.Delete(artifact.URL(typeName, id))
	p.emitPair(ctx, actor, typeName+".deleted", "entity:deleted", id, e.Projection())
	return true, nil
}

// RelateOptions carries the optional fuzzy-match metadata attached to
// the Relation.created event.
type RelateOptions struct {
	Meta *store.RelationMeta
}

// Relate adds a directed edge and emits Relation.created.
func (p *Provider) Relate(ctx context.Context, fromType, fromID, relation, toType, toID string, opts RelateOptions) {
	p.Relations.Relate(fromType, fromID, relation, toType, toID)
	data := map[string]any{"relation": relation, "toType": toType, "toId": toID}
	if opts.Meta != nil {
		data["matchMode"] = opts.Meta.MatchMode
		data["similarity"] = opts.Meta.Similarity
		data["matchedType"] = opts.Meta.MatchedType
	}
	p.Bus.Emit(ctx, runtime.NewEvent(systemActor, "Relation.created").WithObject(fromID, data))
}

// Unrelate removes a directed edge if present.
func (p *Provider) Unrelate(fromType, fromID, relation, toType, toID string) {
	p.Relations.Unrelate(fromType, fromID, relation, toType, toID)
}

// Related resolves the target entities of a directed edge into their
// projections, in target-key order. Targets deleted since the edge
// was created are skipped.
func (p *Provider) Related(fromType, fromID, relation string) []map[string]any {
	keys := p.Relations.Related(fromType, fromID, relation)
	sort.Strings(keys)
	out := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		toType, toID, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		if rec := p.Entities.Get(toType, toID); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// Emit appends an already-built event and dispatches it.
func (p *Provider) Emit(ctx context.Context, e *runtime.Event) {
	p.Bus.Emit(ctx, e)
}

// On registers a pattern handler.
func (p *Provider) On(pattern string, handler eventbus.Handler) eventbus.Unsubscribe {
	return p.Bus.On(pattern, handler)
}

// ListEvents filters the log.
func (p *Provider) ListEvents(f eventbus.ListFilter) []*runtime.Event {
	return p.Bus.ListEvents(f)
}

// ReplayEvents re-invokes handler over the filtered history.
func (p *Provider) ReplayEvents(ctx context.Context, f eventbus.ReplayFilter, handler eventbus.Handler) error {
	return p.Bus.ReplayEvents(ctx, f, handler)
}

// CreateAction allocates a pending action.
func (p *Provider) CreateAction(ctx context.Context, in action.CreateInput) *runtime.Action {
	return p.Actions.Create(ctx, in)
}

// GetAction returns a copy of the action, or nil.
func (p *Provider) GetAction(id string) *runtime.Action {
	return p.Actions.Get(id)
}

// UpdateAction sets progress/total without a state transition (the
// generic updateAction entry point; lifecycle transitions have their
// own named methods below).
func (p *Provider) UpdateAction(id string, progress float64, total *float64) error {
	return p.Actions.UpdateProgress(id, progress, total)
}

// ListActions filters actions by status.
func (p *Provider) ListActions(f action.ListFilter) []*runtime.Action {
	return p.Actions.List(f)
}

// StartAction transitions pending -> active.
func (p *Provider) StartAction(ctx context.Context, id string) (*runtime.Action, error) {
	return p.Actions.Start(ctx, id)
}

// CompleteAction transitions active -> completed.
func (p *Provider) CompleteAction(ctx context.Context, id string, result map[string]any) (*runtime.Action, error) {
	return p.Actions.Complete(ctx, id, result)
}

// FailAction transitions active -> failed.
func (p *Provider) FailAction(ctx context.Context, id string, failure *runtime.ActionFailure) (*runtime.Action, error) {
	return p.Actions.Fail(ctx, id, failure)
}

// RetryAction transitions failed -> pending.
func (p *Provider) RetryAction(ctx context.Context, id string) (*runtime.Action, error) {
	return p.Actions.Retry(ctx, id)
}

// CancelAction transitions pending/active -> cancelled.
func (p *Provider) CancelAction(ctx context.Context, id string) (*runtime.Action, error) {
	return p.Actions.Cancel(ctx, id)
}

// GetArtifact returns the latest artifact at (url, kind).
func (p *Provider) GetArtifact(url, kind string) *artifact.Artifact {
	return p.Artifacts.Get(url, kind)
}

// SetArtifact overwrites the artifact at (url, kind).
func (p *Provider) SetArtifact(url, kind string, content any, metadata map[string]any) *artifact.Artifact {
	return p.Artifacts.Set(url, kind, content, metadata)
}

// DeleteArtifact removes every kind scoped to url.
func (p *Provider) DeleteArtifact(url string) {
	p.Artifacts.Delete(url)
}

// ListArtifacts returns every artifact scoped to url.
func (p *Provider) ListArtifacts(url string) []*artifact.Artifact {
	return p.Artifacts.List(url)
}

// BeginTransaction opens a transaction buffer against this provider.
// Commit replays through applierAdapter so committed operations run
// the provider's full create/update/delete/relate side-effect chain
// (events, embeddings, artifact invalidation).
func (p *Provider) BeginTransaction() *txn.Buffer {
	return txn.Begin(readerFunc(p.Entities.Get), applierAdapter{p})
}

type readerFunc func(typeName, id string) map[string]any

func (f readerFunc) Get(typeName, id string) map[string]any { return f(typeName, id) }

// applierAdapter satisfies txn.Applier by delegating to the
// provider's public methods, since Provider.Relate's signature
// (carrying RelateOptions) differs from what txn.Applier requires.
type applierAdapter struct{ p *Provider }

func (a applierAdapter) Create(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error) {
	return a.p.Create(ctx, typeName, id, data)
}

func (a applierAdapter) Update(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error) {
	return a.p.Update(ctx, typeName, id, data)
}

func (a applierAdapter) Delete(ctx context.Context, typeName, id string) (bool, error) {
	return a.p.Delete(ctx, typeName, id)
}

func (a applierAdapter) Relate(ctx context.Context, fromType, fromID, relation, toType, toID string) error {
	a.p.Relate(ctx, fromType, fromID, relation, toType, toID, RelateOptions{})
	return nil
}

// BatchError pairs a batch item's index with the error it raised.
type BatchError struct {
	Index int
	Err   error
}

func checkBatchSize(n int) error {
	if n > maxBatchSize {
		return schema.New(schema.KindValidation, fmt.Sprintf("batch size %d exceeds limit %d", n, maxBatchSize))
	}
	return nil
}

// CreateManyInput is one item of a createMany batch.
type CreateManyInput struct {
	ID   string
	Data map[string]any
}

// CreateMany creates each item, collecting results and per-item
// errors; rejects batches over 1000 before any work begins.
func (p *Provider) CreateMany(ctx context.Context, typeName string, items []CreateManyInput) ([]map[string]any, []BatchError) {
	if err := checkBatchSize(len(items)); err != nil {
		return nil, []BatchError{{Index: -1, Err: err}}
	}
	results := make([]map[string]any, len(items))
	var errs []BatchError
	for i, item := range items {
		rec, err := p.Create(ctx, typeName, item.ID, item.Data)
		if err != nil {
			errs = append(errs, BatchError{Index: i, Err: err})
			continue
		}
		results[i] = rec
	}
	return results, errs
}

// UpdateManyInput is one item of an updateMany batch.
type UpdateManyInput struct {
	ID   string
	Data map[string]any
}

// UpdateMany updates each item; rejects batches over 1000 before any
// work begins.
func (p *Provider) UpdateMany(ctx context.Context, typeName string, items []UpdateManyInput) ([]map[string]any, []BatchError) {
	if err := checkBatchSize(len(items)); err != nil {
		return nil, []BatchError{{Index: -1, Err: err}}
	}
	results := make([]map[string]any, len(items))
	var errs []BatchError
	for i, item := range items {
		rec, err := p.Update(ctx, typeName, item.ID, item.Data)
		if err != nil {
			errs = append(errs, BatchError{Index: i, Err: err})
			continue
		}
		results[i] = rec
	}
	return results, errs
}

// DeleteMany deletes each id; rejects batches over 1000 before any
// work begins.
func (p *Provider) DeleteMany(ctx context.Context, typeName string, ids []string) ([]bool, []BatchError) {
	if err := checkBatchSize(len(ids)); err != nil {
		return nil, []BatchError{{Index: -1, Err: err}}
	}
	results := make([]bool, len(ids))
	var errs []BatchError
	for i, id := range ids {
		ok, err := p.Delete(ctx, typeName, id)
		if err != nil {
			errs = append(errs, BatchError{Index: i, Err: err})
			continue
		}
		results[i] = ok
	}
	return results, errs
}

// PerformOp is one item of a performMany mixed batch.
type PerformOp struct {
	Kind string // "create" | "update" | "delete"
	Type string
	ID   string
	Data map[string]any
}

// PerformResult is the outcome of one PerformOp.
type PerformResult struct {
	Record  map[string]any
	Deleted bool
	Err     error
}

// PerformMany runs a mixed batch of create/update/delete operations
// in order; rejects batches over 1000 before any work begins.
func (p *Provider) PerformMany(ctx context.Context, ops []PerformOp) ([]PerformResult, error) {
	if err := checkBatchSize(len(ops)); err != nil {
		return nil, err
	}
	out := make([]PerformResult, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case "create":
			rec, err := p.Create(ctx, op.Type, op.ID, op.Data)
			out[i] = PerformResult{Record: rec, Err: err}
		case "update":
			rec, err := p.Update(ctx, op.Type, op.ID, op.Data)
			out[i] = PerformResult{Record: rec, Err: err}
		case "delete":
			ok, err := p.Delete(ctx, op.Type, op.ID)
			out[i] = PerformResult{Deleted: ok, Err: err}
		default:
			out[i] = PerformResult{Err: schema.New(schema.KindValidation, "unknown performMany op: "+op.Kind)}
		}
	}
	return out, nil
}
