// Package engine implements the two-tier storage engine behind the blob
// store. Reads try the in-memory tier first and fall back to the durable
// store, promoting what they find. Writes publish durably first and only then
// populate memory, so memory never holds a record that is not on disk.
//
// Records are immutable: once a key exists in either tier, every further
// write to it fails with ErrConflict.
//
//	e, err := engine.New(&cfg)
//	err = e.Put(ctx, "abc", []byte("hello"))
//	res, err := e.Get(ctx, "abc") // res.Source == engine.SourceMemory
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/jmgilman/go/errors"
	"golang.org/x/sync/singleflight"

	"github.com/tailored-agentic-units/blobstore/memory"
	"github.com/tailored-agentic-units/blobstore/observability"
	"github.com/tailored-agentic-units/blobstore/store"
)

// Source identifies which tier served a read.
type Source string

const (
	SourceMemory Source = "memory"
	SourceDisk   Source = "disk"
)

// Result is a successful read.
type Result struct {
	Payload []byte
	Source  Source
}

// Option configures an Engine. Subsystems supplied through options replace
// the ones New would otherwise build from configuration.
type Option func(*Engine)

// WithMemory overrides the config-created memory tier.
func WithMemory(m memory.Tier) Option {
	return func(e *Engine) { e.memory = m }
}

// WithStore overrides the config-created durable store.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine orchestrates the memory tier and the durable store.
type Engine struct {
	memory     memory.Tier
	store      store.Store
	observer   observability.Observer
	reads      singleflight.Group
	maxPayload int64
}

// New creates an Engine from configuration. The memory tier and the durable
// store are only built from cfg when no option supplies them, so tests can
// run without touching the local filesystem.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		observer:   observability.NewSlogObserver(slog.Default()),
		maxPayload: cfg.MaxPayloadBytes,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = memory.NewLRU(&cfg.Memory)
	}
	if e.store == nil {
		s, err := store.New(&cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		e.store = s
	}

	return e, nil
}

// MaxPayloadBytes returns the largest payload accepted by writes. Zero or
// less means writes are unbounded.
func (e *Engine) MaxPayloadBytes() int64 {
	return e.maxPayload
}

// Get returns the record stored under key. A memory hit is served as is; a
// memory miss reads the durable store and promotes the payload into memory.
// Concurrent disk reads of one key share a single read.
func (e *Engine) Get(ctx context.Context, key string) (*Result, error) {
	if payload, ok := e.memory.Get(key); ok {
		e.emit(ctx, EventGetHit, observability.LevelVerbose, "engine.Get", map[string]any{
			"key":   key,
			"bytes": len(payload),
		})
		return &Result{Payload: payload, Source: SourceMemory}, nil
	}

	payload, err := e.readThrough(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			e.emit(ctx, EventGetMiss, observability.LevelVerbose, "engine.Get", map[string]any{"key": key})
			return nil, errors.Wrapf(ErrNotFound, errors.CodeNotFound, "Record with hash '%s' not found", key)
		}
		return nil, e.failure(ctx, "engine.Get", key, err, "Unable to read record with hash '%s'")
	}

	e.emit(ctx, EventGetPromote, observability.LevelVerbose, "engine.Get", map[string]any{
		"key":   key,
		"bytes": len(payload),
	})
	return &Result{Payload: payload, Source: SourceDisk}, nil
}

// Put stores payload under key. It fails with ErrConflict when key exists in
// either tier, without writing anything, and with ErrIOFailure when the
// durable publish fails, leaving memory untouched.
func (e *Engine) Put(ctx context.Context, key string, payload []byte) error {
	if e.maxPayload > 0 && int64(len(payload)) > e.maxPayload {
		return e.tooLarge(key)
	}

	if err := e.ensureAbsent(ctx, key); err != nil {
		return err
	}

	if err := e.store.WriteAtomic(ctx, key, payload); err != nil {
		if errors.Is(err, store.ErrKeyExists) {
			return e.conflict(ctx, key)
		}
		return e.failure(ctx, "engine.Put", key, err, "Unable to save record with hash '%s'")
	}

	e.memory.Set(key, payload)

	e.emit(ctx, EventPutSaved, observability.LevelInfo, "engine.Put", map[string]any{
		"key":   key,
		"bytes": len(payload),
	})
	return nil
}

// PutStream stores the contents of r under key. The conflict check runs
// before r is read, so a duplicate upload is rejected without consuming the
// body. The body is assembled into one buffer of at most MaxPayloadBytes.
func (e *Engine) PutStream(ctx context.Context, key string, r io.Reader) error {
	if err := e.ensureAbsent(ctx, key); err != nil {
		return err
	}

	payload, err := e.readBody(r)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return e.tooLarge(key)
		}
		return e.failure(ctx, "engine.PutStream", key, err, "Unable to save record with hash '%s'")
	}
	if err := ctx.Err(); err != nil {
		return e.failure(ctx, "engine.PutStream", key, err, "Unable to save record with hash '%s'")
	}

	return e.Put(ctx, key, payload)
}

func (e *Engine) readBody(r io.Reader) ([]byte, error) {
	if e.maxPayload <= 0 {
		return io.ReadAll(r)
	}

	payload, err := io.ReadAll(io.LimitReader(r, e.maxPayload+1))
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) > e.maxPayload {
		return nil, ErrTooLarge
	}
	return payload, nil
}

// readThrough loads key from the durable store and promotes it. Callers that
// join an in-flight read get their own copy of the payload. If the read was
// abandoned because its leader's context ended, a caller whose context is
// still live reads again on its own.
func (e *Engine) readThrough(ctx context.Context, key string) ([]byte, error) {
	ch := e.reads.DoChan(key, func() (any, error) {
		return e.load(ctx, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if isContextErr(res.Err) && ctx.Err() == nil {
				return e.load(ctx, key)
			}
			return nil, res.Err
		}
		payload := res.Val.([]byte)
		if res.Shared {
			payload = slices.Clone(payload)
		}
		return payload, nil
	}
}

func (e *Engine) load(ctx context.Context, key string) ([]byte, error) {
	payload, err := e.store.ReadAll(ctx, key)
	if err != nil {
		return nil, err
	}
	e.memory.Set(key, payload)
	return payload, nil
}

// ensureAbsent returns ErrConflict when key is in memory or on disk.
func (e *Engine) ensureAbsent(ctx context.Context, key string) error {
	if _, ok := e.memory.Get(key); ok {
		return e.conflict(ctx, key)
	}

	exists, err := e.store.Exists(ctx, key)
	if err != nil {
		return e.failure(ctx, "engine.Put", key, err, "Unable to save record with hash '%s'")
	}
	if exists {
		return e.conflict(ctx, key)
	}
	return nil
}

func (e *Engine) conflict(ctx context.Context, key string) error {
	e.emit(ctx, EventPutConflict, observability.LevelInfo, "engine.Put", map[string]any{"key": key})
	return errors.Wrapf(ErrConflict, errors.CodeConflict, "Record with hash '%s' already exists", key)
}

func (e *Engine) tooLarge(key string) error {
	return errors.Wrapf(ErrTooLarge, errors.CodeInvalidInput, "Record with hash '%s' exceeds %d bytes", key, e.maxPayload)
}

// failure reports cause as ErrIOFailure. The cause stays in the chain so
// callers can still match context.Canceled and friends.
// failure wraps cause as ErrIOFailure. A cause that is only the caller's
// context ending is not a storage fault and emits no EventError.
func (e *Engine) failure(ctx context.Context, source, key string, cause error, format string) error {
	if !isContextErr(cause) {
		e.emit(ctx, EventError, observability.LevelError, source, map[string]any{
			"key":   key,
			"error": cause.Error(),
		})
	}
	return errors.Wrapf(fmt.Errorf("%w: %w", ErrIOFailure, cause), errors.CodeInternal, format, key)
}

func (e *Engine) emit(ctx context.Context, t observability.EventType, level observability.Level, source string, data map[string]any) {
	e.observer.OnEvent(ctx, observability.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
