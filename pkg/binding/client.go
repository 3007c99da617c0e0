// Package binding implements the benchmark operations (read, insert, update,
// delete and scan) over an embedded key-value engine.
//
// A record addressed by (table, key) is stored as one JSON document under a
// single storage key. Every operation is one atomic engine call; the client
// keeps no state between calls and adds no locking, retries or timeouts.
package binding

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ssargent/freyjabench/pkg/codec"
	"github.com/ssargent/freyjabench/pkg/config"
	"github.com/ssargent/freyjabench/pkg/keys"
	"github.com/ssargent/freyjabench/pkg/storage"
)

// Operation names passed to an Observer
const (
	OpRead   = "read"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpScan   = "scan"
)

// Observer receives one call per finished operation
type Observer interface {
	ObserveOperation(op, status string, d time.Duration)
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger failures are reported to
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithObserver registers an operation observer
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithEncoder overrides the key encoder
func WithEncoder(e keys.Encoder) Option {
	return func(c *Client) {
		c.encoder = e
	}
}

// WithFilterMode sets how Read applies its requested field list
func WithFilterMode(mode codec.FilterMode) Option {
	return func(c *Client) {
		c.codec = &codec.RecordCodec{Filter: mode}
	}
}

// Client runs operations against one shared engine. It is safe for
// concurrent use.
type Client struct {
	engine   storage.Engine
	encoder  keys.Encoder
	codec    *codec.RecordCodec
	log      *zap.SugaredLogger
	observer Observer

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// New wraps an already open engine. Closing the client closes the engine.
func New(engine storage.Engine, opts ...Option) *Client {
	c := &Client{
		engine:  engine,
		encoder: keys.Default,
		codec:   codec.NewRecordCodec(),
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens the configured engine and returns a client over it. Nothing is
// left open when Open fails.
func Open(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if len(cfg.Binding.Separator) != 1 || cfg.Binding.Separator == `\` {
		return nil, fmt.Errorf("invalid key separator %q", cfg.Binding.Separator)
	}
	mode, err := codec.ParseFilterMode(cfg.Binding.FieldFilter)
	if err != nil {
		return nil, err
	}

	defaults := []Option{
		WithEncoder(keys.NewEncoder(cfg.Binding.Separator[0])),
		WithFilterMode(mode),
	}
	c := New(nil, append(defaults, opts...)...)

	engine, err := storage.Open(cfg.Storage.Driver, storage.Options{
		Path:    cfg.Storage.Path,
		MaxSize: cfg.Storage.MapSize,
		Sync:    cfg.Storage.Sync,
		Logger:  c.log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	c.engine = engine

	c.log.Infow("store opened",
		"driver", cfg.Storage.Driver,
		"path", cfg.Storage.Path,
		"map_size", cfg.Storage.MapSize,
		"field_filter", mode.String())
	return c, nil
}

// With opens a client, hands it to fn and closes it on every exit path.
func With(cfg *config.Config, fn func(*Client) error, opts ...Option) (err error) {
	c, err := Open(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(c)
}

// Engine returns the underlying engine
func (c *Client) Engine() storage.Engine {
	return c.engine
}

// Encoder returns the key encoder in use
func (c *Client) Encoder() keys.Encoder {
	return c.encoder
}

// Close releases the engine. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.engine != nil {
			c.closeErr = c.engine.Close()
		}
	})
	return c.closeErr
}

// Read fetches the record stored under (table, key) and decodes it with the
// requested field list.
func (c *Client) Read(table, key string, fields []string) (map[string]string, error) {
	start := time.Now()
	storageKey := c.encoder.Encode(table, key)

	result, err := c.read(storageKey, fields)
	c.finish(OpRead, storageKey, start, err)
	return result, err
}

func (c *Client) read(storageKey []byte, fields []string) (map[string]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	payload, err := c.engine.Get(storageKey)
	if err != nil {
		return nil, storeError(err)
	}

	return c.codec.Decode(payload, fields)
}

// Insert writes values under (table, key), replacing any existing record
func (c *Client) Insert(table, key string, values map[string]string) error {
	return c.put(OpInsert, table, key, values)
}

// Update is identical to Insert: the whole record is overwritten
func (c *Client) Update(table, key string, values map[string]string) error {
	return c.put(OpUpdate, table, key, values)
}

func (c *Client) put(op, table, key string, values map[string]string) error {
	start := time.Now()
	storageKey := c.encoder.Encode(table, key)

	err := c.checkOpen()
	if err == nil {
		var payload []byte
		payload, err = c.codec.Encode(values)
		if err == nil {
			if putErr := c.engine.Put(storageKey, payload); putErr != nil {
				err = storeError(putErr)
			}
		}
	}

	c.finish(op, storageKey, start, err)
	return err
}

// Delete removes (table, key). Deleting a missing record succeeds.
func (c *Client) Delete(table, key string) error {
	start := time.Now()
	storageKey := c.encoder.Encode(table, key)

	err := c.checkOpen()
	if err == nil {
		if delErr := c.engine.Delete(storageKey); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			err = storeError(delErr)
		}
	}

	c.finish(OpDelete, storageKey, start, err)
	return err
}

// Scan is not supported and never touches the store
func (c *Client) Scan(table, startKey string, count int, fields []string) ([]map[string]string, error) {
	start := time.Now()
	c.finish(OpScan, c.encoder.Encode(table, startKey), start, ErrNotImplemented)
	return nil, ErrNotImplemented
}

// DoRead runs Read and reports its status
func (c *Client) DoRead(table, key string, fields []string) (Status, map[string]string) {
	result, err := c.Read(table, key, fields)
	if err != nil {
		return StatusOf(err), nil
	}
	return StatusOK, result
}

// DoInsert runs Insert and reports its status
func (c *Client) DoInsert(table, key string, values map[string]string) Status {
	return StatusOf(c.Insert(table, key, values))
}

// DoUpdate runs Update and reports its status
func (c *Client) DoUpdate(table, key string, values map[string]string) Status {
	return StatusOf(c.Update(table, key, values))
}

// DoDelete runs Delete and reports its status
func (c *Client) DoDelete(table, key string) Status {
	return StatusOf(c.Delete(table, key))
}

// DoScan runs Scan and reports its status
func (c *Client) DoScan(table, startKey string, count int, fields []string) (Status, []map[string]string) {
	result, err := c.Scan(table, startKey, count, fields)
	return StatusOf(err), result
}

func (c *Client) checkOpen() error {
	if c.closed.Load() || c.engine == nil {
		return fmt.Errorf("%w: %w", ErrStoreFailure, storage.ErrClosed)
	}
	return nil
}

func (c *Client) finish(op string, storageKey []byte, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil && !errors.Is(err, ErrNotImplemented) {
		c.log.Debugw("operation failed",
			"op", op,
			"key", string(storageKey),
			"kind", Kind(err),
			"error", err)
	}
	if c.observer != nil {
		c.observer.ObserveOperation(op, StatusOf(err).String(), elapsed)
	}
}

// storeError keeps ErrNotFound visible and wraps everything else as a store
// failure
func storeError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
