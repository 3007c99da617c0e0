package binding

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/freyjabench/pkg/codec"
	"github.com/ssargent/freyjabench/pkg/config"
	"github.com/ssargent/freyjabench/pkg/keys"
	"github.com/ssargent/freyjabench/pkg/storage"
)

// countingEngine records every call that reaches the store
type countingEngine struct {
	storage.Engine
	calls atomic.Int64
}

func (e *countingEngine) Get(key []byte) ([]byte, error) {
	e.calls.Add(1)
	return e.Engine.Get(key)
}

func (e *countingEngine) Put(key, value []byte) error {
	e.calls.Add(1)
	return e.Engine.Put(key, value)
}

func (e *countingEngine) Delete(key []byte) error {
	e.calls.Add(1)
	return e.Engine.Delete(key)
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []string
}

func (o *recordingObserver) ObserveOperation(op, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, op+":"+status)
}

func newMemoryClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c := New(storage.NewMemoryEngine(storage.Options{}), opts...)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestEndToEndScenario(t *testing.T) {
	c := newMemoryClient(t)

	status := c.DoInsert("usertable", "user1", map[string]string{"f1": "v1", "f2": "v2"})
	assert.Equal(t, StatusOK, status)

	status, result := c.DoRead("usertable", "user1", nil)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, map[string]string{"f1": "v1", "f2": "v2"}, result)

	assert.Equal(t, StatusOK, c.DoDelete("usertable", "user1"))

	status, result = c.DoRead("usertable", "user1", nil)
	assert.Equal(t, StatusError, status)
	assert.Nil(t, result)
}

func TestStoredLayout(t *testing.T) {
	engine := storage.NewMemoryEngine(storage.Options{})
	c := New(engine)
	defer c.Close()

	require.NoError(t, c.Insert("usertable", "user1", map[string]string{"f1": "v1"}))

	payload, err := engine.Get([]byte("usertable-user1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"f1":"v1"}`, string(payload))
}

func TestOverwrite(t *testing.T) {
	c := newMemoryClient(t)

	require.NoError(t, c.Insert("usertable", "user1", map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, c.Insert("usertable", "user1", map[string]string{"c": "3"}))

	result, err := c.Read("usertable", "user1", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c": "3"}, result)

	require.NoError(t, c.Update("usertable", "user1", map[string]string{"d": "4"}))
	result, err = c.Read("usertable", "user1", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"d": "4"}, result)
}

func TestDeleteMissingKey(t *testing.T) {
	engine := storage.NewMemoryEngine(storage.Options{})
	c := New(engine)
	defer c.Close()

	require.NoError(t, c.Insert("usertable", "kept", map[string]string{"a": "1"}))
	before := engine.Stats()

	assert.Equal(t, StatusOK, c.DoDelete("usertable", "missing"))
	assert.Equal(t, before, engine.Stats())
}

func TestReadFieldFilter(t *testing.T) {
	stored := map[string]string{"a": "1", "b": "2", "c": "3"}

	t.Run("exclude by default", func(t *testing.T) {
		c := newMemoryClient(t)
		require.NoError(t, c.Insert("usertable", "user1", stored))

		result, err := c.Read("usertable", "user1", []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"b": "2", "c": "3"}, result)
	})

	t.Run("project when configured", func(t *testing.T) {
		c := newMemoryClient(t, WithFilterMode(codec.FilterProject))
		require.NoError(t, c.Insert("usertable", "user1", stored))

		result, err := c.Read("usertable", "user1", []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1"}, result)
	})
}

func TestScanNeverTouchesStore(t *testing.T) {
	engine := &countingEngine{Engine: storage.NewMemoryEngine(storage.Options{})}
	c := New(engine)
	defer c.Close()

	result, err := c.Scan("usertable", "user1", 10, []string{"a"})
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Nil(t, result)

	status, _ := c.DoScan("usertable", "", 0, nil)
	assert.Equal(t, StatusNotImplemented, status)
	assert.Equal(t, int64(0), engine.calls.Load())
}

func TestReadErrorKinds(t *testing.T) {
	engine := storage.NewMemoryEngine(storage.Options{})
	c := New(engine)
	defer c.Close()

	_, err := c.Read("usertable", "missing", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, KindNotFound, Kind(err))
	assert.Equal(t, StatusError, StatusOf(err))

	require.NoError(t, engine.Put(keys.Encode("usertable", "corrupt"), []byte("not json")))
	_, err = c.Read("usertable", "corrupt", nil)
	assert.ErrorIs(t, err, codec.ErrMalformedPayload)
	assert.Equal(t, KindMalformedPayload, Kind(err))
	assert.Equal(t, StatusError, StatusOf(err))
}

func TestInsertInvalidUTF8(t *testing.T) {
	engine := storage.NewMemoryEngine(storage.Options{})
	c := New(engine)
	defer c.Close()

	err := c.Insert("usertable", "user1", map[string]string{"f\xff": "v\xfe"})
	assert.ErrorIs(t, err, codec.ErrUnencodable)
	assert.Equal(t, KindUnencodable, Kind(err))
	assert.Equal(t, StatusError, c.DoUpdate("usertable", "user1", map[string]string{"f1": "v\xfe"}))

	// Nothing was written
	assert.Equal(t, 0, engine.Stats().Keys)
}

func TestStoreFailuresBecomeErrors(t *testing.T) {
	t.Run("map full", func(t *testing.T) {
		c := New(storage.NewMemoryEngine(storage.Options{MaxSize: 32}))
		defer c.Close()

		err := c.Insert("usertable", "user1", map[string]string{"field0": "a value too large for the map"})
		assert.ErrorIs(t, err, ErrStoreFailure)
		assert.ErrorIs(t, err, storage.ErrMapFull)
		assert.Equal(t, StatusError, c.DoUpdate("usertable", "user1", map[string]string{"field0": "still too large to fit"}))
	})

	t.Run("closed client", func(t *testing.T) {
		c := New(storage.NewMemoryEngine(storage.Options{}))
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())

		assert.Equal(t, StatusError, c.DoInsert("usertable", "user1", map[string]string{"a": "1"}))
		status, _ := c.DoRead("usertable", "user1", nil)
		assert.Equal(t, StatusError, status)
		assert.Equal(t, StatusError, c.DoDelete("usertable", "user1"))

		err := c.Delete("usertable", "user1")
		assert.ErrorIs(t, err, ErrStoreFailure)
		assert.Equal(t, KindStoreFailure, Kind(err))
	})
}

func TestObserver(t *testing.T) {
	observer := &recordingObserver{}
	c := newMemoryClient(t, WithObserver(observer))

	c.DoInsert("usertable", "user1", map[string]string{"a": "1"})
	c.DoRead("usertable", "missing", nil)
	c.DoScan("usertable", "user1", 1, nil)

	assert.Equal(t, []string{"insert:OK", "read:ERROR", "scan:NOT_IMPLEMENTED"}, observer.seen)
}

func TestOpenAndWith(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = storage.DriverLog
	cfg.Storage.Path = t.TempDir()

	err := With(cfg, func(c *Client) error {
		return c.Insert("usertable", "user1", map[string]string{"f1": "v1"})
	})
	require.NoError(t, err)

	// The first client released the store, so a second can reopen it
	err = With(cfg, func(c *Client) error {
		result, err := c.Read("usertable", "user1", nil)
		if err != nil {
			return err
		}
		assert.Equal(t, map[string]string{"f1": "v1"}, result)
		return nil
	})
	require.NoError(t, err)

	t.Run("callback error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		err := With(cfg, func(*Client) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("bad driver", func(t *testing.T) {
		bad := config.DefaultConfig()
		bad.Storage.Driver = "lmdb"
		_, err := Open(bad)
		assert.ErrorIs(t, err, ErrStoreFailure)
		assert.ErrorIs(t, err, storage.ErrUnknownDriver)
	})

	t.Run("bad separator", func(t *testing.T) {
		bad := config.DefaultConfig()
		bad.Binding.Separator = `\`
		_, err := Open(bad)
		assert.Error(t, err)
	})

	t.Run("custom separator", func(t *testing.T) {
		custom := config.DefaultConfig()
		custom.Storage.Driver = storage.DriverMemory
		custom.Binding.Separator = ":"

		c, err := Open(custom)
		require.NoError(t, err)
		defer c.Close()

		require.NoError(t, c.Insert("usertable", "user1", map[string]string{"a": "1"}))
		_, err = c.Engine().Get([]byte("usertable:user1"))
		assert.NoError(t, err)
	})
}

func TestConcurrentOperations(t *testing.T) {
	c := newMemoryClient(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := string(rune('a' + w))
			for i := 0; i < 100; i++ {
				assert.Equal(t, StatusOK, c.DoInsert("usertable", key, map[string]string{"n": key}))
				status, result := c.DoRead("usertable", key, nil)
				assert.Equal(t, StatusOK, status)
				assert.Equal(t, key, result["n"])
			}
		}(w)
	}
	wg.Wait()
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "ERROR", StatusError.String())
	assert.Equal(t, "NOT_IMPLEMENTED", StatusNotImplemented.String())
	assert.Equal(t, KindNone, Kind(nil))
	assert.Equal(t, KindUnknown, Kind(errors.New("other")))
}
