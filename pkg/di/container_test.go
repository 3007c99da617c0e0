package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ssargent/freyjabench/pkg/binding"
	"github.com/ssargent/freyjabench/pkg/config"
	"github.com/ssargent/freyjabench/pkg/storage"
)

type memoryClientFactory struct {
	opened int
}

func (f *memoryClientFactory) OpenClient(_ *config.Config, opts ...binding.Option) (*binding.Client, error) {
	f.opened++
	return binding.New(storage.NewMemoryEngine(storage.Options{}), opts...), nil
}

type nopLoggerFactory struct{}

func (nopLoggerFactory) NewLogger(config.Logging) (*zap.Logger, error) {
	return zap.NewNop(), nil
}

func TestNewContainer(t *testing.T) {
	container := NewContainer()

	assert.IsType(t, &DefaultClientFactory{}, container.GetClientFactory())
	assert.IsType(t, &DefaultLoggerFactory{}, container.GetLoggerFactory())
	assert.NotNil(t, container.GetRegistry())
	assert.NotNil(t, container.GetMetrics())
}

func TestContainerOverrides(t *testing.T) {
	container := NewContainer()
	factory := &memoryClientFactory{}
	container.SetClientFactory(factory)
	container.SetLoggerFactory(nopLoggerFactory{})

	logger, err := container.GetLoggerFactory().NewLogger(config.Logging{})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	client, err := container.GetClientFactory().OpenClient(config.DefaultConfig(), binding.WithObserver(container.GetMetrics()))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, binding.StatusOK, client.DoInsert("usertable", "user1", map[string]string{"a": "1"}))
	assert.Equal(t, 1, factory.opened)

	families, err := container.GetRegistry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "freyjabench_operations_total")
}

func TestDefaultClientFactory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = storage.DriverMemory

	client, err := (&DefaultClientFactory{}).OpenClient(cfg)
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}
