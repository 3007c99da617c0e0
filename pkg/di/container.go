// Package di provides dependency injection container
package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ssargent/freyjabench/pkg/binding"
	"github.com/ssargent/freyjabench/pkg/config"
	"github.com/ssargent/freyjabench/pkg/logging"
	"github.com/ssargent/freyjabench/pkg/metrics"
)

// ClientFactory opens binding clients
type ClientFactory interface {
	OpenClient(cfg *config.Config, opts ...binding.Option) (*binding.Client, error)
}

// LoggerFactory builds loggers from configuration
type LoggerFactory interface {
	NewLogger(cfg config.Logging) (*zap.Logger, error)
}

// DefaultClientFactory opens clients with binding.Open
type DefaultClientFactory struct{}

// OpenClient opens the configured store
func (f *DefaultClientFactory) OpenClient(cfg *config.Config, opts ...binding.Option) (*binding.Client, error) {
	return binding.Open(cfg, opts...)
}

// DefaultLoggerFactory builds loggers with logging.New
type DefaultLoggerFactory struct{}

// NewLogger builds a logger
func (f *DefaultLoggerFactory) NewLogger(cfg config.Logging) (*zap.Logger, error) {
	return logging.New(cfg)
}

// Container holds all the dependencies for the application
type Container struct {
	clientFactory ClientFactory
	loggerFactory LoggerFactory
	registry      *prometheus.Registry
	metrics       *metrics.Metrics
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	registry := prometheus.NewRegistry()
	return &Container{
		clientFactory: &DefaultClientFactory{},
		loggerFactory: &DefaultLoggerFactory{},
		registry:      registry,
		metrics:       metrics.NewMetrics(registry),
	}
}

// GetClientFactory returns the client factory
func (c *Container) GetClientFactory() ClientFactory {
	return c.clientFactory
}

// GetLoggerFactory returns the logger factory
func (c *Container) GetLoggerFactory() LoggerFactory {
	return c.loggerFactory
}

// GetRegistry returns the registry metrics are collected on
func (c *Container) GetRegistry() *prometheus.Registry {
	return c.registry
}

// GetMetrics returns the process metrics
func (c *Container) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// SetClientFactory allows overriding the client factory (for testing)
func (c *Container) SetClientFactory(factory ClientFactory) {
	c.clientFactory = factory
}

// SetLoggerFactory allows overriding the logger factory (for testing)
func (c *Container) SetLoggerFactory(factory LoggerFactory) {
	c.loggerFactory = factory
}
