package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/torosent/mqbench/internal/backend"
	"github.com/torosent/mqbench/internal/backend/amqpq"
	"github.com/torosent/mqbench/internal/backend/memqueue"
	"github.com/torosent/mqbench/internal/backend/natsq"
	"github.com/torosent/mqbench/internal/backend/posixmq"
	"github.com/torosent/mqbench/internal/backend/redisq"
	"github.com/torosent/mqbench/internal/config"
	"github.com/torosent/mqbench/internal/runner"
)

// NewBackendOpener returns the factory the runner calls at the start of the
// run to acquire the configured backend.
func NewBackendOpener(cfg *config.Config, logger *zap.Logger) (runner.OpenFunc, error) {
	logger = logger.With(zap.String("backend", string(cfg.Backend)))

	switch cfg.Backend {
	case config.BackendMemory, "":
		return func(context.Context) (backend.Backend, error) {
			return memqueue.Open(memqueue.Config{
				Capacity:       cfg.MaxInFlight,
				MaxMessageSize: cfg.MessageSize,
			})
		}, nil
	case config.BackendPOSIXMQ:
		return func(context.Context) (backend.Backend, error) {
			return posixmq.Open(posixmq.Config{
				Name:          cfg.POSIXMQ.Name,
				MaxMessages:   cfg.MaxInFlight,
				MessageSize:   cfg.MessageSize,
				NonBlocking:   cfg.NonBlocking,
				UnlinkAtStart: cfg.POSIXMQ.UnlinkAtStart,
				UnlinkAtEnd:   cfg.POSIXMQ.UnlinkAtEnd,
			}, logger)
		}, nil
	case config.BackendRedis:
		return func(ctx context.Context) (backend.Backend, error) {
			return redisq.Open(ctx, redisq.Config{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Key:      cfg.Redis.Key,
				Capacity: cfg.MaxInFlight,
			}, logger)
		}, nil
	case config.BackendNATS:
		return func(ctx context.Context) (backend.Backend, error) {
			return natsq.Open(ctx, natsq.Config{
				URL:         cfg.NATS.URL,
				Subject:     cfg.NATS.Subject,
				QueueGroup:  cfg.NATS.QueueGroup,
				Capacity:    cfg.MaxInFlight,
				MessageSize: cfg.MessageSize,
			}, logger)
		}, nil
	case config.BackendAMQP:
		return func(ctx context.Context) (backend.Backend, error) {
			return amqpq.Open(ctx, amqpq.Config{
				URL:      cfg.AMQP.URL,
				Queue:    cfg.AMQP.Queue,
				Capacity: cfg.MaxInFlight,
			}, logger)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// applyBackendLimits clamps the message size to what the backend can carry
// so producers do not fail every send.
func applyBackendLimits(cfg *config.Config, logger *zap.Logger) {
	if cfg.Backend != config.BackendPOSIXMQ {
		return
	}
	_, msgSizeMax := posixmq.SystemLimits()
	if msgSizeMax > 0 && cfg.MessageSize > msgSizeMax {
		logger.Warn("message size exceeds system msgsize_max, capping",
			zap.Int("requested", cfg.MessageSize), zap.Int("msgsize_max", msgSizeMax))
		cfg.MessageSize = msgSizeMax
	}
}
