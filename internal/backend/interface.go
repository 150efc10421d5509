// Package backend selects and builds the ledger store and the optional event
// publisher from configuration.
package backend

import (
	"context"
	"slices"

	"pennywise/internal/amqp"
	"pennywise/internal/ledger"
)

// CleanupFunc releases the resources of a built backend.
type CleanupFunc func() error

// BackendResult holds the built store and, when AMQP is configured and
// reachable, the publisher. Publisher is nil otherwise.
type BackendResult struct {
	Store     ledger.Store
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	return slices.Contains(GetBackendTypes(), bt)
}
