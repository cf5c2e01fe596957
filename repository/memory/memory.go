// Package memory provides in-process repositories used for tests and the
// "memory" storage driver.
package memory

import (
	"github.com/fastygo/ledger/repository"
)

var (
	_ repository.EventStore       = (*EventStore)(nil)
	_ repository.AccountReadModel = (*AccountReadModel)(nil)
)
