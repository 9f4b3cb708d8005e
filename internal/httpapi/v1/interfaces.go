package v1

import (
	"context"

	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/query"
	"github.com/tinoosan/bankledger/internal/service/transfer"
)

// Store is everything the API needs from a backing store: the unit of work for
// the engine and the account service, plus the read side for queries.
// Both the memory and the Postgres stores satisfy it.
type Store interface {
	transfer.Store
	account.Store
	query.Reader
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
