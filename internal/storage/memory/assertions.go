package memory

import (
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/query"
	"github.com/tinoosan/bankledger/internal/service/transfer"
	"github.com/tinoosan/bankledger/internal/storage"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ storage.Beginner          = (*Store)(nil)
	_ storage.AccountReader     = (*Store)(nil)
	_ storage.TransactionReader = (*Store)(nil)
	_ storage.AccountCreator    = (*Store)(nil)

	// Service layer dependencies
	_ transfer.Store = (*Store)(nil)
	_ account.Store  = (*Store)(nil)
	_ query.Reader   = (*Store)(nil)
)
