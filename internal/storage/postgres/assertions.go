package postgres

import (
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/query"
	"github.com/tinoosan/bankledger/internal/service/transfer"
)

var (
	_ transfer.Store = (*Store)(nil)
	_ account.Store  = (*Store)(nil)
	_ query.Reader   = (*Store)(nil)
)
