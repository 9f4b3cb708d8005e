// Package auth holds the permission catalog, the role map and the caller
// identity the HTTP gate places in the request context.
package auth

import "slices"

// Permission codes.
const (
	AccountsViewOwn      = "accounts:view:own"
	AccountsViewAny      = "accounts:view:any"
	AccountsCreateOwn    = "accounts:create:own"
	AccountsCreateAny    = "accounts:create:any"
	AccountsTopUp        = "accounts:topup"
	AccountsFreezeAny    = "accounts:freeze:any"
	AccountsDeposit      = "accounts:deposit"
	AccountsWithdraw     = "accounts:withdraw"
	TransferInternal     = "transfer:internal"
	TransferExternal     = "transfer:external"
	TransactionsViewOwn  = "transactions:view:own"
	TransactionsViewAny  = "transactions:view:any"
	TransferInternalAny  = "transfer:internal:any"
)

// Role names.
const (
	RoleCustomer = "customer"
	RoleSupport  = "support_agent"
	RoleAuditor  = "auditor"
	RoleAdmin    = "admin"
)

type PermissionDef struct {
	Code  string `json:"code"`
	Group string `json:"group"`
	Label string `json:"label"`
	// AdminOnly marks permissions no non-admin role is granted by default.
	AdminOnly bool `json:"admin_only"`
}

var catalog = []PermissionDef{
	{Code: AccountsViewOwn, Group: "accounts", Label: "View own accounts"},
	{Code: AccountsViewAny, Group: "accounts", Label: "View any account"},
	{Code: AccountsCreateOwn, Group: "accounts", Label: "Open an account for yourself"},
	{Code: AccountsCreateAny, Group: "accounts", Label: "Open an account for any user", AdminOnly: true},
	{Code: AccountsTopUp, Group: "accounts", Label: "Credit an account without a source", AdminOnly: true},
	{Code: AccountsFreezeAny, Group: "accounts", Label: "Freeze, unfreeze or close any account", AdminOnly: true},
	{Code: AccountsDeposit, Group: "accounts", Label: "Deposit into own account"},
	{Code: AccountsWithdraw, Group: "accounts", Label: "Withdraw from own account"},
	{Code: TransferInternal, Group: "transfers", Label: "Move money between own accounts"},
	{Code: TransferInternalAny, Group: "transfers", Label: "Internal transfer to any account id", AdminOnly: true},
	{Code: TransferExternal, Group: "transfers", Label: "Send money to another account number"},
	{Code: TransactionsViewOwn, Group: "transactions", Label: "View own transactions"},
	{Code: TransactionsViewAny, Group: "transactions", Label: "View all transactions"},
}

var roles = map[string][]string{
	RoleCustomer: {
		AccountsViewOwn, AccountsCreateOwn, AccountsDeposit, AccountsWithdraw,
		TransferInternal, TransferExternal, TransactionsViewOwn,
	},
	RoleSupport: {
		AccountsViewOwn, AccountsViewAny, TransactionsViewOwn, TransactionsViewAny,
	},
	RoleAuditor: {
		AccountsViewAny, TransactionsViewAny,
	},
}

// Catalog returns every known permission, optionally restricted to one group.
func Catalog(group string) []PermissionDef {
	if group == "" {
		return slices.Clone(catalog)
	}
	out := make([]PermissionDef, 0)
	for _, p := range catalog {
		if p.Group == group {
			out = append(out, p)
		}
	}
	return out
}

// Known reports whether code is in the catalog.
func Known(code string) bool {
	return slices.ContainsFunc(catalog, func(p PermissionDef) bool { return p.Code == code })
}

// PermissionsFor returns the permissions granted to role. Admin gets the whole catalog.
func PermissionsFor(role string) []string {
	if role == RoleAdmin {
		out := make([]string, len(catalog))
		for i, p := range catalog {
			out[i] = p.Code
		}
		return out
	}
	return slices.Clone(roles[role])
}

// Roles lists the role names in a stable order.
func Roles() []string {
	return []string{RoleCustomer, RoleSupport, RoleAuditor, RoleAdmin}
}
