package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session variable names read by the row-level-security policies. The
// migrations in migrations/0002_rls.sql reference the same keys; changing
// one side without the other silently disables tenant filtering.
const (
	SessionVarTenantID   = "app.tenant_id"
	SessionVarSuperAdmin = "app.is_super_admin"
)

// ErrBindingFailure indicates the tenant session variables could not be
// applied. The enclosing transaction is rolled back; continuing with an
// unbound session would make every RLS policy see zero rows at best and is
// never safe to retry on the same transaction.
var ErrBindingFailure = errors.New("platform/db: tenant binding failed")

// TenantBinding carries the values bound into a transaction's session state.
type TenantBinding struct {
	TenantID   int64
	SuperAdmin bool
}

// BindTenant sets the tenant session variables on the given transaction.
// set_config with is_local=true scopes both values to the transaction, so a
// pooled connection returns to the pool clean regardless of commit/rollback.
func BindTenant(ctx context.Context, tx pgx.Tx, binding TenantBinding) error {
	tenantValue := ""
	if binding.TenantID > 0 {
		tenantValue = strconv.FormatInt(binding.TenantID, 10)
	}
	superValue := "false"
	if binding.SuperAdmin {
		superValue = "true"
	}
	_, err := tx.Exec(ctx,
		`SELECT set_config($1, $2, true), set_config($3, $4, true)`,
		SessionVarTenantID, tenantValue, SessionVarSuperAdmin, superValue,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBindingFailure, err)
	}
	return nil
}

// WithTenantTx executes fn inside a transaction whose session state carries
// the given tenant binding. The binding completes before fn runs, so every
// query fn issues on the transaction observes it. Binding failure aborts the
// transaction without invoking fn.
func WithTenantTx(ctx context.Context, pool *pgxpool.Pool, binding TenantBinding, fn func(pgx.Tx) error) error {
	return WithTx(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := BindTenant(ctx, tx, binding); err != nil {
			return err
		}
		return fn(tx)
	})
}
