package config

import (
	"context"
	"reflect"
	"strings"

	"github.com/mmdatafocus/jewelry_pos/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const tenantColumn = "business_id"

// TenantGuardPlugin scopes reads, updates and deletes to the request's
// business_id, and stamps business_id on inserts that left it blank.
//
// Raw SQL is not scoped; callers must filter business_id themselves.
// Admin and ops contexts opt out through appctx flags.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("tenant_guard:query", scopeToTenant); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("tenant_guard:row", scopeToTenant); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenant_guard:update", scopeToTenant); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("tenant_guard:delete", scopeToTenant); err != nil {
		return err
	}
	return cb.Create().Before("gorm:create").Register("tenant_guard:create", stampTenant)
}

func tenantField(db *gorm.DB) *schema.Field {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return nil
	}
	return db.Statement.Schema.LookUpField(tenantColumn)
}

func tenantFromStatement(db *gorm.DB) (string, bool) {
	ctx := db.Statement.Context
	if ctx == nil || tenantScopeDisabled(ctx) {
		return "", false
	}
	businessId, ok := appctx.Value[string](ctx, appctx.ContextKeyBusinessId)
	return businessId, ok && businessId != ""
}

func scopeToTenant(db *gorm.DB) {
	field := tenantField(db)
	if field == nil {
		return
	}
	businessId, ok := tenantFromStatement(db)
	if !ok {
		return
	}
	if where, ok := db.Statement.Clauses["WHERE"].Expression.(clause.Where); ok && mentionsTenant(where.Exprs) {
		return
	}
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: db.Statement.Table, Name: field.DBName}, Value: businessId},
	}})
}

func stampTenant(db *gorm.DB) {
	field := tenantField(db)
	if field == nil {
		return
	}
	businessId, ok := tenantFromStatement(db)
	if !ok {
		return
	}
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Invalid:
		return
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if _, zero := field.ValueOf(db.Statement.Context, rv.Index(i)); zero {
				_ = field.Set(db.Statement.Context, rv.Index(i), businessId)
			}
		}
	default:
		if _, zero := field.ValueOf(db.Statement.Context, rv); zero {
			_ = field.Set(db.Statement.Context, rv, businessId)
		}
	}
}

func tenantScopeDisabled(ctx context.Context) bool {
	if skip, _ := appctx.Value[bool](ctx, appctx.ContextKeySkipTenantScope); skip {
		return true
	}
	admin, _ := appctx.Value[bool](ctx, appctx.ContextKeyIsAdmin)
	return admin
}

func mentionsTenant(exprs []clause.Expression) bool {
	for _, e := range exprs {
		switch v := e.(type) {
		case clause.Eq:
			if isTenantColumn(v.Column) {
				return true
			}
		case clause.IN:
			if isTenantColumn(v.Column) {
				return true
			}
		case clause.AndConditions:
			if mentionsTenant(v.Exprs) {
				return true
			}
		case clause.OrConditions:
			if mentionsTenant(v.Exprs) {
				return true
			}
		case clause.Expr:
			if strings.Contains(strings.ToLower(v.SQL), tenantColumn) {
				return true
			}
		case clause.NamedExpr:
			if strings.Contains(strings.ToLower(v.SQL), tenantColumn) {
				return true
			}
		}
	}
	return false
}

func isTenantColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	}
	return false
}
