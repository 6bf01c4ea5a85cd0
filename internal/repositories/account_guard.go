package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"clubhouse/internal/models/db_models"
	"clubhouse/pkg/utils"
)

const accountGuardName = "club:account_guard"

const accountsTable = "accounts"

// AuditActor identifies who attempted a write; carried on the context.
type AuditActor struct {
	ModifiedBy string
	IPAddress  string
	UserAgent  string
}

type auditActorKey struct{}

func WithAuditActor(ctx context.Context, actor AuditActor) context.Context {
	return context.WithValue(ctx, auditActorKey{}, actor)
}

func auditActorFrom(ctx context.Context) AuditActor {
	if ctx == nil {
		return AuditActor{ModifiedBy: "system"}
	}
	if a, ok := ctx.Value(auditActorKey{}).(AuditActor); ok {
		return a
	}
	return AuditActor{ModifiedBy: "system"}
}

// AccountGuard is a gorm plugin enforcing the account integrity rules on every write path:
// the waiver is write-once after acceptance and the founder account type can only be set at
// creation for the configured username, never changed afterwards. It covers Save, Updates
// with a struct or a map, and update-by-query with arbitrary WHERE clauses.
type AccountGuard struct {
	founderUsername string
	log             *zap.Logger

	root        *gorm.DB
	schemaCache sync.Map
}

func NewAccountGuard(founderUsername string, log *zap.Logger) *AccountGuard {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountGuard{
		founderUsername: strings.ToLower(strings.TrimSpace(founderUsername)),
		log:             log,
	}
}

func (g *AccountGuard) Name() string { return accountGuardName }

func (g *AccountGuard) Initialize(db *gorm.DB) error {
	g.root = db
	if err := db.Callback().Create().Before("gorm:create").Register(accountGuardName+":create", g.beforeCreate); err != nil {
		return err
	}
	return db.Callback().Update().Before("gorm:update").Register(accountGuardName+":update", g.beforeUpdate)
}

// UseAccountGuard registers the guard once; re-registration is a no-op.
func UseAccountGuard(db *gorm.DB, guard *AccountGuard) error {
	if _, ok := db.Config.Plugins[accountGuardName]; ok {
		return nil
	}
	if err := db.Use(guard); err != nil && !errors.Is(err, gorm.ErrRegistered) {
		return err
	}
	return nil
}

func (g *AccountGuard) beforeCreate(db *gorm.DB) {
	if db.Error != nil || !g.isAccounts(db) {
		return
	}

	check := func(acc *db_models.Account) {
		if acc.AccountType != db_models.AccountTypeFounder {
			return
		}
		if g.founderUsername == "" || strings.ToLower(acc.Username) != g.founderUsername {
			g.log.Warn("rejected founder assignment on create", zap.String("username", acc.Username))
			_ = db.AddError(fmt.Errorf("%w: %s is not the designated founder", utils.ErrFounderImmutable, acc.Username))
		}
	}

	switch v := db.Statement.Dest.(type) {
	case *db_models.Account:
		check(v)
	case []db_models.Account:
		for i := range v {
			check(&v[i])
		}
	case []*db_models.Account:
		for _, a := range v {
			check(a)
		}
	}
}

// accountWrite describes what an update statement is about to change.
type accountWrite struct {
	// full is set for Save-style writes, where every column is written from snapshot.
	full     bool
	snapshot *db_models.Account

	waiverCols  map[string]interface{}
	accountType *db_models.AccountType
}

func (w *accountWrite) touchesGuardedFields() bool {
	return w.full || len(w.waiverCols) > 0 || w.accountType != nil
}

func (g *AccountGuard) beforeUpdate(db *gorm.DB) {
	if db.Error != nil || !g.isAccounts(db) {
		return
	}

	write := g.describeWrite(db)
	if !write.touchesGuardedFields() {
		return
	}

	rows, err := g.affectedRows(db)
	if err != nil {
		_ = db.AddError(fmt.Errorf("account guard: load affected rows: %w", err))
		return
	}

	if row, cols, ok := waiverViolation(write, rows); ok {
		g.recordRejectedWaiver(db.Statement.Context, row, cols, write)
		_ = db.AddError(fmt.Errorf("%w: account %s", utils.ErrWaiverImmutable, row.Username))
		return
	}

	if row, ok := founderViolation(write, rows); ok {
		g.log.Warn("rejected account type change",
			zap.String("account_id", row.ID.String()),
			zap.String("from", string(row.AccountType)),
			zap.String("to", string(newAccountType(write))))
		_ = db.AddError(fmt.Errorf("%w: account %s", utils.ErrFounderImmutable, row.Username))
	}
}

func (g *AccountGuard) isAccounts(db *gorm.DB) bool {
	if db.Statement.Schema != nil {
		return db.Statement.Schema.Table == accountsTable
	}
	return db.Statement.Table == accountsTable
}

func (g *AccountGuard) accountSchema(db *gorm.DB) *schema.Schema {
	if db.Statement.Schema != nil {
		return db.Statement.Schema
	}
	s, err := schema.Parse(&db_models.Account{}, &g.schemaCache, db.NamingStrategy)
	if err != nil {
		return nil
	}
	return s
}

func (g *AccountGuard) describeWrite(db *gorm.DB) *accountWrite {
	w := &accountWrite{waiverCols: map[string]interface{}{}}

	switch dest := db.Statement.Dest.(type) {
	case map[string]interface{}:
		sch := g.accountSchema(db)
		for key, val := range dest {
			col := key
			if sch != nil {
				if f := sch.LookUpField(key); f != nil {
					col = f.DBName
				}
			}
			col = strings.ToLower(col)
			switch {
			case strings.HasPrefix(col, "waiver"):
				w.waiverCols[col] = val
			case col == "account_type":
				t := db_models.AccountType(fmt.Sprint(val))
				w.accountType = &t
			}
		}
	default:
		acc, ok := accountFrom(dest)
		if !ok {
			return w
		}
		if isFullSave(db) && acc.ID != uuid.Nil {
			w.full = true
			w.snapshot = acc
			return w
		}
		// struct Updates only write non-zero fields
		if acc.Waiver.Accepted {
			w.waiverCols["waiver_accepted"] = true
		}
		if acc.Waiver.AcceptedAt != nil {
			w.waiverCols["waiver_accepted_at"] = *acc.Waiver.AcceptedAt
		}
		if acc.Waiver.Version != "" {
			w.waiverCols["waiver_version"] = acc.Waiver.Version
		}
		if acc.Waiver.IPAddress != "" {
			w.waiverCols["waiver_ip_address"] = acc.Waiver.IPAddress
		}
		if acc.Waiver.UserAgent != "" {
			w.waiverCols["waiver_user_agent"] = acc.Waiver.UserAgent
		}
		if acc.AccountType != "" {
			t := acc.AccountType
			w.accountType = &t
		}
	}
	return w
}

func isFullSave(db *gorm.DB) bool {
	for _, s := range db.Statement.Selects {
		if s == "*" {
			return true
		}
	}
	return false
}

func accountFrom(v interface{}) (*db_models.Account, bool) {
	switch a := v.(type) {
	case *db_models.Account:
		return a, a != nil
	case db_models.Account:
		return &a, true
	}
	return nil, false
}

// affectedRows loads the persisted rows the statement targets, on the statement's own connection.
func (g *AccountGuard) affectedRows(db *gorm.DB) ([]db_models.Account, error) {
	probe := db.Session(&gorm.Session{NewDB: true, SkipHooks: true}).
		WithContext(db.Statement.Context).
		Model(&db_models.Account{})

	scoped := false
	if id := targetID(db); id != uuid.Nil {
		probe = probe.Where("id = ?", id)
		scoped = true
	}
	if c, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && len(where.Exprs) > 0 {
			probe = probe.Clauses(clause.Where{Exprs: where.Exprs})
			scoped = true
		}
	}
	if !scoped && !db.AllowGlobalUpdate {
		// gorm rejects the statement itself with ErrMissingWhereClause
		return nil, nil
	}

	var rows []db_models.Account
	err := probe.Order("username").Find(&rows).Error
	return rows, err
}

func targetID(db *gorm.DB) uuid.UUID {
	if acc, ok := accountFrom(db.Statement.Model); ok && acc.ID != uuid.Nil {
		return acc.ID
	}
	if acc, ok := accountFrom(db.Statement.Dest); ok && acc.ID != uuid.Nil {
		return acc.ID
	}
	return uuid.Nil
}

func waiverViolation(w *accountWrite, rows []db_models.Account) (db_models.Account, []string, bool) {
	for _, row := range rows {
		if !row.Waiver.Accepted {
			continue
		}
		if w.full {
			if cols := waiverDiff(row.Waiver, w.snapshot.Waiver); len(cols) > 0 {
				return row, cols, true
			}
			continue
		}
		if len(w.waiverCols) > 0 {
			cols := make([]string, 0, len(w.waiverCols))
			for c := range w.waiverCols {
				cols = append(cols, c)
			}
			sort.Strings(cols)
			return row, cols, true
		}
	}
	return db_models.Account{}, nil, false
}

func waiverDiff(old, cur db_models.Waiver) []string {
	var cols []string
	if old.Accepted != cur.Accepted {
		cols = append(cols, "waiver_accepted")
	}
	if !sameInstant(old.AcceptedAt, cur.AcceptedAt) {
		cols = append(cols, "waiver_accepted_at")
	}
	if old.Version != cur.Version {
		cols = append(cols, "waiver_version")
	}
	if old.IPAddress != cur.IPAddress {
		cols = append(cols, "waiver_ip_address")
	}
	if old.UserAgent != cur.UserAgent {
		cols = append(cols, "waiver_user_agent")
	}
	return cols
}

// sameInstant tolerates the precision loss of a database round trip.
func sameInstant(a, b *time.Time) bool {
	return utils.WithinTolerance(a, b, time.Millisecond)
}

func founderViolation(w *accountWrite, rows []db_models.Account) (db_models.Account, bool) {
	if w.full {
		for _, row := range rows {
			if row.AccountType == w.snapshot.AccountType {
				continue
			}
			if row.AccountType == db_models.AccountTypeFounder || w.snapshot.AccountType == db_models.AccountTypeFounder {
				return row, true
			}
		}
		return db_models.Account{}, false
	}

	if w.accountType == nil {
		return db_models.Account{}, false
	}
	for _, row := range rows {
		if *w.accountType == db_models.AccountTypeFounder || row.AccountType == db_models.AccountTypeFounder {
			return row, true
		}
	}
	return db_models.Account{}, false
}

func newAccountType(w *accountWrite) db_models.AccountType {
	if w.full && w.snapshot != nil {
		return w.snapshot.AccountType
	}
	if w.accountType != nil {
		return *w.accountType
	}
	return ""
}

// recordRejectedWaiver writes exactly one audit row per rejected attempt. It uses the root
// connection so the entry survives a rollback of the caller's transaction.
func (g *AccountGuard) recordRejectedWaiver(ctx context.Context, row db_models.Account, cols []string, w *accountWrite) {
	actor := auditActorFrom(ctx)

	prev, _ := json.Marshal(row.Waiver)
	var next []byte
	if w.full {
		next, _ = json.Marshal(w.snapshot.Waiver)
	} else {
		next, _ = json.Marshal(w.waiverCols)
	}

	id := row.ID
	audit := &db_models.WaiverAudit{
		AccountID:     &id,
		Action:        db_models.WaiverActionModify,
		Field:         strings.Join(cols, ","),
		PreviousValue: string(prev),
		NewValue:      string(next),
		ModifiedBy:    actor.ModifiedBy,
		IPAddress:     actor.IPAddress,
		UserAgent:     actor.UserAgent,
		Rejected:      true,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := g.root.Session(&gorm.Session{NewDB: true}).WithContext(ctx).Create(audit).Error; err != nil {
		g.log.Error("write waiver audit", zap.String("account_id", id.String()), zap.Error(err))
	}
	g.log.Warn("rejected waiver modification",
		zap.String("account_id", id.String()),
		zap.Strings("fields", cols),
		zap.String("modified_by", actor.ModifiedBy))
}
