// Package dummydb is the in-memory store used by tests and the `memory` database engine.
package dummydb

import (
	"context"
	"sort"
	"sync"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/beneficiary"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/core/message"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/progress"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

type (
	DB struct {
		txMu sync.Mutex

		user        *table[user.User]
		project     *table[project.Project]
		milestone   *table[milestone.Milestone]
		beneficiary *table[beneficiary.Beneficiary]
		fund        *table[fund.Transaction]
		progress    *table[progress.Update]
		message     *table[message.Message]
	}

	table[T any] struct {
		sync.RWMutex
		rows  map[string]T
		clone func(T) T
	}
)

func Open() *DB {
	return &DB{
		user:        newTable[user.User](nil),
		project:     newTable[project.Project](nil),
		milestone:   newTable(cloneMilestone),
		beneficiary: newTable(cloneBeneficiary),
		fund:        newTable(cloneTransaction),
		progress:    newTable(cloneUpdate),
		message:     newTable[message.Message](nil),
	}
}

var _ core.Transactor = (*DB)(nil)

type txKey struct{}

// journal records how to undo the writes of one transaction, in order.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

func (j *journal) add(undo func()) {
	j.mu.Lock()
	j.undo = append(j.undo, undo)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// WithinTransaction serializes transactions and, when fn fails, undoes the rows fn wrote.
// Writes made outside the transaction are left alone. Calls nested in a running transaction join it.
func (db *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*journal); ok {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	j := new(journal)
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// Flush empties every table.
func (db *DB) Flush() {
	db.user.flush()
	db.project.flush()
	db.milestone.flush()
	db.beneficiary.flush()
	db.fund.flush()
	db.progress.flush()
	db.message.flush()
}

func newTable[T any](clone func(T) T) *table[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &table[T]{rows: make(map[string]T), clone: clone}
}

// the helpers below expect the caller to hold the table lock

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	if !ok {
		return row, false
	}
	return t.clone(row), true
}

func (t *table[T]) put(ctx context.Context, id string, row T) T {
	t.record(ctx, id)
	t.rows[id] = t.clone(row)
	return row
}

func (t *table[T]) del(ctx context.Context, id string) {
	t.record(ctx, id)
	delete(t.rows, id)
}

// record journals the current state of row id when ctx carries a transaction.
func (t *table[T]) record(ctx context.Context, id string) {
	j, ok := ctx.Value(txKey{}).(*journal)
	if !ok {
		return
	}
	prev, existed := t.rows[id]
	if existed {
		prev = t.clone(prev)
	}
	j.add(func() {
		t.Lock()
		defer t.Unlock()
		if existed {
			t.rows[id] = prev
		} else {
			delete(t.rows, id)
		}
	})
}

func (t *table[T]) filter(keep func(T) bool) []T {
	rows := make([]T, 0)
	for _, row := range t.rows {
		if keep(row) {
			rows = append(rows, t.clone(row))
		}
	}
	return rows
}

func (t *table[T]) flush() {
	t.Lock()
	t.rows = make(map[string]T)
	t.Unlock()
}

type lessFunc[T any] func(a, b T) bool

// sortRows orders rows by the known fields of ordering, falling back to `fallback`.
func sortRows[T any](rows []T, ordering []core.DBOrdering, fields map[string]lessFunc[T], fallback core.DBOrdering) {
	ordering = append(append([]core.DBOrdering(nil), ordering...), fallback)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			less, ok := fields[ord.Field]
			if !ok {
				continue
			}
			a, b := rows[i], rows[j]
			if !ord.Ascending {
				a, b = b, a
			}
			if less(a, b) {
				return true
			}
			if less(b, a) {
				return false
			}
		}
		return false
	})
}

// page sorts, counts and paginates rows.
func page[T any](rows []T, ordering []core.DBOrdering, fields map[string]lessFunc[T], fallback core.DBOrdering, p core.Pagination) ([]T, int) {
	sortRows(rows, ordering, fields, fallback)
	return core.Paginate(rows, p), len(rows)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

func cloneMilestone(m milestone.Milestone) milestone.Milestone {
	m.Dependencies = cloneStrings(m.Dependencies)
	return m
}

func cloneBeneficiary(b beneficiary.Beneficiary) beneficiary.Beneficiary {
	if b.BenefitsReceived != nil {
		b.BenefitsReceived = append([]beneficiary.Benefit{}, b.BenefitsReceived...)
	}
	return b
}

func cloneTransaction(tx fund.Transaction) fund.Transaction {
	if tx.ApprovalWorkflow != nil {
		tx.ApprovalWorkflow = append([]fund.Stage{}, tx.ApprovalWorkflow...)
	}
	if tx.AuditTrail != nil {
		tx.AuditTrail = append([]fund.AuditEntry{}, tx.AuditTrail...)
	}
	return tx
}

func cloneUpdate(u progress.Update) progress.Update {
	if u.Issues != nil {
		u.Issues = append([]progress.Issue{}, u.Issues...)
	}
	return u
}
