package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/message"
)

type messageRepository struct {
	db *table[message.Message]
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db.message}
}

var messageFields = map[string]lessFunc[message.Message]{
	"created_at": func(a, b message.Message) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.db.put(ctx, m.ID, m), nil
}

func (repo *messageRepository) GetMessage(ctx context.Context, id string) (message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.get(id); ok {
		return m, nil
	}
	return message.Message{}, message.ErrNotFound
}

func (repo *messageRepository) QueryMessages(ctx context.Context, filter message.QueryFilter, ordering []core.DBOrdering, p core.Pagination) ([]message.Message, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs, total := page(repo.db.filter(filter.Matches), ordering, messageFields, core.DBOrdering{Field: "created_at"}, p)
	return msgs, total, nil
}

func (repo *messageRepository) MarkRead(ctx context.Context, filter message.QueryFilter, at time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	filter.Unread = true
	n := 0
	for id, m := range repo.db.rows {
		if filter.Matches(m) {
			m.IsRead = true
			m.ReadAt = &at
			repo.db.put(ctx, id, m)
			n++
		}
	}
	return n, nil
}
