package notifysvc

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/surrealdb/surrealdb.go"

	"github.com/trezcool/pmajay/core"
)

// Feed persists notifications so clients that were offline can catch up.
type Feed interface {
	core.Notifier
	// Recent returns the latest notifications of userID, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]core.Notification, error)
}

const feedTable = "notification"

// surrealConn is the part of *surrealdb.DB the feed uses.
type surrealConn interface {
	Query(sql string, vars map[string]any) (any, error)
	Close()
}

// SurrealFeed stores notifications in a SurrealDB table.
type SurrealFeed struct {
	db surrealConn
}

var _ Feed = (*SurrealFeed)(nil)

func NewSurrealFeed(conf *core.Config) (*SurrealFeed, error) {
	db, err := surrealdb.New(conf.Realtime.SurrealURL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to surrealdb")
	}
	if _, err = db.Signin(map[string]any{
		"user": conf.Realtime.SurrealUser,
		"pass": conf.Realtime.SurrealPass,
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "signing in to surrealdb")
	}
	if _, err = db.Use(conf.Realtime.SurrealNamespace, conf.Realtime.SurrealDatabase); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "selecting surrealdb database")
	}
	return &SurrealFeed{db: db}, nil
}

// record is the stored shape: SurrealDB owns the `id` field, so ours moves to notification_id.
type record struct {
	core.Notification
	NotificationID string `json:"notification_id"`
}

func (f *SurrealFeed) Notify(_ context.Context, n core.Notification) error {
	data, err := toMap(record{Notification: n, NotificationID: n.ID})
	if err != nil {
		return err
	}
	delete(data, "id")
	if _, err = f.db.Query("CREATE "+feedTable+" CONTENT $data", map[string]any{"data": data}); err != nil {
		return errors.Wrap(err, "storing notification")
	}
	return nil
}

func (f *SurrealFeed) Recent(_ context.Context, userID string, limit int) ([]core.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	res, err := f.db.Query(
		"SELECT * FROM "+feedTable+" WHERE recipient_id = $uid ORDER BY created_at DESC LIMIT $limit",
		map[string]any{"uid": userID, "limit": limit},
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}

	var results []struct {
		Status string   `json:"status"`
		Detail string   `json:"detail"`
		Result []record `json:"result"`
	}
	if err = fromAny(res, &results); err != nil {
		return nil, errors.Wrap(err, "decoding notifications")
	}
	out := make([]core.Notification, 0)
	for _, r := range results {
		if r.Status != "" && r.Status != "OK" {
			return nil, errors.Errorf("querying notifications: %s", r.Detail)
		}
		for _, rec := range r.Result {
			n := rec.Notification
			n.ID = rec.NotificationID
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *SurrealFeed) Close() {
	f.db.Close()
}

func toMap(v interface{}) (map[string]any, error) {
	m := make(map[string]any)
	if err := fromAny(v, &m); err != nil {
		return nil, errors.Wrap(err, "encoding notification")
	}
	return m, nil
}

// fromAny converts the loosely typed RPC payloads through their JSON form.
func fromAny(v interface{}, dst interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// MemoryFeed keeps the latest notifications of each user in memory. Used when SurrealDB is not configured.
type MemoryFeed struct {
	mu   sync.RWMutex
	max  int
	byID map[string][]core.Notification
}

var _ Feed = (*MemoryFeed)(nil)

func NewMemoryFeed(max int) *MemoryFeed {
	if max <= 0 {
		max = 100
	}
	return &MemoryFeed{max: max, byID: make(map[string][]core.Notification)}
}

func (f *MemoryFeed) Notify(_ context.Context, n core.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns := append(f.byID[n.RecipientID], n)
	if len(ns) > f.max {
		ns = ns[len(ns)-f.max:]
	}
	f.byID[n.RecipientID] = ns
	return nil
}

func (f *MemoryFeed) Recent(_ context.Context, userID string, limit int) ([]core.Notification, error) {
	f.mu.RLock()
	ns := append([]core.Notification(nil), f.byID[userID]...)
	f.mu.RUnlock()

	sort.SliceStable(ns, func(i, j int) bool { return ns[i].CreatedAt.After(ns[j].CreatedAt) })
	if limit > 0 && len(ns) > limit {
		ns = ns[:limit]
	}
	return ns, nil
}
