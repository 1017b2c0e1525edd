// Package database connects to the MongoDB document store and manages its indexes.
package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trezcool/pmajay/core"
)

// Collections
const (
	UserCollection        = "users"
	ProjectCollection     = "projects"
	MilestoneCollection   = "milestones"
	BeneficiaryCollection = "beneficiaries"
	FundCollection        = "fund_transactions"
	ProgressCollection    = "progress_updates"
	MessageCollection     = "messages"
)

// Unique index names, matched against duplicate key errors
const (
	IdxUserEmail          = "email_unique"
	IdxProjectID          = "project_id_unique"
	IdxMilestoneID        = "milestone_id_unique"
	IdxBeneficiaryID      = "beneficiary_id_unique"
	IdxBeneficiaryAadhaar = "aadhaar_unique"
	IdxTransactionID      = "transaction_id_unique"
	IdxUpdateID           = "update_id_unique"
	IdxMessageID          = "message_id_unique"
)

type DB struct {
	Client       *mongo.Client
	Database     *mongo.Database
	transactions bool
}

var _ core.Transactor = (*DB)(nil)

func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	opts := options.Client().
		ApplyURI(conf.Database.URI).
		SetServerSelectionTimeout(conf.Database.Timeout).
		SetAppName(conf.AppName)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}
	if err = ping(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging database")
	}
	return &DB{
		Client:       client,
		Database:     client.Database(conf.Database.Name),
		transactions: conf.Database.Transactions,
	}, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, client *mongo.Client) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = client.Ping(ctx, readpref.Primary())
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping cancelled")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

func (db *DB) Collection(name string) *mongo.Collection {
	return db.Database.Collection(name)
}

// WithinTransaction runs fn in a multi-document transaction when transactions are enabled
// (they need a replica set). Calls nested in a running transaction join it.
func (db *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !db.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := db.Client.StartSession()
	if err != nil {
		return errors.Wrap(err, "starting session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func index(name string, unique bool, keys ...string) mongo.IndexModel {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		dir := 1
		if k[0] == '-' {
			k, dir = k[1:], -1
		}
		d = append(d, bson.E{Key: k, Value: dir})
	}
	opts := options.Index().SetName(name)
	if unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: d, Options: opts}
}

var indexes = map[string][]mongo.IndexModel{
	UserCollection: {
		index(IdxUserEmail, true, "email"),
		index("role_jurisdiction", false, "role", "jurisdiction.state", "jurisdiction.district"),
	},
	ProjectCollection: {
		index(IdxProjectID, true, "project_id"),
		index("location", false, "location.state", "location.district", "location.village"),
		index("implementing_agency", false, "implementing_agency"),
		index("status", false, "status"),
	},
	MilestoneCollection: {
		index(IdxMilestoneID, true, "milestone_id"),
		index("project_schedule", false, "project_id", "scheduled_date"),
		index("dependencies", false, "dependencies"),
	},
	BeneficiaryCollection: {
		index(IdxBeneficiaryID, true, "beneficiary_id"),
		index(IdxBeneficiaryAadhaar, true, "personal_info.aadhaar_number"),
		index("project", false, "project_id", "verification_status"),
	},
	FundCollection: {
		index(IdxTransactionID, true, "transaction_id"),
		index("project_status", false, "project_id", "status"),
		index("created_at", false, "-created_at"),
	},
	ProgressCollection: {
		index(IdxUpdateID, true, "update_id"),
		index("project_milestone", false, "project_id", "milestone_id", "-created_at"),
	},
	MessageCollection: {
		index(IdxMessageID, true, "message_id"),
		index("conversation", false, "conversation_id", "-created_at"),
		index("receiver_unread", false, "receiver_id", "is_read"),
	},
}

// Migrate creates the collection indexes. It is idempotent.
func Migrate(ctx context.Context, db *DB) error {
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", coll)
		}
	}
	return nil
}

// Drop removes every collection (tests only).
func Drop(ctx context.Context, db *DB) error {
	return db.Database.Drop(ctx)
}
