package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/message"
	"github.com/trezcool/pmajay/storage/database"
)

type messageRepository struct {
	coll *mongo.Collection
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *database.DB) message.Repository {
	return &messageRepository{coll: db.Collection(database.MessageCollection)}
}

var messageSortFields = map[string]string{
	"created_at": "created_at",
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	if _, err := repo.coll.InsertOne(ctx, m); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo *messageRepository) GetMessage(ctx context.Context, id string) (message.Message, error) {
	return findOne[message.Message](ctx, repo.coll, bson.M{"_id": id}, message.ErrNotFound)
}

func messageQuery(filter message.QueryFilter) bson.M {
	q := bson.M{}
	if filter.ID != "" {
		q["_id"] = filter.ID
	}
	if filter.ConversationID != "" {
		q["conversation_id"] = filter.ConversationID
	}
	if filter.ProjectID != "" {
		q["project_id"] = filter.ProjectID
	}
	if filter.ReceiverID != "" {
		q["receiver_id"] = filter.ReceiverID
	}
	if filter.Participant != "" {
		q["$or"] = bson.A{
			bson.M{"sender_id": filter.Participant},
			bson.M{"receiver_id": filter.Participant},
		}
	}
	if filter.Unread {
		q["is_read"] = false
	}
	return q
}

func (repo *messageRepository) QueryMessages(ctx context.Context, filter message.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]message.Message, int, error) {
	sort := sortDoc(ordering, messageSortFields, core.DBOrdering{Field: "created_at"})
	return findPage[message.Message](ctx, repo.coll, messageQuery(filter), sort, page)
}

func (repo *messageRepository) MarkRead(ctx context.Context, filter message.QueryFilter, at time.Time) (int, error) {
	filter.Unread = true
	res, err := repo.coll.UpdateMany(ctx, messageQuery(filter), bson.M{
		"$set": bson.M{"is_read": true, "read_at": at},
	})
	if err != nil {
		return 0, errors.Wrap(err, "marking messages read")
	}
	return int(res.ModifiedCount), nil
}
