// Package mongodb implements the repositories on MongoDB.
package mongodb

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/pmajay/core"
)

// sortDoc converts orderings on allowed fields to a sort document, always ending with `fallback`.
func sortDoc(ordering []core.DBOrdering, allowed map[string]string, fallback core.DBOrdering) bson.D {
	d := bson.D{}
	seen := make(map[string]bool)
	for _, ord := range append(append([]core.DBOrdering(nil), ordering...), fallback) {
		field, ok := allowed[ord.Field]
		if !ok || seen[field] {
			continue
		}
		seen[field] = true
		d = append(d, bson.E{Key: field, Value: ord.Direction()})
	}
	return d
}

// findPage runs a paginated find and the matching count.
func findPage[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D, page core.Pagination) ([]T, int, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting documents")
	}

	opts := options.Find().SetSort(sort)
	if page.Limit > 0 {
		opts.SetSkip(int64(page.Skip())).SetLimit(int64(page.Limit))
	}
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "finding documents")
	}
	items := make([]T, 0)
	if err = cur.All(ctx, &items); err != nil {
		return nil, 0, errors.Wrap(err, "decoding documents")
	}
	return items, int(total), nil
}

// findOne decodes the document matching filter, returning notFound when there is none.
func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, notFound error) (T, error) {
	var doc T
	err := coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return doc, notFound
		}
		return doc, errors.Wrap(err, "finding document")
	}
	return doc, nil
}

// replace stores doc over the document with `_id` id.
// Driver errors are wrapped, duplicate keys stay detectable through isDuplicate.
func replace(ctx context.Context, coll *mongo.Collection, id string, doc interface{}, notFound error) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return errors.Wrap(err, "replacing document")
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id string, notFound error) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if res.DeletedCount == 0 {
		return notFound
	}
	return nil
}

// isDuplicate reports whether err violates the unique index `index`.
func isDuplicate(err error, index string) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), index)
}

func icontains(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// in returns an `$in` condition. A non-nil empty slice matches nothing.
func in(values []string) bson.M {
	return bson.M{"$in": values}
}

// projectCond constrains q to project `id` and, when ids is non-nil, to the scoped project ids.
func projectCond(q bson.M, id string, ids []string) {
	switch {
	case id != "" && ids != nil && !core.ContainsString(ids, id):
		q["project_id"] = in([]string{})
	case id != "":
		q["project_id"] = id
	case ids != nil:
		q["project_id"] = in(ids)
	}
}
