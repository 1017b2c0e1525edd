package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/storage/database"
)

type projectRepository struct {
	coll *mongo.Collection
}

var _ project.Repository = (*projectRepository)(nil)

func NewProjectRepository(db *database.DB) project.Repository {
	return &projectRepository{coll: db.Collection(database.ProjectCollection)}
}

var projectSortFields = map[string]string{
	"name":              "name",
	"project_id":        "project_id",
	"status":            "status",
	"priority":          "priority",
	"sanctioned_amount": "financials.sanctioned_amount",
	"overall_progress":  "overall_progress",
	"start_date":        "timeline.start_date",
	"created_at":        "created_at",
}

func (repo *projectRepository) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if _, err := repo.coll.InsertOne(ctx, p); err != nil {
		if isDuplicate(err, database.IdxProjectID) {
			return project.Project{}, project.ErrProjectExists
		}
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return p, nil
}

func (repo *projectRepository) GetProject(ctx context.Context, id string) (project.Project, error) {
	return findOne[project.Project](ctx, repo.coll, bson.M{"_id": id}, project.ErrNotFound)
}

// scopeQuery adds the jurisdiction constraints of f to q.
func scopeQuery(q bson.M, f access.Filter) {
	if f.State != "" {
		q["location.state"] = f.State
	}
	if f.District != "" {
		q["location.district"] = f.District
	}
	if f.Village != "" {
		q["location.village"] = f.Village
	}
	if f.Agency != "" {
		q["implementing_agency"] = f.Agency
	}
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter project.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]project.Project, int, error) {
	if filter.Scope.Deny {
		return []project.Project{}, 0, nil
	}

	q := bson.M{}
	// explicit location filters and the caller's scope must both hold
	if filter.State != "" {
		q["location.state"] = filter.State
	}
	if filter.District != "" {
		q["location.district"] = filter.District
	}
	if filter.Village != "" {
		q["location.village"] = filter.Village
	}
	if filter.Agency != "" {
		q["implementing_agency"] = filter.Agency
	}
	and := bson.A{}
	if sf := filter.Scope; sf != (access.Filter{}) {
		scoped := bson.M{}
		scopeQuery(scoped, sf)
		and = append(and, scoped)
	}
	if filter.IDs != nil {
		q["_id"] = in(filter.IDs)
	}
	if filter.Search != "" {
		q["$or"] = bson.A{
			bson.M{"name": icontains(filter.Search)},
			bson.M{"project_id": icontains(filter.Search)},
		}
	}
	if len(filter.Status) > 0 {
		q["status"] = in(filter.Status)
	}
	if filter.SchemeType != "" {
		q["scheme_type"] = filter.SchemeType
	}
	if filter.Priority != "" {
		q["priority"] = filter.Priority
	}
	if len(and) > 0 {
		q["$and"] = and
	}

	sort := sortDoc(ordering, projectSortFields, core.DBOrdering{Field: "created_at"})
	return findPage[project.Project](ctx, repo.coll, q, sort, page)
}

func (repo *projectRepository) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if err := replace(ctx, repo.coll, p.ID, p, project.ErrNotFound); err != nil {
		if isDuplicate(err, database.IdxProjectID) {
			return project.Project{}, project.ErrProjectExists
		}
		return project.Project{}, err
	}
	return p, nil
}

func (repo *projectRepository) findAndUpdate(ctx context.Context, id string, update bson.M) (project.Project, error) {
	var p project.Project
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, errors.Wrap(err, "updating project")
	}
	return p, nil
}

func (repo *projectRepository) IncrementFinancials(ctx context.Context, id string, released, utilized float64) (project.Project, error) {
	return repo.findAndUpdate(ctx, id, bson.M{
		"$inc": bson.M{
			"financials.total_released": released,
			"financials.total_utilized": utilized,
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
}

func (repo *projectRepository) SetProgress(ctx context.Context, id string, overall float64, status string, actualEnd *time.Time) (project.Project, error) {
	set := bson.M{
		"overall_progress": overall,
		"status":           status,
		"updated_at":       time.Now().UTC(),
	}
	if actualEnd != nil {
		set["timeline.actual_end_date"] = *actualEnd
	}
	return repo.findAndUpdate(ctx, id, bson.M{"$set": set})
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, project.ErrNotFound)
}
