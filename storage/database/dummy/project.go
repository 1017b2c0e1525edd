package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/project"
)

type projectRepository struct {
	db *table[project.Project]
}

var _ project.Repository = (*projectRepository)(nil)

func NewProjectRepository(db *DB) project.Repository {
	return &projectRepository{db: db.project}
}

var projectFields = map[string]lessFunc[project.Project]{
	"name":       func(a, b project.Project) bool { return a.Name < b.Name },
	"project_id": func(a, b project.Project) bool { return a.ProjectID < b.ProjectID },
	"status":     func(a, b project.Project) bool { return a.Status < b.Status },
	"priority":   func(a, b project.Project) bool { return a.Priority < b.Priority },
	"sanctioned_amount": func(a, b project.Project) bool {
		return a.Financials.SanctionedAmount < b.Financials.SanctionedAmount
	},
	"overall_progress": func(a, b project.Project) bool { return a.OverallProgress < b.OverallProgress },
	"start_date":       func(a, b project.Project) bool { return a.Timeline.StartDate.Before(b.Timeline.StartDate) },
	"created_at":       func(a, b project.Project) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

func (repo *projectRepository) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.rows {
		if other.ProjectID == p.ProjectID {
			return project.Project{}, project.ErrProjectExists
		}
	}
	return repo.db.put(ctx, p.ID, p), nil
}

func (repo *projectRepository) GetProject(ctx context.Context, id string) (project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.get(id); ok {
		return p, nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter project.QueryFilter, ordering []core.DBOrdering, p core.Pagination) ([]project.Project, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	projects, total := page(repo.db.filter(filter.Matches), ordering, projectFields, core.DBOrdering{Field: "created_at"}, p)
	return projects, total, nil
}

func (repo *projectRepository) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[p.ID]; !ok {
		return project.Project{}, project.ErrNotFound
	}
	for _, other := range repo.db.rows {
		if other.ID != p.ID && other.ProjectID == p.ProjectID {
			return project.Project{}, project.ErrProjectExists
		}
	}
	return repo.db.put(ctx, p.ID, p), nil
}

func (repo *projectRepository) IncrementFinancials(ctx context.Context, id string, released, utilized float64) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.get(id)
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	p.Financials.TotalReleased += released
	p.Financials.TotalUtilized += utilized
	p.UpdatedAt = time.Now().UTC()
	return repo.db.put(ctx, id, p), nil
}

func (repo *projectRepository) SetProgress(ctx context.Context, id string, overall float64, status string, actualEnd *time.Time) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.get(id)
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	p.OverallProgress = overall
	p.Status = status
	p.Timeline.ActualEndDate = actualEnd
	p.UpdatedAt = time.Now().UTC()
	return repo.db.put(ctx, id, p), nil
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return project.ErrNotFound
	}
	repo.db.del(ctx, id)
	return nil
}
