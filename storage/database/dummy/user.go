package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
)

type userRepository struct {
	db *table[user.User]
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

var userFields = map[string]lessFunc[user.User]{
	"name":       func(a, b user.User) bool { return a.Name < b.Name },
	"email":      func(a, b user.User) bool { return a.Email < b.Email },
	"role":       func(a, b user.User) bool { return a.Role < b.Role },
	"created_at": func(a, b user.User) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.checkEmail(email, excludedIDs...)
}

func (repo *userRepository) checkEmail(email string, excludedIDs ...string) error {
	for _, usr := range repo.db.rows {
		if usr.Email == email && !core.ContainsString(excludedIDs, usr.ID) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.checkEmail(usr.Email); err != nil {
		return user.User{}, err
	}
	return repo.db.put(ctx, usr.ID, usr), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.get(filter.ID); ok && (filter.Email == "" || usr.Email == filter.Email) {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.rows {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering, p core.Pagination) ([]user.User, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users, total := page(repo.db.filter(filter.Matches), ordering, userFields, core.DBOrdering{Field: "name", Ascending: true}, p)
	return users, total, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkEmail(usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}
	return repo.db.put(ctx, usr.ID, usr), nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.rows[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = &at
	repo.db.put(ctx, id, usr)
	return nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return user.ErrNotFound
	}
	repo.db.del(ctx, id)
	return nil
}
