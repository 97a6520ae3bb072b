package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

type userRepositoryInMemory struct {
	mu      sync.RWMutex
	nextID  int64
	byLogin map[string]domain.User
}

// NewUserRepository создаёт in-memory справочник пользователей.
func NewUserRepository(seed ...domain.User) domain.UserRepository {
	repo := &userRepositoryInMemory{byLogin: make(map[string]domain.User)}
	for _, user := range seed {
		_, _ = repo.Create(user)
	}
	return repo
}

func (r *userRepositoryInMemory) Create(user domain.User) (domain.User, error) {
	user.Email = strings.TrimSpace(user.Email)
	if user.Email == "" {
		return domain.User{}, domain.ErrLoginRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byLogin[user.Email]; exists {
		return domain.User{}, domain.ErrAlreadyExists
	}
	r.nextID++
	user.ID = r.nextID
	r.byLogin[user.Email] = user
	return user, nil
}

func (r *userRepositoryInMemory) GetByLogin(login string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byLogin[strings.TrimSpace(login)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *userRepositoryInMemory) ListByRole(role domain.Role) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.User, 0)
	for _, user := range r.byLogin {
		if user.Role == role {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

var _ domain.UserRepository = (*userRepositoryInMemory)(nil)
