package implementation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	auth_models "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models/auth"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// MemoryUserRepository backs STORAGE_BACKEND=memory and the unit tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*auth_models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*auth_models.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *auth_models.User) (*auth_models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.users[user.UserID] = &stored
	return user, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, userID string) (*auth_models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*auth_models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Username == username {
			out := *user
			return &out, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *MemoryUserRepository) Update(_ context.Context, user *auth_models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserID]; !ok {
		return interfaces.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	stored := *user
	r.users[user.UserID] = &stored
	return nil
}
