package service

import (
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/whisprlabs/whisprgate/internal/config"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/logger"
	"golang.org/x/time/rate"
)

// UserManager maps gateway API keys to user identities and holds the
// per-user rate limiters.
type UserManager struct {
	mu          sync.RWMutex
	users       map[string]*model.User // Key: gateway ApiKey
	byID        map[string]*model.User
	limiters    map[string]*rate.Limiter // Key: UserID
	config      *config.Config
	defaultUser *model.User
}

func NewUserManager(cfg *config.Config) *UserManager {
	um := &UserManager{
		users:    make(map[string]*model.User),
		byID:     make(map[string]*model.User),
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
	}

	for _, userCfg := range cfg.Users {
		addr, err := model.AddressFromHex(userCfg.Address)
		if err != nil {
			// Fall back to a key-derived identity so a typo'd config entry
			// cannot collide with another user's records.
			var derived model.Address
			copy(derived[:], crypto.Keccak256([]byte("whisprgate/user"), []byte(userCfg.ID)))
			addr = derived
			logger.Warn("User config has no valid address, derived one from the user ID", "user", userCfg.ID)
		}
		um.RegisterUser(&model.User{
			ID:      userCfg.ID,
			Name:    userCfg.Name,
			ApiKey:  userCfg.APIKey,
			Address: addr,
		})
	}

	// Single-user mode: no configured users means one implicit identity
	if len(cfg.Users) == 0 {
		var addr model.Address
		copy(addr[:], crypto.Keccak256([]byte("whisprgate/default-user")))
		um.defaultUser = &model.User{
			ID:      "default-user",
			Name:    "Default User",
			ApiKey:  cfg.Auth.APIKey,
			Address: addr,
		}
		um.RegisterUser(um.defaultUser)
	}

	return um
}

func (um *UserManager) RegisterUser(u *model.User) {
	um.mu.Lock()
	defer um.mu.Unlock()
	if u.ApiKey != "" {
		um.users[u.ApiKey] = u
	}
	um.byID[u.ID] = u

	qps := um.config.Rate.QPS
	burst := um.config.Rate.Burst
	if qps <= 0 {
		qps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	um.limiters[u.ID] = rate.NewLimiter(rate.Limit(qps), burst)
}

func (um *UserManager) GetByApiKey(apiKey string) (*model.User, bool) {
	um.mu.RLock()
	defer um.mu.RUnlock()
	u, ok := um.users[apiKey]
	return u, ok
}

func (um *UserManager) GetByID(id string) (*model.User, bool) {
	um.mu.RLock()
	defer um.mu.RUnlock()
	u, ok := um.byID[id]
	return u, ok
}

func (um *UserManager) DefaultUser() *model.User {
	um.mu.RLock()
	defer um.mu.RUnlock()
	return um.defaultUser
}

func (um *UserManager) GetLimiterForUser(userID string) *rate.Limiter {
	um.mu.RLock()
	defer um.mu.RUnlock()
	return um.limiters[userID]
}
