package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

var (
	// ErrEmailTaken indicates another account already owns the address.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrInvalidCredentials indicates an unknown address or wrong password.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrUserNotFound indicates the user id does not resolve to an account.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrInvalidRegistration indicates missing or malformed signup input.
	ErrInvalidRegistration = errors.New("users: invalid registration")
)

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Service manages reader accounts: registration, login, profiles, and the
// ordered user queries the rankings build on.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
	}, nil
}

// Register creates an account with a bcrypt password hash. The email address
// is normalized to lower case before the uniqueness check.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (User, error) {
	address := normalizeEmail(email)
	if address == "" {
		return User{}, fmt.Errorf("%w: email required", ErrInvalidRegistration)
	}
	if len(password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRegistration, minPasswordLength)
	}

	var existing User
	err := s.db.WithContext(ctx).Where("email = ?", address).First(&existing).Error
	if err == nil {
		return User{}, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	userID, err := s.idProvider.NewID()
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           userID,
		Email:        address,
		PasswordHash: string(hash),
		DisplayName:  normalize(displayName),
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate resolves an account by email and verifies the password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	address := normalizeEmail(email)
	if address == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", address).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetProfile loads one account by id.
func (s *Service) GetProfile(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, ErrUserNotFound
	}
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateProfile replaces the display name. Group membership changes go
// through the groups service.
func (s *Service) UpdateProfile(ctx context.Context, userID, displayName string) (User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return User{}, err
	}

	name := normalize(displayName)
	if name == "" {
		return User{}, fmt.Errorf("%w: display name required", ErrInvalidRegistration)
	}

	updates := map[string]interface{}{
		"display_name": name,
		"updated_at":   s.now(),
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return User{}, err
	}
	user.DisplayName = name
	return user, nil
}

// TopReaders returns users ordered by chapters_read_count descending with a
// deterministic id tiebreak, optionally scoped to one group, capped at limit.
func (s *Service) TopReaders(ctx context.Context, groupID string, limit int) ([]User, error) {
	if limit <= 0 {
		return []User{}, nil
	}

	query := s.db.WithContext(ctx).Model(&User{})
	if groupID != "" {
		query = query.Where("group_id = ?", groupID)
	}

	var top []User
	if err := query.
		Order("chapters_read_count DESC").
		Order("id ASC").
		Limit(limit).
		Find(&top).Error; err != nil {
		return nil, err
	}
	return top, nil
}

// ListGrouped returns every user that belongs to some group, for partitioned
// rankings.
func (s *Service) ListGrouped(ctx context.Context) ([]User, error) {
	var grouped []User
	if err := s.db.WithContext(ctx).
		Where("group_id <> ''").
		Order("id ASC").
		Find(&grouped).Error; err != nil {
		return nil, err
	}
	return grouped, nil
}
