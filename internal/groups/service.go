package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumenreads/lumen/internal/users"
	"gorm.io/gorm"
)

var (
	// ErrGroupNotFound indicates the group id does not resolve.
	ErrGroupNotFound = errors.New("groups: group not found")
	// ErrWrongJoinCode indicates the quoted join code does not match.
	ErrWrongJoinCode = errors.New("groups: wrong join code")
	// ErrInvalidGroupName indicates a missing or blank group name.
	ErrInvalidGroupName = errors.New("groups: group name required")
	// ErrNotGroupMember indicates the requester does not belong to the group.
	ErrNotGroupMember = errors.New("groups: requester is not a member")
)

// IDProvider issues identifiers for new groups.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the group service.
type ServiceConfig struct {
	Database     *gorm.DB
	Clock        func() time.Time
	IDProvider   IDProvider
	CodeProvider CodeProvider
}

// Service manages group lifecycle and membership.
type Service struct {
	db           *gorm.DB
	now          func() time.Time
	idProvider   IDProvider
	codeProvider CodeProvider
}

// NewService constructs the group service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("groups: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("groups: id provider required")
	}
	codeProvider := cfg.CodeProvider
	if codeProvider == nil {
		codeProvider = NewRandomCodeProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:           cfg.Database,
		now:          clock,
		idProvider:   cfg.IDProvider,
		codeProvider: codeProvider,
	}, nil
}

// List returns every group ordered by name.
func (s *Service) List(ctx context.Context) ([]Group, error) {
	var all []Group
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}

// Get loads one group by id.
func (s *Service) Get(ctx context.Context, groupID string) (Group, error) {
	var group Group
	err := s.db.WithContext(ctx).Where("id = ?", groupID).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Group{}, ErrGroupNotFound
	}
	if err != nil {
		return Group{}, err
	}
	return group, nil
}

// Create makes a new group with a generated join code and moves the creator
// into it. The creator does not need to quote the code back.
func (s *Service) Create(ctx context.Context, name, creatorID string) (Group, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Group{}, ErrInvalidGroupName
	}

	groupID, err := s.idProvider.NewID()
	if err != nil {
		return Group{}, err
	}
	code, err := s.codeProvider.NewJoinCode()
	if err != nil {
		return Group{}, err
	}

	group := Group{
		ID:               groupID,
		Name:             trimmed,
		JoinCode:         code,
		CreatedBy:        creatorID,
		CreatedAtSeconds: s.now().UTC().Unix(),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		return tx.Model(&users.User{}).
			Where("id = ?", creatorID).
			Update("group_id", group.ID).Error
	})
	if txErr != nil {
		return Group{}, txErr
	}
	return group, nil
}

// Join moves a user into a group after the join code checks out.
func (s *Service) Join(ctx context.Context, userID, groupID, code string) (Group, error) {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return Group{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(code), group.JoinCode) {
		return Group{}, ErrWrongJoinCode
	}

	if err := s.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", userID).
		Update("group_id", group.ID).Error; err != nil {
		return Group{}, err
	}
	return group, nil
}

// Leave removes the user from whatever group they belong to.
func (s *Service) Leave(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", userID).
		Update("group_id", "").Error
}

// Rename changes the group name. Only current members may rename their group;
// the change records who made it and when.
func (s *Service) Rename(ctx context.Context, groupID, requesterID, name string) (Group, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Group{}, ErrInvalidGroupName
	}

	group, err := s.Get(ctx, groupID)
	if err != nil {
		return Group{}, err
	}

	var requester users.User
	err = s.db.WithContext(ctx).Where("id = ?", requesterID).First(&requester).Error
	if err != nil || requester.GroupID != group.ID {
		return Group{}, ErrNotGroupMember
	}

	updates := map[string]interface{}{
		"name":         trimmed,
		"updated_by":   requesterID,
		"updated_at_s": s.now().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Model(&Group{}).Where("id = ?", groupID).Updates(updates).Error; err != nil {
		return Group{}, err
	}
	group.Name = trimmed
	group.UpdatedBy = requesterID
	return group, nil
}
