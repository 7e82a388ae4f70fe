package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tabsync/tabsync/internal/models"
	"github.com/tabsync/tabsync/internal/storage"
)

// ErrUnknownUser is returned when a referenced username has no account.
var ErrUnknownUser = errors.New("no such user")

// GroupInput carries the fields for creating a group. Members may omit
// the creator; they are added as admin regardless.
type GroupInput struct {
	Name    string   `json:"name" validate:"required,max=120"`
	Members []string `json:"members" validate:"omitempty,dive,required"`
}

// GroupService manages groups and their membership.
type GroupService struct {
	store    storage.Store
	validate *validator.Validate
}

func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateGroup creates a group with actor as admin. Every listed member
// must have a registered account.
func (s *GroupService) CreateGroup(ctx context.Context, actor string, in GroupInput) (*models.Group, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid group: %w", err)
	}

	members := []string{actor}
	for _, m := range in.Members {
		if m != actor {
			members = append(members, m)
		}
	}
	if err := s.checkUsersExist(ctx, members); err != nil {
		return nil, err
	}

	group := &models.Group{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Admin:     actor,
		Members:   members,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

// GetGroup retrieves the group; only members may see it.
func (s *GroupService) GetGroup(ctx context.Context, actor, groupID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(actor) {
		return nil, ErrNotMember
	}
	return group, nil
}

// ListGroups retrieves every group the user belongs to.
func (s *GroupService) ListGroups(ctx context.Context, username string) ([]*models.Group, error) {
	groups, err := s.store.ListGroupsForMember(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// AddMembers appends usernames to the group. Any member may invite;
// already-present usernames are skipped.
func (s *GroupService) AddMembers(ctx context.Context, actor, groupID string, usernames []string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(actor) {
		return nil, ErrNotMember
	}
	if err := s.checkUsersExist(ctx, usernames); err != nil {
		return nil, err
	}

	if err := s.store.AddGroupMembers(ctx, groupID, usernames); err != nil {
		return nil, fmt.Errorf("failed to add members: %w", err)
	}
	return s.store.GetGroup(ctx, groupID)
}

func (s *GroupService) checkUsersExist(ctx context.Context, usernames []string) error {
	for _, username := range usernames {
		if _, err := s.store.GetUserByUsername(ctx, username); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownUser, username)
			}
			return fmt.Errorf("failed to look up user: %w", err)
		}
	}
	return nil
}
