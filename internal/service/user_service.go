package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/digkill/NumberHoldBot/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Ensure(ctx context.Context, id int64, username string, referrerID *int64) (*models.User, bool, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
	SetRole(ctx context.Context, id int64, role models.Privilege) error
	ListOperators(ctx context.Context) ([]models.User, error)
	ListAll(ctx context.Context) ([]models.User, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

type UserService struct {
	users     UserStore
	referrals *ReferralService
	ownerIDs  map[int64]struct{}
}

func NewUserService(users UserStore, referrals *ReferralService, ownerIDs []int64) *UserService {
	owners := make(map[int64]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}
	return &UserService{users: users, referrals: referrals, ownerIDs: owners}
}

// Ensure registers the user on first contact and refreshes the username on
// later ones. A referral link in the first contact fixes attribution
// permanently; on repeat contacts it is ignored.
func (s *UserService) Ensure(ctx context.Context, id int64, username string, referrerID *int64) (*models.User, error) {
	if referrerID != nil && (*referrerID == id || *referrerID <= 0) {
		referrerID = nil
	}
	user, created, err := s.users.Ensure(ctx, id, username, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if created && referrerID != nil {
		if err := s.referrals.Attribute(ctx, *referrerID, id); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// PrivilegeOf resolves the effective privilege. Configured owner IDs trump
// whatever role the row carries.
func (s *UserService) PrivilegeOf(ctx context.Context, id int64) (models.Privilege, error) {
	if _, ok := s.ownerIDs[id]; ok {
		return models.PrivilegeOwner, nil
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return models.PrivilegeNone, err
	}
	if user == nil {
		return models.PrivilegeNone, nil
	}
	return user.Role, nil
}

func (s *UserService) IsOwner(id int64) bool {
	_, ok := s.ownerIDs[id]
	return ok
}

func (s *UserService) Ban(ctx context.Context, id int64) error {
	return s.users.SetBanned(ctx, id, true)
}

func (s *UserService) Unban(ctx context.Context, id int64) error {
	return s.users.SetBanned(ctx, id, false)
}

func (s *UserService) SetRole(ctx context.Context, id int64, role models.Privilege) error {
	return s.users.SetRole(ctx, id, role)
}

func (s *UserService) Operators(ctx context.Context) ([]models.User, error) {
	return s.users.ListOperators(ctx)
}

func (s *UserService) All(ctx context.Context) ([]models.User, error) {
	return s.users.ListAll(ctx)
}

func (s *UserService) AllIDs(ctx context.Context) ([]int64, error) {
	return s.users.ListIDs(ctx)
}
