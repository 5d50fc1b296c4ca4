package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/realtime"
	"waste_portal_backend/internal/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service defines profile business logic. Every mutating call takes the acting
// caller and checks its capability before touching the repository.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetProfile(ctx context.Context, actor common.Actor, id uuid.UUID) (*Profile, error)
	UpdateOwnProfile(ctx context.Context, actor common.Actor, req UpdateProfileRequest) (*Profile, error)
	ChangePassword(ctx context.Context, actor common.Actor, req ChangePasswordRequest) error
	DeleteOwnAccount(ctx context.Context, actor common.Actor) error

	ListProfiles(ctx context.Context, actor common.Actor, filter ListFilter, page, pageSize int) ([]Profile, *common.Pagination, error)
	UpdateRole(ctx context.Context, actor common.Actor, id uuid.UUID, role string) (*Profile, error)
	SetActive(ctx context.Context, actor common.Actor, id uuid.UUID, active bool) (*Profile, error)
	DeleteProfile(ctx context.Context, actor common.Actor, id uuid.UUID) error
	SignOutUser(ctx context.Context, actor common.Actor, id uuid.UUID) error

	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	FindOrCreateProviderProfile(ctx context.Context, profile shared.OAuthUserProfile) (*Profile, bool, error)
}

// IdentityRevoker revokes sessions held at an external identity provider.
type IdentityRevoker interface {
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// AccountCleanup removes data owned by a deleted profile.
type AccountCleanup interface {
	PurgeUserData(ctx context.Context, userID uuid.UUID) error
}

// Cleanups runs after a profile row is gone.
type Cleanups []AccountCleanup

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo      Repository
	publisher realtime.Publisher
	revoker   IdentityRevoker
	cleanups  Cleanups
	cfg       *config.Config
	logger    *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new profile service. revoker may be nil.
func NewService(
	repo Repository,
	publisher realtime.Publisher,
	revoker IdentityRevoker,
	cleanups Cleanups,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceImplementation {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &ServiceImplementation{
		repo:      repo,
		publisher: publisher,
		revoker:   revoker,
		cleanups:  cleanups,
		cfg:       cfg,
		logger:    logger.Named("ProfileService"),
	}
}

// GetByID loads a profile without capability checks. Used by the auth middleware.
func (s *ServiceImplementation) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.repo.FindByID(ctx, id)
}

// GetProfile returns a profile to its owner or an admin.
func (s *ServiceImplementation) GetProfile(ctx context.Context, actor common.Actor, id uuid.UUID) (*Profile, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return nil, common.ErrForbidden.WithDetails("You can only view your own profile.")
	}
	return s.repo.FindByID(ctx, id)
}

// UpdateOwnProfile edits name, area and phone number of the caller.
func (s *ServiceImplementation) UpdateOwnProfile(ctx context.Context, actor common.Actor, req UpdateProfileRequest) (*Profile, error) {
	profile, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, common.NewValidationAPIError(map[string]string{"name": "Name cannot be blank."})
		}
		profile.Name = name
	}
	if req.Area != nil {
		if strings.TrimSpace(*req.Area) == "" && profile.Role == common.RoleResident {
			return nil, common.NewValidationAPIError(map[string]string{"area": "Residents must provide an area."})
		}
		profile.SetArea(*req.Area)
	}
	if req.PhoneNumber != nil {
		phone, ok := common.NormalizePhone(*req.PhoneNumber)
		if !ok {
			return nil, common.NewValidationAPIError(map[string]string{"phone_number": "Must be a valid E.164 phone number."})
		}
		if profile.PhoneNumber == nil || *profile.PhoneNumber != phone {
			profile.PhoneNumber = &phone
			// A changed number has not been proven by a code.
			profile.IsPhoneVerified = false
		}
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info("Profile updated", zap.String("profileID", profile.ID.String()))
	return profile, nil
}

// ChangePassword replaces the password of a password-based account.
func (s *ServiceImplementation) ChangePassword(ctx context.Context, actor common.Actor, req ChangePasswordRequest) error {
	profile, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if profile.PasswordHash == nil {
		return common.ErrBadRequest.WithDetails("This account signs in through an external provider.")
	}
	if !common.CheckPasswordHash(req.CurrentPassword, *profile.PasswordHash) {
		return common.ErrInvalidCredentials.WithDetails("Current password is incorrect.")
	}

	hash, err := common.HashPassword(req.NewPassword, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error("Failed to hash new password", zap.Error(err))
		return common.ErrInternalServer
	}
	profile.PasswordHash = &hash
	profile.TokenVersion++
	if err := s.repo.Update(ctx, profile); err != nil {
		return err
	}
	s.publishSession(ctx, profile.ID, "signed_out")
	return nil
}

// DeleteOwnAccount removes the caller's profile row and then its identity.
func (s *ServiceImplementation) DeleteOwnAccount(ctx context.Context, actor common.Actor) error {
	profile, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	return s.deleteProfile(ctx, profile)
}

func (s *ServiceImplementation) deleteProfile(ctx context.Context, profile *Profile) error {
	if err := s.repo.Delete(ctx, profile.ID); err != nil {
		return err
	}
	s.logger.Info("Profile deleted", zap.String("profileID", profile.ID.String()))

	// The row is gone so the auth middleware already rejects every token.
	s.publishSession(ctx, profile.ID, "signed_out")

	if profile.AuthProvider == ProviderFirebase && profile.ProviderID != nil && s.revoker != nil {
		if err := s.revoker.RevokeRefreshTokens(ctx, *profile.ProviderID); err != nil {
			s.logger.Warn("Could not revoke external identity", zap.Error(err), zap.String("profileID", profile.ID.String()))
		}
	}
	for _, cleanup := range s.cleanups {
		if err := cleanup.PurgeUserData(ctx, profile.ID); err != nil {
			s.logger.Error("Account cleanup failed", zap.Error(err), zap.String("profileID", profile.ID.String()))
		}
	}
	return nil
}

func requireAdmin(actor common.Actor) error {
	if !actor.IsAdmin() {
		return common.ErrForbidden.WithDetails("Only administrators can manage profiles.")
	}
	return nil
}

// ListProfiles is the admin directory.
func (s *ServiceImplementation) ListProfiles(ctx context.Context, actor common.Actor, filter ListFilter, page, pageSize int) ([]Profile, *common.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	return s.repo.List(ctx, filter, page, pageSize)
}

// UpdateRole changes another profile's role. The new role applies on the next request.
func (s *ServiceImplementation) UpdateRole(ctx context.Context, actor common.Actor, id uuid.UUID, role string) (*Profile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !common.IsValidRole(role) {
		return nil, common.NewValidationAPIError(map[string]string{"role": "Unknown role."})
	}
	if id == actor.ID && role != common.RoleAdmin {
		return nil, common.ErrForbidden.WithDetails("Administrators cannot demote themselves.")
	}

	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.Role == role {
		return profile, nil
	}
	profile.Role = role
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info("Profile role changed",
		zap.String("profileID", id.String()), zap.String("role", role), zap.String("by", actor.ID.String()))
	return profile, nil
}

// SetActive activates or deactivates another profile.
func (s *ServiceImplementation) SetActive(ctx context.Context, actor common.Actor, id uuid.UUID, active bool) (*Profile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if id == actor.ID && !active {
		return nil, common.ErrForbidden.WithDetails("Administrators cannot deactivate themselves.")
	}

	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profile.IsActive = active
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	if !active {
		s.publishSession(ctx, id, "signed_out")
	}
	return profile, nil
}

// DeleteProfile hard-deletes another profile.
func (s *ServiceImplementation) DeleteProfile(ctx context.Context, actor common.Actor, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return common.ErrForbidden.WithDetails("Use account deletion to remove your own profile.")
	}
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.deleteProfile(ctx, profile)
}

// SignOutUser invalidates every outstanding token of a profile.
func (s *ServiceImplementation) SignOutUser(ctx context.Context, actor common.Actor, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.repo.BumpTokenVersion(ctx, id); err != nil {
		return err
	}
	s.publishSession(ctx, id, "signed_out")
	return nil
}

// EmailExists is advisory; signup re-checks at commit time.
func (s *ServiceImplementation) EmailExists(ctx context.Context, email string) (bool, error) {
	email = common.NormalizeEmail(email)
	if !common.LooksLikeEmail(email) {
		return false, common.NewValidationAPIError(map[string]string{"email": "Must be a valid email address."})
	}
	return s.repo.ExistsByEmail(ctx, email)
}

// PhoneExists is advisory; signup re-checks at commit time.
func (s *ServiceImplementation) PhoneExists(ctx context.Context, phone string) (bool, error) {
	normalized, ok := common.NormalizePhone(phone)
	if !ok {
		return false, common.NewValidationAPIError(map[string]string{"phone": "Must be a valid E.164 phone number."})
	}
	return s.repo.ExistsByPhone(ctx, normalized)
}

// FindOrCreateProviderProfile resolves a provider identity to a profile.
// Lookup order: provider id, then verified email (linking), then a new resident.
func (s *ServiceImplementation) FindOrCreateProviderProfile(ctx context.Context, identity shared.OAuthUserProfile) (*Profile, bool, error) {
	log := s.logger.With(zap.String("provider", identity.Provider), zap.String("providerID", identity.ProviderID))
	now := time.Now().UTC()

	existing, err := s.repo.FindByProvider(ctx, identity.Provider, identity.ProviderID)
	if err == nil {
		existing.LastLoginAt = &now
		if identity.EmailVerified && existing.Email != nil && *existing.Email == common.NormalizeEmail(identity.Email) {
			existing.IsEmailVerified = true
		}
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}

	if identity.Email != "" && identity.EmailVerified {
		byEmail, emailErr := s.repo.FindByEmail(ctx, identity.Email)
		if emailErr == nil {
			if byEmail.AuthProvider != ProviderLocal && byEmail.AuthProvider != identity.Provider {
				return nil, false, common.ErrConflict.WithDetails(
					fmt.Sprintf("This email is already linked to a %s account.", byEmail.AuthProvider))
			}
			log.Info("Linking provider identity to existing profile", zap.String("profileID", byEmail.ID.String()))
			providerID := identity.ProviderID
			byEmail.AuthProvider = identity.Provider
			byEmail.ProviderID = &providerID
			byEmail.IsEmailVerified = true
			byEmail.LastLoginAt = &now
			if err := s.repo.Update(ctx, byEmail); err != nil {
				return nil, false, err
			}
			return byEmail, false, nil
		}
		if !errors.Is(emailErr, common.ErrNotFound) {
			return nil, false, emailErr
		}
	}

	providerID := identity.ProviderID
	profile := &Profile{
		Name:            strings.TrimSpace(identity.Name),
		Role:            common.RoleResident,
		IsActive:        true,
		IsEmailVerified: identity.EmailVerified,
		AuthProvider:    identity.Provider,
		ProviderID:      &providerID,
		LastLoginAt:     &now,
	}
	if profile.Name == "" {
		profile.Name = "Resident"
	}
	if identity.Email != "" {
		email := common.NormalizeEmail(identity.Email)
		profile.Email = &email
	}
	if phone, ok := common.NormalizePhone(identity.PhoneNumber); ok {
		profile.PhoneNumber = &phone
		profile.IsPhoneVerified = true
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, false, err
	}
	log.Info("Created profile for provider identity", zap.String("profileID", profile.ID.String()))
	return profile, true, nil
}

func (s *ServiceImplementation) publishSession(ctx context.Context, id uuid.UUID, action string) {
	ev := realtime.NewEvent(realtime.TableSession, realtime.EventUpdate, id, &id)
	ev.Action = action
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish session event", zap.Error(err))
	}
}
