package usermeta

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew = "usermeta.service.new"
	opUpsert     = "usermeta.upsert"
	opFind       = "usermeta.find"
	opCreate     = "usermeta.create"
	opUpdate     = "usermeta.update"
	opUpdateRole = "usermeta.update_role"
	opRemove     = "usermeta.remove"
)

// ServiceConfig describes the dependencies required by the record service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns the identity-keyed lifecycle of metadata records.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the record service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// UpsertByUUID creates or refreshes the record for an external identity in a
// single atomic store call. Concurrent first contacts for the same uuid race
// on the unique index, not on a check-then-create window.
func (s *Service) UpsertByUUID(ctx context.Context, rawUUID string, hints ProfileHints) (Record, error) {
	uuid, err := normalizeUUID(rawUUID)
	if err != nil {
		return Record{}, err
	}

	now := s.clock().UTC()
	record := Record{
		UUID:        uuid,
		Role:        RoleUser,
		FirstName:   hints.FirstName,
		LastName:    hints.LastName,
		Email:       hints.Email,
		AvatarURL:   hints.AvatarURL,
		Description: DefaultDescription,
		LastUpdated: now,
		Version:     1,
	}

	assignments := map[string]interface{}{
		"last_updated": now,
		"version":      gorm.Expr("version + 1"),
	}
	if hints.Email != "" {
		assignments["email"] = hints.Email
	}
	if hints.FirstName != "" {
		assignments["first_name"] = hints.FirstName
	}
	if hints.LastName != "" {
		assignments["last_name"] = hints.LastName
	}
	if hints.AvatarURL != "" {
		assignments["avatar_url"] = hints.AvatarURL
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&record).Error
	if err != nil {
		s.logError(opUpsert, "upsert_failed", err, zap.String("uuid", uuid))
		return Record{}, newServiceError(opUpsert, "upsert_failed", err)
	}

	// The conflict path does not reload the row; read the committed state back.
	var stored Record
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).Take(&stored).Error; err != nil {
		s.logError(opUpsert, "readback_failed", err, zap.String("uuid", uuid))
		return Record{}, newServiceError(opUpsert, "readback_failed", err)
	}
	return stored, nil
}

// FindByUUID returns the record for an identity, lazily provisioning one when
// none exists. A valid authenticated identity never observes NotFound here.
func (s *Service) FindByUUID(ctx context.Context, rawUUID string) (Record, error) {
	uuid, err := normalizeUUID(rawUUID)
	if err != nil {
		return Record{}, err
	}

	var record Record
	err = s.db.WithContext(ctx).Where("uuid = ?", uuid).Take(&record).Error
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opFind, "query_failed", err, zap.String("uuid", uuid))
		return Record{}, newServiceError(opFind, "query_failed", err)
	}
	return s.UpsertByUUID(ctx, uuid, ProfileHints{})
}

// Create inserts a record for a previously unseen identity.
func (s *Service) Create(ctx context.Context, input CreateInput) (Record, error) {
	uuid, err := normalizeUUID(input.UUID)
	if err != nil {
		return Record{}, err
	}

	description := input.Description
	if description == "" {
		description = DefaultDescription
	}
	record := Record{
		UUID:        uuid,
		Role:        RoleUser,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       input.Email,
		AvatarURL:   input.AvatarURL,
		Description: description,
		LastUpdated: s.clock().UTC(),
		Version:     1,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Record{}, ErrConflict
		}
		s.logError(opCreate, "insert_failed", err, zap.String("uuid", uuid))
		return Record{}, newServiceError(opCreate, "insert_failed", err)
	}
	return record, nil
}

// Update applies the present fields of a partial update atomically.
func (s *Service) Update(ctx context.Context, rawUUID string, input UpdateInput) (Record, error) {
	uuid, err := normalizeUUID(rawUUID)
	if err != nil {
		return Record{}, err
	}

	updates := map[string]interface{}{
		"last_updated": s.clock().UTC(),
		"version":      gorm.Expr("version + 1"),
	}
	if input.FirstName != nil {
		updates["first_name"] = *input.FirstName
	}
	if input.LastName != nil {
		updates["last_name"] = *input.LastName
	}
	if input.Email != nil {
		updates["email"] = *input.Email
	}
	if input.AvatarURL != nil {
		updates["avatar_url"] = *input.AvatarURL
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}

	result := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("uuid = ?", uuid).
		Updates(updates)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return Record{}, ErrConflict
		}
		s.logError(opUpdate, "update_failed", result.Error, zap.String("uuid", uuid))
		return Record{}, newServiceError(opUpdate, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Record{}, ErrNotFound
	}

	var record Record
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).Take(&record).Error; err != nil {
		s.logError(opUpdate, "readback_failed", err, zap.String("uuid", uuid))
		return Record{}, newServiceError(opUpdate, "readback_failed", err)
	}
	return record, nil
}

// UpdateRole commits a role change to the local cache. This is the
// synchronous half of the role protocol; remote propagation is owned by the
// rolesync package and never blocks or rolls back this commit.
func (s *Service) UpdateRole(ctx context.Context, rawUUID string, role Role) (Record, error) {
	uuid, err := normalizeUUID(rawUUID)
	if err != nil {
		return Record{}, err
	}
	if _, err := ParseRole(role.String()); err != nil {
		return Record{}, err
	}

	result := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("uuid = ?", uuid).
		Updates(map[string]interface{}{
			"role":         role,
			"last_updated": s.clock().UTC(),
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		s.logError(opUpdateRole, "update_failed", result.Error,
			zap.String("uuid", uuid), zap.String("role", role.String()))
		return Record{}, newServiceError(opUpdateRole, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Record{}, ErrNotFound
	}

	var record Record
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).Take(&record).Error; err != nil {
		s.logError(opUpdateRole, "readback_failed", err, zap.String("uuid", uuid))
		return Record{}, newServiceError(opUpdateRole, "readback_failed", err)
	}
	return record, nil
}

// Remove deletes the record for an identity. Deletion is terminal.
func (s *Service) Remove(ctx context.Context, rawUUID string) error {
	uuid, err := normalizeUUID(rawUUID)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Where("uuid = ?", uuid).Delete(&Record{})
	if result.Error != nil {
		s.logError(opRemove, "delete_failed", result.Error, zap.String("uuid", uuid))
		return newServiceError(opRemove, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("usermeta service error", attrs...)
}
