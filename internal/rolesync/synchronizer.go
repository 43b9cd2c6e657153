package rolesync

import (
	"context"
	"errors"
	"time"

	"github.com/ngx-workshop/user-metadata-api/internal/usermeta"
	"go.uber.org/zap"
)

const defaultPropagationTimeout = 5 * time.Second

const taskRolePropagation = "role_propagation"

var (
	// ErrUnauthorized indicates a propagation attempt with no forwardable token.
	ErrUnauthorized = errors.New("rolesync: propagation unauthorized")

	errMissingRecords    = errors.New("rolesync: record store required")
	errMissingClient     = errors.New("rolesync: auth client required")
	errMissingDispatcher = errors.New("rolesync: dispatcher required")
)

// RecordStore is the local-commit half of the protocol, satisfied by
// usermeta.Service.
type RecordStore interface {
	UpdateRole(ctx context.Context, uuid string, role usermeta.Role) (usermeta.Record, error)
}

// RoleClient pushes a committed role to the remote authority.
type RoleClient interface {
	PushRole(ctx context.Context, uuid string, role usermeta.Role, token string) error
}

// SynchronizerConfig wires the dual-write dependencies.
type SynchronizerConfig struct {
	Records    RecordStore
	Client     RoleClient
	Dispatcher *Dispatcher
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Synchronizer keeps the local role cache and the remote authority in
// agreement. The local store is the fast-path source of truth; the remote
// side is eventually consistent with it. Propagation is push-only — nothing
// ever reconciles the local value back from the authority, a known gap.
type Synchronizer struct {
	records    RecordStore
	client     RoleClient
	dispatcher *Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
}

// NewSynchronizer constructs the role synchronizer.
func NewSynchronizer(cfg SynchronizerConfig) (*Synchronizer, error) {
	if cfg.Records == nil {
		return nil, errMissingRecords
	}
	if cfg.Client == nil {
		return nil, errMissingClient
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPropagationTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		records:    cfg.Records,
		client:     cfg.Client,
		dispatcher: cfg.Dispatcher,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// UpdateRole commits the role locally, then detaches propagation to the
// remote authority. The caller gets the local commit's outcome immediately;
// a propagation failure is logged, never rolled back, and never retried.
func (s *Synchronizer) UpdateRole(ctx context.Context, uuid string, role usermeta.Role, token string) (usermeta.Record, error) {
	record, err := s.records.UpdateRole(ctx, uuid, role)
	if err != nil {
		return usermeta.Record{}, err
	}

	taskID, err := s.dispatcher.Enqueue(
		taskRolePropagation,
		func(taskCtx context.Context) error {
			// Fail before any network activity when no token was forwarded.
			if token == "" {
				return ErrUnauthorized
			}
			pushCtx, cancel := context.WithTimeout(taskCtx, s.timeout)
			defer cancel()
			return s.client.PushRole(pushCtx, uuid, role, token)
		},
		zap.String("uuid", uuid),
		zap.String("role", role.String()),
	)
	if err != nil {
		// The local commit already succeeded; losing the propagation slot is
		// the same consistency gap as a failed remote call.
		s.logger.Error("role propagation not enqueued",
			zap.String("uuid", uuid),
			zap.String("role", role.String()),
			zap.Error(err))
		return record, nil
	}

	s.logger.Info("role propagation enqueued",
		zap.String("task_id", taskID),
		zap.String("uuid", uuid),
		zap.String("role", role.String()))
	return record, nil
}
