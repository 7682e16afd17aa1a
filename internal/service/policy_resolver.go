package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"parking-service/internal/model"
	"parking-service/internal/repository"
	"parking-service/internal/utils"
)

type PolicyStore interface {
	GetByPlate(ctx context.Context, plate string) (*model.CarPolicy, error)
	Create(ctx context.Context, policy *model.CarPolicy) error
	Upsert(ctx context.Context, policy *model.CarPolicy) (bool, error)
}

type PolicyResolver struct {
	store     PolicyStore
	publisher EventPublisher
	log       zerolog.Logger
}

func NewPolicyResolver(store PolicyStore, publisher EventPublisher, log zerolog.Logger) *PolicyResolver {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &PolicyResolver{
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// Resolve returns the policy for an already normalized plate, creating a
// normal one on first sighting.
func (r *PolicyResolver) Resolve(ctx context.Context, plate string) (*model.CarPolicy, error) {
	policy, err := r.store.GetByPlate(ctx, plate)
	if err == nil {
		return policy, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	policy = &model.CarPolicy{Plate: plate}
	if err := r.store.Create(ctx, policy); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return r.store.GetByPlate(ctx, plate)
		}
		return nil, err
	}

	r.log.Info().Str("plate", plate).Msg("car registered on first sighting")
	return policy, nil
}

func (r *PolicyResolver) Get(ctx context.Context, rawPlate string) (*model.CarPolicy, error) {
	plate := utils.NormalizePlate(rawPlate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}

	policy, err := r.store.GetByPlate(ctx, plate)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return policy, nil
}

type PolicyUpdate struct {
	Free        bool
	SpecialTaxi bool
	Blocked     bool
	Position    *string
}

func (r *PolicyResolver) UpdatePolicy(ctx context.Context, principal model.Principal, rawPlate string, input PolicyUpdate) (*model.CarPolicy, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	plate := utils.NormalizePlate(rawPlate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}

	var position *string
	if input.Position != nil {
		if trimmed := strings.TrimSpace(*input.Position); trimmed != "" {
			position = &trimmed
		}
	}
	if input.Free && position == nil {
		return nil, fmt.Errorf("%w: position is required for free cars", ErrInvalidInput)
	}

	policy := &model.CarPolicy{
		Plate:       plate,
		Free:        input.Free,
		SpecialTaxi: input.SpecialTaxi,
		Blocked:     input.Blocked,
		Position:    position,
	}

	created, err := r.store.Upsert(ctx, policy)
	if err != nil {
		return nil, err
	}

	action := ActionPolicyUpdated
	if created {
		action = ActionPolicyCreated
	}

	r.log.Info().
		Str("plate", plate).
		Str("kind", policy.Kind()).
		Str("action", string(action)).
		Str("user_id", principal.UserID.String()).
		Msg("car policy saved")

	r.publisher.PolicyChanged(context.WithoutCancel(ctx), PolicyEvent{Action: action, Policy: *policy})
	return policy, nil
}
