// Package profile maps an authenticated identity to its tenant-scoped
// profile. Resolution never fails: when no profile can be read one is
// synthesized from the Policy.
package profile

import (
	"context"
	"errors"

	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PlaceholderCompanyID is the tenant assigned to profiles that have none.
// The migrations seed a company with this id.
var PlaceholderCompanyID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("default-company-id"))

// Policy decides what a missing profile resolves to.
type Policy struct {
	OnMissingRole        string
	PlaceholderCompanyID uuid.UUID
	// PersistMissing makes the resolver try to store the synthesized
	// profile. A failed write is logged only.
	PersistMissing bool
}

func DefaultPolicy() Policy {
	return Policy{
		OnMissingRole:        enum.RoleAdmin,
		PlaceholderCompanyID: PlaceholderCompanyID,
		PersistMissing:       true,
	}
}

// Identity is what the identity provider knows about a signed-in user.
type Identity struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// Store is satisfied by *database.Queries.
type Store interface {
	GetProfile(ctx context.Context, id uuid.UUID) (database.Profile, error)
	CreateProfile(ctx context.Context, arg database.CreateProfileParams) (database.Profile, error)
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Profile database.Profile
	// Provisioned is set when a new profile row was written.
	Provisioned bool
	// Fallback is set when the profile exists only in memory.
	Fallback bool
}

type Resolver struct {
	store  Store
	policy Policy
	logger *zap.Logger
}

func NewResolver(store Store, policy Policy, logger *zap.Logger) *Resolver {
	if policy.OnMissingRole == "" {
		policy.OnMissingRole = enum.RoleAdmin
	}
	if policy.PlaceholderCompanyID == uuid.Nil {
		policy.PlaceholderCompanyID = PlaceholderCompanyID
	}
	return &Resolver{store: store, policy: policy, logger: logger}
}

func (r *Resolver) Policy() Policy { return r.policy }

// Resolve returns the stored profile of id, or a synthesized one.
func (r *Resolver) Resolve(ctx context.Context, id Identity) Resolution {
	log := r.logger.With(zap.String("user_id", id.ID.String()))

	p, err := r.store.GetProfile(ctx, id.ID)
	if err == nil {
		if p.CompanyID == uuid.Nil {
			p.CompanyID = r.policy.PlaceholderCompanyID
		}
		return Resolution{Profile: p}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		log.Info("no profile for identity, synthesizing", zap.String("role", r.policy.OnMissingRole))
	} else {
		log.Warn("profile lookup failed, synthesizing", zap.Error(err))
	}

	synthesized := database.Profile{
		ID:        id.ID,
		CompanyID: r.policy.PlaceholderCompanyID,
		Name:      id.Name,
		Email:     id.Email,
		Role:      r.policy.OnMissingRole,
	}

	if !r.policy.PersistMissing {
		metrics.ObserveProfileFallback(false)
		return Resolution{Profile: synthesized, Fallback: true}
	}

	created, err := r.store.CreateProfile(ctx, database.CreateProfileParams{
		ID:        synthesized.ID,
		CompanyID: synthesized.CompanyID,
		Name:      synthesized.Name,
		Email:     synthesized.Email,
		Role:      synthesized.Role,
	})
	if err != nil {
		log.Warn("persist synthesized profile failed", zap.Error(err))
		metrics.ObserveProfileFallback(false)
		return Resolution{Profile: synthesized, Fallback: true}
	}
	metrics.ObserveProfileFallback(true)
	return Resolution{Profile: created, Provisioned: true}
}
