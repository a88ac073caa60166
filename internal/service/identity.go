package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/comanda-app/api/internal/auth"
	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/navigation"
	"github.com/comanda-app/api/internal/profile"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// Errors returned by the identity service.
var (
	ErrCredentialsRequired = errors.New("email and password are required")
	ErrPasswordTooShort    = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrInvalidRole         = errors.New("invalid role")
	ErrNameRequired        = errors.New("name is required")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrSessionExpired      = errors.New("session expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// IdentityStore defines the DB methods needed by sign-up, sign-in and staff
// provisioning. Satisfied by *database.Queries.
type IdentityStore interface {
	CreateCompany(ctx context.Context, name string) (database.Company, error)
	CreateIdentity(ctx context.Context, arg database.CreateIdentityParams) (database.Identity, error)
	CreateProfile(ctx context.Context, arg database.CreateProfileParams) (database.Profile, error)
	GetIdentityByEmail(ctx context.Context, email string) (database.Identity, error)
	GetIdentityByID(ctx context.Context, id uuid.UUID) (database.Identity, error)
	GetProfileIncludingDeleted(ctx context.Context, id uuid.UUID) (database.Profile, error)
}

// NewIdentityStore creates an IdentityStore from a DBTX (pool or tx).
type NewIdentityStore func(db database.DBTX) IdentityStore

// ProfileResolver is satisfied by *profile.Resolver.
type ProfileResolver interface {
	Resolve(ctx context.Context, id profile.Identity) profile.Resolution
}

// TokenRevoker is satisfied by *auth.RevocationStore.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenConfig holds signing parameters for issued sessions.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SignUpRequest is the input of SignUp. Name and CompanyName are the sign-up
// metadata; both fall back to values derived from Email.
type SignUpRequest struct {
	Email       string
	Password    string
	Name        string
	CompanyName string
}

// CreateStaffRequest provisions a staff member inside an existing company.
type CreateStaffRequest struct {
	CompanyID uuid.UUID
	Name      string
	Email     string
	Password  string
	Role      string
}

// Session is an authenticated identity, its resolved profile and the
// route the client should land on.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       uuid.UUID
	Email        string
	Profile      database.Profile
	// ProfileFallback is set when Profile was synthesized and not stored.
	ProfileFallback bool
	Landing         string
}

// IdentityService issues and rotates sessions.
type IdentityService struct {
	pool     TxBeginner
	store    IdentityStore
	newStore NewIdentityStore
	resolver ProfileResolver
	revoker  TokenRevoker
	tokens   TokenConfig
	logger   *zap.Logger
}

// NewIdentityService creates a new IdentityService. store serves reads
// outside transactions; newStore is used inside them.
func NewIdentityService(pool TxBeginner, store IdentityStore, newStore NewIdentityStore, resolver ProfileResolver, revoker TokenRevoker, tokens TokenConfig, logger *zap.Logger) *IdentityService {
	return &IdentityService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		resolver: resolver,
		revoker:  revoker,
		tokens:   tokens,
		logger:   logger,
	}
}

// SignUp creates a company, an identity and its admin profile in one
// transaction and signs the new user in.
func (s *IdentityService) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	email, err := validateCredentials(req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = emailLocalPart(email)
	}
	companyName := strings.TrimSpace(req.CompanyName)
	if companyName == "" {
		companyName = name
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	company, err := store.CreateCompany(ctx, companyName)
	if err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}

	identity, err := store.CreateIdentity(ctx, database.CreateIdentityParams{
		Email:          email,
		HashedPassword: string(hashed),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}

	p, err := store.CreateProfile(ctx, database.CreateProfileParams{
		ID:        identity.ID,
		CompanyID: company.ID,
		Name:      name,
		Email:     email,
		Role:      enum.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("company signed up",
		zap.String("company_id", company.ID.String()),
		zap.String("user_id", identity.ID.String()))

	return s.issue(identity, profile.Resolution{Profile: p})
}

// SignIn verifies email and password and issues a session for the
// resolved profile. Staff removed by an admin cannot sign in.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := validateCredentials(email, password)
	if err != nil && !errors.Is(err, ErrPasswordTooShort) {
		return nil, err
	}

	identity, err := s.store.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.checkNotDisabled(ctx, identity.ID); err != nil {
		return nil, err
	}

	return s.issue(identity, s.resolve(ctx, identity))
}

// Refresh exchanges a refresh token for a new session. The presented token
// is revoked so each refresh token is used at most once.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.validateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	identity, err := s.store.GetIdentityByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	if err := s.checkNotDisabled(ctx, identity.ID); err != nil {
		return nil, err
	}

	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}

	return s.issue(identity, s.resolve(ctx, identity))
}

// SignOut revokes the refresh token. An already expired token has nothing
// left to revoke.
func (s *IdentityService) SignOut(ctx context.Context, refreshToken string) error {
	claims, err := auth.ValidateRefreshToken(s.tokens.Secret, refreshToken)
	if err != nil {
		if auth.IsExpired(err) {
			return nil
		}
		return ErrInvalidRefreshToken
	}
	return s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Session describes the bearer of an access token without issuing new
// tokens.
func (s *IdentityService) Session(ctx context.Context, claims *auth.Claims) (*Session, error) {
	identity, err := s.store.GetIdentityByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	res := s.resolve(ctx, identity)
	exp := time.Time{}
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return &Session{
		ExpiresAt:       exp,
		UserID:          identity.ID,
		Email:           identity.Email,
		Profile:         res.Profile,
		ProfileFallback: res.Fallback,
		Landing:         navigation.RouteForRole(res.Profile.Role),
	}, nil
}

// CreateStaff creates an identity and a profile for a staff member of an
// existing company.
func (s *IdentityService) CreateStaff(ctx context.Context, req CreateStaffRequest) (database.Profile, error) {
	email, err := validateCredentials(req.Email, req.Password)
	if err != nil {
		return database.Profile{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return database.Profile{}, ErrNameRequired
	}
	if !enum.IsValidRole(req.Role) {
		return database.Profile{}, ErrInvalidRole
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return database.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Profile{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	identity, err := store.CreateIdentity(ctx, database.CreateIdentityParams{
		Email:          email,
		HashedPassword: string(hashed),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return database.Profile{}, ErrEmailTaken
		}
		return database.Profile{}, fmt.Errorf("create identity: %w", err)
	}

	p, err := store.CreateProfile(ctx, database.CreateProfileParams{
		ID:        identity.ID,
		CompanyID: req.CompanyID,
		Name:      name,
		Email:     email,
		Role:      req.Role,
	})
	if err != nil {
		return database.Profile{}, fmt.Errorf("create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Profile{}, fmt.Errorf("commit tx: %w", err)
	}
	return p, nil
}

func (s *IdentityService) validateRefresh(ctx context.Context, token string) (*auth.RefreshClaims, error) {
	if token == "" {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := auth.ValidateRefreshToken(s.tokens.Secret, token)
	if err != nil {
		if auth.IsExpired(err) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidRefreshToken
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidRefreshToken
	}
	return claims, nil
}

// checkNotDisabled rejects identities whose profile was soft-deleted.
// Lookup failures are left to the resolver.
func (s *IdentityService) checkNotDisabled(ctx context.Context, id uuid.UUID) error {
	p, err := s.store.GetProfileIncludingDeleted(ctx, id)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("profile status lookup failed", zap.String("user_id", id.String()), zap.Error(err))
		}
		return nil
	}
	if p.DeletedAt.Valid {
		return ErrAccountDisabled
	}
	return nil
}

func (s *IdentityService) resolve(ctx context.Context, identity database.Identity) profile.Resolution {
	return s.resolver.Resolve(ctx, profile.Identity{
		ID:    identity.ID,
		Email: identity.Email,
		Name:  emailLocalPart(identity.Email),
	})
}

func (s *IdentityService) issue(identity database.Identity, res profile.Resolution) (*Session, error) {
	access, expiresAt, err := auth.GenerateToken(s.tokens.Secret, identity.ID, res.Profile.CompanyID, res.Profile.Role, s.tokens.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := auth.GenerateRefreshToken(s.tokens.Secret, identity.ID, s.tokens.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &Session{
		AccessToken:     access,
		RefreshToken:    refresh,
		ExpiresAt:       expiresAt,
		UserID:          identity.ID,
		Email:           identity.Email,
		Profile:         res.Profile,
		ProfileFallback: res.Fallback,
		Landing:         navigation.RouteForRole(res.Profile.Role),
	}, nil
}

func validateCredentials(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", ErrCredentialsRequired
	}
	if len(password) < minPasswordLength {
		return email, ErrPasswordTooShort
	}
	return email, nil
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
