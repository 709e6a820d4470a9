package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/internal/users"
	pkgAuth "github.com/angelmondragon/supplyhub-backend/pkg/auth"
	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/db"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
	"github.com/angelmondragon/supplyhub-backend/pkg/metrics"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	duplicateUserMessage      = "email or phone already registered"
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error)
	Login(ctx context.Context, req LoginRequest) (*SessionResponse, error)
	Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo  userRepository
	Hasher    passwordHasher
	JWTConfig config.JWTConfig
	Logger    *logger.Logger
	Metrics   *metrics.DomainMetrics
	Now       func() time.Time
}

type service struct {
	users   userRepository
	hasher  passwordHasher
	jwtCfg  config.JWTConfig
	logg    *logger.Logger
	metrics *metrics.DomainMetrics
	now     func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if params.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:   params.UserRepo,
		hasher:  params.Hasher,
		jwtCfg:  params.JWTConfig,
		logg:    logg,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error) {
	resp, err := s.register(ctx, req)
	s.metrics.AuthAttempt("register", err == nil)
	return resp, err
}

func (s *service) register(ctx context.Context, req RegisterRequest) (*SessionResponse, error) {
	email := users.NormalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return nil, pkgerrors.Validation("name is required")
	case email == "":
		return nil, pkgerrors.Validation("email is required")
	case phone == "":
		return nil, pkgerrors.Validation("phone is required")
	case req.Password == "":
		return nil, pkgerrors.Validation("password is required")
	}

	role := enums.RoleCustomer
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := enums.ParseRole(req.Role)
		if err != nil || !parsed.SelfRegistrable() {
			return nil, pkgerrors.Validation("invalid role")
		}
		role = parsed
	}

	taken, err := s.users.ExistsByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing user")
	}
	if taken {
		return nil, pkgerrors.Validation(duplicateUserMessage)
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		Address:      req.Address,
		Role:         role,
	})
	if err != nil {
		// concurrent sign-up with the same identifiers
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Validation(duplicateUserMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(s.logg.WithActorRole(ctx, role.String()), "user registered")

	return s.issue(user)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*SessionResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	s.metrics.AuthAttempt("login", err == nil)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return users.FromModel(user), nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := users.NormalizeEmail(email)
	if input == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) issue(user *models.User) (*SessionResponse, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &SessionResponse{
		User:  sessionUser(users.FromModel(user)),
		Token: token,
	}, nil
}
