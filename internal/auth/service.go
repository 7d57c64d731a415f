package auth

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/logging"
)

// RequestMeta carries caller attributes recorded in the activity log.
type RequestMeta struct {
	RemoteIP  string
	UserAgent string
}

// TokenPair is the response body for login and refresh. It carries the
// issued tokens plus the user attributes clients display.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Role         Role   `json:"role"`
	Matricule    string `json:"matricule"`
	FullName     string `json:"full_name"`
}

// VerifyResult describes a validated token for downstream services.
type VerifyResult struct {
	Valid          bool   `json:"valid"`
	UserID         string `json:"user_id"`
	Matricule      string `json:"matricule"`
	Role           string `json:"role"`
	ClearanceLevel string `json:"clearance_level"`
}

// UserPage is a paginated user listing.
type UserPage struct {
	Items    []User `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Pages    int    `json:"pages"`
}

// Service implements authentication and user management on top of a Store.
type Service struct {
	store    Store
	tokens   *TokenManager
	activity *ActivityLog
	logger   *logging.Logger
}

func NewService(store Store, tokens *TokenManager, activity *ActivityLog, logger *logging.Logger) *Service {
	if activity == nil {
		activity = NewActivityLog(0, nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, tokens: tokens, activity: activity, logger: logger}
}

// Login verifies credentials and issues an access/refresh token pair.
// Failures are reported uniformly so callers cannot probe for matricules.
func (s *Service) Login(ctx context.Context, matricule, password string, meta RequestMeta) (TokenPair, error) {
	record := func(userID string, success bool, detail string) {
		s.activity.Add(ActivityEntry{
			Matricule: matricule,
			UserID:    userID,
			Action:    "login",
			Success:   success,
			Detail:    detail,
			RemoteIP:  meta.RemoteIP,
			UserAgent: meta.UserAgent,
		})
	}

	user, err := s.store.GetUserByMatricule(ctx, matricule)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			record("", false, "unknown matricule")
			return TokenPair{}, errors.Unauthorized("incorrect matricule or password")
		}
		return TokenPair{}, errors.Internal("login failed", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		record(user.ID, false, "wrong password")
		s.logger.WithContext(ctx).LogSecurityEvent(ctx, "login_failed", map[string]interface{}{
			"matricule": matricule,
			"remote_ip": meta.RemoteIP,
		})
		return TokenPair{}, errors.Unauthorized("incorrect matricule or password")
	}
	if !user.IsActive {
		record(user.ID, false, "account disabled")
		return TokenPair{}, errors.Forbidden("account is disabled")
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return TokenPair{}, errors.Internal("token issuance failed", err)
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("failed to record last login")
	}
	record(user.ID, true, "")
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token is returned unchanged so its original expiry holds.
// Refresh tokens identify the user only by subject matricule.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, errors.InvalidToken(err)
	}
	user, err := s.store.GetUserByMatricule(ctx, claims.Subject)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return TokenPair{}, errors.Unauthorized("user no longer exists")
		}
		return TokenPair{}, errors.Internal("refresh failed", err)
	}
	if !user.IsActive {
		return TokenPair{}, errors.Forbidden("account is disabled")
	}

	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, errors.Internal("token issuance failed", err)
	}
	s.activity.Add(ActivityEntry{Matricule: user.Matricule, UserID: user.ID, Action: "refresh", Success: true})
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokens.AccessTokenTTL().Seconds()),
		Role:         user.Role,
		Matricule:    user.Matricule,
		FullName:     user.FullName,
	}, nil
}

// VerifyToken validates an access token on behalf of another service. The
// user is re-checked against the store so a deleted or deactivated account
// stops validating before its tokens expire.
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (VerifyResult, error) {
	claims, err := s.tokens.ParseAccessToken(tokenString)
	if err != nil {
		return VerifyResult{Valid: false}, errors.InvalidToken(err)
	}
	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return VerifyResult{Valid: false}, errors.Unauthorized("user no longer exists")
		}
		return VerifyResult{Valid: false}, errors.Internal("token verification failed", err)
	}
	if !user.IsActive {
		return VerifyResult{Valid: false}, errors.Forbidden("account is disabled")
	}
	return VerifyResult{
		Valid:          true,
		UserID:         user.ID,
		Matricule:      user.Matricule,
		Role:           string(user.Role),
		ClearanceLevel: string(user.ClearanceLevel),
	}, nil
}

// Logout records the event. Access tokens stay valid until expiry; the
// short TTL bounds the exposure window.
func (s *Service) Logout(ctx context.Context, tokenString string, meta RequestMeta) {
	entry := ActivityEntry{Action: "logout", Success: true, RemoteIP: meta.RemoteIP, UserAgent: meta.UserAgent}
	if claims, err := s.tokens.ParseAccessToken(tokenString); err == nil {
		entry.Matricule = claims.Subject
		entry.UserID = claims.UserID
	}
	s.activity.Add(entry)
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, errors.Internal("password hashing failed", err)
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	user, err := s.store.CreateUser(ctx, User{
		Matricule:      in.Matricule,
		FullName:       in.FullName,
		Email:          in.Email,
		HashedPassword: string(hashed),
		Role:           in.Role,
		ClearanceLevel: in.ClearanceLevel,
		IsActive:       active,
	})
	if err != nil {
		if stderrors.Is(err, ErrDuplicate) {
			return User{}, errors.Conflict("matricule or email already registered")
		}
		return User{}, errors.Internal("user creation failed", err)
	}
	s.activity.Add(ActivityEntry{Matricule: user.Matricule, UserID: user.ID, Action: "user_created", Success: true})
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return User{}, errors.NotFound("user not found")
		}
		return User{}, errors.Internal("user lookup failed", err)
	}
	return user, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.FullName != nil {
		user.FullName = *in.FullName
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, errors.Internal("password hashing failed", err)
		}
		user.HashedPassword = string(hashed)
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.ClearanceLevel != nil {
		user.ClearanceLevel = *in.ClearanceLevel
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	updated, err := s.store.UpdateUser(ctx, user)
	if err != nil {
		switch {
		case stderrors.Is(err, ErrNotFound):
			return User{}, errors.NotFound("user not found")
		case stderrors.Is(err, ErrDuplicate):
			return User{}, errors.Conflict("email already registered")
		}
		return User{}, errors.Internal("user update failed", err)
	}
	s.activity.Add(ActivityEntry{Matricule: updated.Matricule, UserID: updated.ID, Action: "user_updated", Success: true})
	return updated, nil
}

// UpdateProfile applies a self-service update. Role, clearance and
// account status can only be changed by an administrator.
func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateUserInput) (User, error) {
	if in.Role != nil || in.ClearanceLevel != nil || in.IsActive != nil {
		return User{}, errors.Forbidden("role, clearance and account status cannot be self-assigned")
	}
	return s.UpdateUser(ctx, id, in)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return errors.NotFound("user not found")
		}
		return errors.Internal("user deletion failed", err)
	}
	s.activity.Add(ActivityEntry{Matricule: user.Matricule, UserID: user.ID, Action: "user_deleted", Success: true})
	return nil
}

// ListUsers returns one page of users. Page numbers start at 1.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter, page, pageSize int) (UserPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	users, total, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return UserPage{}, errors.Internal("user listing failed", err)
	}
	if users == nil {
		users = []User{}
	}
	pages := (total + pageSize - 1) / pageSize
	return UserPage{Items: users, Total: total, Page: page, PageSize: pageSize, Pages: pages}, nil
}

// ChangePassword lets a user rotate their own password after proving the
// current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	if len(next) < 8 {
		return errors.BadRequest("new password must be at least 8 characters")
	}
	if current == next {
		return errors.BadRequest("new password must differ from the current one")
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(current)) != nil {
		s.activity.Add(ActivityEntry{Matricule: user.Matricule, UserID: user.ID, Action: "change_password", Success: false, Detail: "wrong current password"})
		return errors.Unauthorized("current password is incorrect")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return errors.Internal("password hashing failed", err)
	}
	user.HashedPassword = string(hashed)
	if _, err := s.store.UpdateUser(ctx, user); err != nil {
		return errors.Internal("password update failed", err)
	}
	s.activity.Add(ActivityEntry{Matricule: user.Matricule, UserID: user.ID, Action: "change_password", Success: true})
	return nil
}

// Activity returns the most recent auth events, newest last.
func (s *Service) Activity(limit int) []ActivityEntry {
	return s.activity.List(limit)
}

func (s *Service) issuePair(user User) (TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokens.AccessTokenTTL().Seconds()),
		Role:         user.Role,
		Matricule:    user.Matricule,
		FullName:     user.FullName,
	}, nil
}
