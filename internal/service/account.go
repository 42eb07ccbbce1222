package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/auth"
	"github.com/sakif/socialgraph/internal/metrics"
	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/repository"
)

const (
	MinUsernameLength        = 3
	MinChangedUsernameLength = 6
	MaxUsernameLength        = 30
	MinPasswordLength        = 6
	MaxSearchResults         = 20
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

var errBadCredentials = apperror.ValidationFailed("username", "Invalid username or password")

// AccountService handles identity: signup, login and account settings.
//
//	AccountHandler (HTTP) → AccountService → UserRepository (DB)
//	                                      ↘ TokenService / PasswordService
//	                                      ↘ FileRemover (old avatars)
type AccountService struct {
	store     repository.Store
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	files     FileRemover
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewAccountService(
	store repository.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	files FileRemover,
	logger *slog.Logger,
	m *metrics.Metrics,
) *AccountService {
	return &AccountService{
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		files:     files,
		logger:    logger,
		metrics:   m,
	}
}

// SignupInput carries the signup form.
type SignupInput struct {
	Username string
	Password string
	Name     string
	Surname  string
}

// AuthResult bundles the account and its token so the handler can set the
// cookie and respond in one step.
type AuthResult struct {
	User  model.AccountUser
	Token string
}

func validateUsername(username string, minLen int) error {
	n := utf8.RuneCountInString(username)
	if n < minLen || n > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be between %d and %d characters", minLen, MaxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		return apperror.ValidationFailed("username",
			"username may only contain letters, digits, underscores and dots")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}

// Signup creates a public account and logs it in.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateUsername(in.Username, MinUsernameLength); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, unexpected(s.logger, "signup", err, slog.String("username", in.Username))
	}

	user := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Surname:      strings.TrimSpace(in.Surname),
	}
	err = s.store.WithinTx(ctx, func(q repository.Queries) error {
		return q.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, unexpected(s.logger, "signup", err, slog.String("username", in.Username))
	}

	s.metrics.Signup()
	s.logger.Info("account created",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// Login checks credentials. Unknown username and wrong password produce the
// same error.
func (s *AccountService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, unexpected(s.logger, "login", err, slog.String("username", username))
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, errBadCredentials
		}
		return nil, unexpected(s.logger, "login", err, slog.Int64("userID", user.ID))
	}

	return s.issue(user)
}

func (s *AccountService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, unexpected(s.logger, "issue token", err, slog.Int64("userID", user.ID))
	}
	return &AuthResult{User: model.AccountUserOf(user), Token: token}, nil
}

// Me is the viewer's own account.
func (s *AccountService) Me(ctx context.Context, userID int64) (*model.AccountUser, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, unexpected(s.logger, "get account", err, slog.Int64("userID", userID))
	}
	au := model.AccountUserOf(user)
	return &au, nil
}

// ChangeUsername renames the account after re-checking the password.
func (s *AccountService) ChangeUsername(ctx context.Context, userID int64, newUsername, password string) (*model.AccountUser, error) {
	newUsername = strings.TrimSpace(newUsername)
	if err := validateUsername(newUsername, MinChangedUsernameLength); err != nil {
		return nil, err
	}

	var updated *model.User
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		user, err := q.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				return apperror.ValidationFailed("password", "Incorrect password")
			}
			return err
		}
		if user.Username == newUsername {
			updated = user
			return nil
		}
		if err := q.UpdateUsername(ctx, userID, newUsername); err != nil {
			return err
		}
		user.Username = newUsername
		updated = user
		return nil
	})
	if err != nil {
		return nil, unexpected(s.logger, "change username", err, slog.Int64("userID", userID))
	}

	au := model.AccountUserOf(updated)
	return &au, nil
}

// SetPrivacy updates the privacy flag and returns the stored value. Existing
// edges are left alone.
func (s *AccountService) SetPrivacy(ctx context.Context, userID int64, isPrivate bool) (bool, error) {
	if err := s.store.UpdatePrivacy(ctx, userID, isPrivate); err != nil {
		return false, unexpected(s.logger, "set privacy", err, slog.Int64("userID", userID))
	}
	return isPrivate, nil
}

// SetAvatar points the account at an already-uploaded picture and deletes
// the previous one. If the update fails the new file is deleted instead.
func (s *AccountService) SetAvatar(ctx context.Context, userID int64, picturePath string) (*model.AccountUser, error) {
	user, err := s.replacePicture(ctx, userID, picturePath)
	if err != nil {
		if picturePath != "" {
			removeFiles(s.logger, s.files, []string{picturePath})
		}
		return nil, err
	}
	au := model.AccountUserOf(user)
	return &au, nil
}

// ClearAvatar removes the account picture.
func (s *AccountService) ClearAvatar(ctx context.Context, userID int64) (*model.AccountUser, error) {
	user, err := s.replacePicture(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	au := model.AccountUserOf(user)
	return &au, nil
}

// replacePicture swaps the stored picture inside one transaction so two
// concurrent swaps cannot both see the same previous file. The old file is
// removed only once the new path is committed.
func (s *AccountService) replacePicture(ctx context.Context, userID int64, picturePath string) (*model.User, error) {
	var (
		user     *model.User
		previous string
	)
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		var err error
		user, err = q.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		previous = user.PictureURL
		if err := q.UpdatePicture(ctx, userID, picturePath); err != nil {
			return err
		}
		user.PictureURL = picturePath
		return nil
	})
	if err != nil {
		return nil, unexpected(s.logger, "replace avatar", err, slog.Int64("userID", userID))
	}

	if previous != "" && previous != picturePath {
		removeFiles(s.logger, s.files, []string{previous})
	}
	return user, nil
}

// Search matches accounts by username prefix.
func (s *AccountService) Search(ctx context.Context, prefix string) ([]model.PublicUser, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []model.PublicUser{}, nil
	}

	users, err := s.store.SearchUsersByPrefix(ctx, prefix, MaxSearchResults)
	if err != nil {
		return nil, unexpected(s.logger, "search accounts", err, slog.String("prefix", prefix))
	}

	out := make([]model.PublicUser, len(users))
	for i := range users {
		out[i] = model.PublicUserOf(&users[i])
	}
	return out, nil
}
