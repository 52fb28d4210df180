package services

import (
	"context"
	"log"
	"strings"
	"time"

	"storefront/entities"
	"storefront/models"
	"storefront/repository"
)

type UserService struct {
	ur         repository.UserRepository
	sr         repository.SessionRepository
	tm         TokenManager
	refreshTTL time.Duration
}

func NewUserService(uRepo repository.UserRepository, sRepo repository.SessionRepository, tm TokenManager, refreshTTL time.Duration) UserService {
	return UserService{
		ur:         uRepo,
		sr:         sRepo,
		tm:         tm,
		refreshTTL: refreshTTL,
	}
}

func (us *UserService) issueTokens(ctx context.Context, uModel models.User_db) (res entities.AuthResponse, err error) {
	res.AccessToken, res.ExpiresAt, err = us.tm.Issue(uModel.Id, uModel.Role)
	if err != nil {
		return
	}
	res.RefreshToken, err = us.sr.CreateSession(ctx, uModel.Id, uModel.Role, us.refreshTTL)
	if err != nil {
		return
	}
	res.User = toUser(uModel)
	return
}

func (us *UserService) Register(ctx context.Context, req models.RegisterRequest) (res entities.AuthResponse, err error) {
	if err = validate(req); err != nil {
		return
	}
	var uModel models.User_db
	uModel, err = us.createUser(ctx, req.Email, req.Password, req.Name, models.RoleUser)
	if err != nil {
		return
	}
	res, err = us.issueTokens(ctx, uModel)
	return
}

func (us *UserService) createUser(ctx context.Context, email, password, name, role string) (uModel models.User_db, err error) {
	var ex bool
	_, ex, err = us.ur.GetUserByEmail(ctx, email)
	if err != nil {
		return
	}
	if ex {
		log.Printf("createUser: user already exists")
		err = models.Errorf(models.ErrNotAllowed, "email is already registered")
		return
	}
	uModel = models.User_db{
		Email: strings.ToLower(strings.TrimSpace(email)),
		Name:  strings.TrimSpace(name),
		Role:  role,
	}
	uModel.PasswordHash, err = us.ur.EncryptPassword(password)
	if err != nil {
		return
	}
	uModel.CreatedAt = time.Now().UTC()
	uModel.Id, err = us.ur.AddNewUser(ctx, uModel)
	return
}

// EnsureAdmin creates an admin account unless the email is already taken.
func (us *UserService) EnsureAdmin(ctx context.Context, email, password, name string) (created bool, err error) {
	_, ex, e := us.ur.GetUserByEmail(ctx, email)
	if e != nil || ex {
		err = e
		return
	}
	if _, err = us.createUser(ctx, email, password, name, models.RoleAdmin); err != nil {
		return
	}
	created = true
	return
}

func (us *UserService) Login(ctx context.Context, creds models.Credentials) (res entities.AuthResponse, err error) {
	if err = validate(creds); err != nil {
		return
	}
	uModel, ex, e := us.ur.GetUserByEmail(ctx, creds.Email)
	if e != nil {
		err = e
		return
	}
	if !ex || !us.ur.VerifyPassword(uModel.PasswordHash, creds.Password) {
		log.Printf("Login: wrong credentials")
		err = models.Errorf(models.ErrUnauthorized, "invalid email or password")
		return
	}
	res, err = us.issueTokens(ctx, uModel)
	return
}

// Refresh trades a refresh token for a new token pair. The old refresh token
// stops working, and a token redeemed concurrently is honoured only once.
func (us *UserService) Refresh(ctx context.Context, refreshToken string) (res entities.AuthResponse, err error) {
	userId, _, consumed, e := us.sr.ConsumeSession(ctx, refreshToken)
	if e != nil {
		err = e
		return
	}
	if !consumed {
		err = models.Errorf(models.ErrUnauthorized, "invalid refresh token")
		return
	}
	uModel, ex, e := us.ur.GetUserById(ctx, userId)
	if e != nil {
		err = e
		return
	}
	if !ex {
		err = models.Errorf(models.ErrUnauthorized, "invalid refresh token")
		return
	}
	res, err = us.issueTokens(ctx, uModel)
	return
}

func (us *UserService) Logout(ctx context.Context, refreshToken string) (err error) {
	err = us.sr.DeleteSession(ctx, refreshToken)
	return
}

// Authenticate resolves an access token to the caller's id and role.
func (us *UserService) Authenticate(accessToken string) (userId int, role string, err error) {
	return us.tm.Parse(accessToken)
}

func (us *UserService) Me(ctx context.Context, userId int) (user entities.User, err error) {
	uModel, ex, e := us.ur.GetUserById(ctx, userId)
	if e != nil {
		err = e
		return
	}
	if !ex {
		err = models.Errorf(models.ErrNotFound, "user not found")
		return
	}
	user = toUser(uModel)
	return
}

func (us *UserService) UpdateProfile(ctx context.Context, userId int, req models.ProfileRequest) (user entities.User, err error) {
	if err = validate(req); err != nil {
		return
	}
	if err = us.ur.UpdateProfile(ctx, userId, strings.TrimSpace(req.Name), strings.TrimSpace(req.Phone)); err != nil {
		return
	}
	user, err = us.Me(ctx, userId)
	return
}

// ChangePassword replaces the password and signs the user out everywhere.
func (us *UserService) ChangePassword(ctx context.Context, userId int, data models.PasswordData) (err error) {
	if err = validate(data); err != nil {
		return
	}
	uModel, ex, e := us.ur.GetUserById(ctx, userId)
	if e != nil {
		err = e
		return
	}
	if !ex {
		err = models.Errorf(models.ErrNotFound, "user not found")
		return
	}
	if !us.ur.VerifyPassword(uModel.PasswordHash, data.OldPassword) {
		err = models.Errorf(models.ErrBadRequest, "current password is incorrect")
		return
	}
	newHash, e := us.ur.EncryptPassword(data.NewPassword)
	if e != nil {
		err = e
		return
	}
	if err = us.ur.UpdatePassword(ctx, userId, newHash); err != nil {
		return
	}
	err = us.sr.DeleteUserSessions(ctx, userId)
	return
}

func (us *UserService) ListUsers(ctx context.Context, page, limit int) (res entities.UserPage, err error) {
	page, limit = pageBounds(page, limit, 20, 100)
	users, total, e := us.ur.ListUsers(ctx, limit, (page-1)*limit)
	if e != nil {
		err = e
		return
	}
	res = entities.UserPage{
		Items:      make([]entities.User, 0, len(users)),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: entities.TotalPages(total, limit),
	}
	for _, u := range users {
		res.Items = append(res.Items, toUser(u))
	}
	return
}
