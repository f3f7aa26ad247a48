package usecases

import (
	"context"
	"errors"
	"strings"

	"grocery-sync/auth"
	"grocery-sync/entities"
	"grocery-sync/repositories"
	"grocery-sync/ws"
)

type UserUseCase struct {
	UserRepo    repositories.UserRepository
	Tokens      *auth.TokenService
	Broadcaster Broadcaster
}

func NewUserUseCase(userRepo repositories.UserRepository, tokens *auth.TokenService, b Broadcaster) *UserUseCase {
	if b == nil {
		b = nopBroadcaster{}
	}
	return &UserUseCase{
		UserRepo:    userRepo,
		Tokens:      tokens,
		Broadcaster: b,
	}
}

const msgAlreadyRegistered = "You are already registered. Please login!"

// Signup creates a new account. The email must not be registered yet.
func (uc *UserUseCase) Signup(ctx context.Context, email, password, userType string) (*entities.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validation("Please pass email and password.")
	}

	if _, err := uc.UserRepo.GetByEmail(ctx, email); err == nil {
		return nil, conflict(msgAlreadyRegistered)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, internal(err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, validation("Password is too long.")
		}
		return nil, internal(err)
	}

	user := &entities.User{
		Email:        email,
		PasswordHash: hash,
		Type:         strings.TrimSpace(userType),
	}
	if err := uc.UserRepo.Create(ctx, user); err != nil {
		// Lost a race against a concurrent signup with the same email
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, conflict(msgAlreadyRegistered)
		}
		return nil, internal(err)
	}
	return user, nil
}

// Authenticate checks the credentials and returns a signed token for the user.
func (uc *UserUseCase) Authenticate(ctx context.Context, email, password string) (string, *entities.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, validation("Please pass email and password.")
	}

	user, err := uc.UserRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", nil, unauthorized("Authentication failed. User not found.")
		}
		return "", nil, internal(err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return "", nil, unauthorized("Authentication failed. Wrong password.")
		}
		return "", nil, internal(err)
	}

	token, err := uc.Tokens.Issue(auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		return "", nil, internal(err)
	}
	return token, user, nil
}

// UpdateLocation stores the last known location of the user and broadcasts it.
func (uc *UserUseCase) UpdateLocation(ctx context.Context, userID string, latitude, longitude *float64) (*entities.User, error) {
	if latitude == nil || longitude == nil {
		return nil, validation("Please pass the latitude and longitude.")
	}
	if *latitude < -90 || *latitude > 90 || *longitude < -180 || *longitude > 180 {
		return nil, validation("Latitude or longitude out of range.")
	}

	user, err := uc.UserRepo.UpdateLocation(ctx, userID, repositories.Location{Latitude: *latitude, Longitude: *longitude})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("No user found")
		}
		return nil, internal(err)
	}

	uc.Broadcaster.BroadcastAll(ws.EventLocationUpdate, LocationUpdate{
		UserID:    user.ID,
		Latitude:  *latitude,
		Longitude: *longitude,
	})
	return user, nil
}

// Find looks a user up by email.
func (uc *UserUseCase) Find(ctx context.Context, email string) (*entities.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validation("Please pass email.")
	}
	user, err := uc.UserRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("No user found")
		}
		return nil, internal(err)
	}
	return user, nil
}

// FindAll returns every registered user.
func (uc *UserUseCase) FindAll(ctx context.Context) ([]entities.User, error) {
	users, err := uc.UserRepo.GetAll(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return users, nil
}

// Friends returns every user except the requester.
func (uc *UserUseCase) Friends(ctx context.Context, userID string) ([]entities.User, error) {
	users, err := uc.UserRepo.GetAllExcept(ctx, userID)
	if err != nil {
		return nil, internal(err)
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
