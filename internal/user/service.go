package user

import (
	stdErrors "errors"

	"collaborative-workspace/internal/errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service defines the interface for user business logic
type Service interface {
	Register(user *User) error
	Login(email, password string) (*User, error)
	GetUserByID(id uint64) (*User, error)
	DeactivateUser(id uint64) error
}

// DefaultService implements Service
type DefaultService struct {
	repository UserRepository
}

// NewService creates a new user service
func NewService(repository UserRepository) Service {
	return &DefaultService{repository: repository}
}

// Register registers a new user
func (s *DefaultService) Register(user *User) error {
	// Check if user with email already exists
	_, err := s.repository.FindByEmail(user.Email)
	if err != nil && !stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Internal(err)
	}
	if err == nil {
		return errors.UnprocessableEntity("User already registered", nil)
	}

	// Hash the password before saving
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.UnprocessableEntity("Invalid password", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.Password = ""
	user.IsActive = true

	if err := s.repository.Create(user); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// Login authenticates a user
func (s *DefaultService) Login(email, password string) (*User, error) {
	user, err := s.repository.FindByEmail(email)
	if err != nil {
		return nil, errors.Unauthorized("User not found", err)
	}

	if !user.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, errors.UnprocessableEntity("Wrong password", err)
	}

	return user, nil
}

// GetUserByID gets a user by ID
func (s *DefaultService) GetUserByID(id uint64) (*User, error) {
	user, err := s.repository.FindByID(id)
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("User not found", err)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return user, nil
}

// DeactivateUser deactivates a user; later logins are refused
func (s *DefaultService) DeactivateUser(id uint64) error {
	if err := s.repository.Deactivate(id); err != nil {
		return errors.Internal(err)
	}
	return nil
}
