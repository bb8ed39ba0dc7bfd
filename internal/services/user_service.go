package services

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/eventsphere/backend/internal/models"
)

var (
	ErrOperatorNotFound = errors.New("operator not found")
	ErrInvalidPassword  = errors.New("invalid password")
)

// Operator is a console account used when tokens are issued locally instead
// of by Firebase Auth. Operators are always admins.
type Operator struct {
	ID           string
	Email        string
	PasswordHash string
}

// OperatorService authenticates operators against bcrypt password hashes.
type OperatorService struct {
	mu      sync.RWMutex
	byEmail map[string]*Operator
}

func NewOperatorService(operators ...Operator) *OperatorService {
	s := &OperatorService{byEmail: make(map[string]*Operator)}
	for i := range operators {
		s.Add(operators[i])
	}
	return s
}

// Add registers op. An operator without an id is keyed by e-mail.
func (s *OperatorService) Add(op Operator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op.Email = strings.ToLower(strings.TrimSpace(op.Email))
	if op.ID == "" {
		op.ID = op.Email
	}
	s.byEmail[op.Email] = &op
}

func (s *OperatorService) Login(req *models.LoginRequest) (*models.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, exists := s.byEmail[strings.ToLower(strings.TrimSpace(req.Email))]
	if !exists {
		return nil, ErrOperatorNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidPassword
	}

	return &models.Actor{ID: op.ID, Email: op.Email}, nil
}

// HashPassword returns a bcrypt hash suitable for OPERATOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
