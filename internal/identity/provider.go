// Package identity описывает провайдера идентификации: единственный источник учётных данных
// для сотрудников, компаний и администраторов.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmailTaken возвращается при попытке создать учётную запись с занятым адресом.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials возвращается при неверной паре адрес/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound возвращается, если учётная запись с таким адресом не найдена.
	ErrNotFound = errors.New("identity not found")
	// ErrPasswordTooLong возвращается, если пароль длиннее MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password is too long")
)

// MaxPasswordBytes ограничивает длину пароля в байтах: bcrypt не принимает более длинные пароли.
const MaxPasswordBytes = 72

// NewAccount содержит данные для создания учётной записи.
// Пароль передаётся только в виде bcrypt-хеша.
type NewAccount struct {
	Email        string
	PasswordHash []byte
	Verified     bool
	Metadata     map[string]string
}

// Provider создаёт учётные записи и проверяет учётные данные.
type Provider interface {
	CreateAccount(ctx context.Context, acc NewAccount) (uuid.UUID, error)
	Authenticate(ctx context.Context, email, password string) (uuid.UUID, error)
	Lookup(ctx context.Context, email string) (uuid.UUID, error)
}

// HashPassword возвращает bcrypt-хеш пароля.
func HashPassword(password string) ([]byte, error) {
	if len(password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword сравнивает пароль с bcrypt-хешем.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
