// Package password реализует проверку и хеширование паролей пользователей.
//
// Validate проверяет пару "пароль / повтор" при регистрации.
// GetHash создает bcrypt-хеш пароля, CompareHash сверяет хеш с введённым паролем.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinLength минимальная длина пароля в символах.
	MinLength = 5
	// MaxBytes предел bcrypt: более длинный пароль не хешируется.
	MaxBytes = 72
)

var (
	// ErrMismatch пароль и его повтор не совпадают.
	ErrMismatch = errors.New("Passwords do not match")
	// ErrTooShort пароль короче MinLength.
	ErrTooShort = fmt.Errorf("Password must be at least %d characters", MinLength)
	// ErrTooLong пароль длиннее MaxBytes байт.
	ErrTooLong = fmt.Errorf("Password must be at most %d bytes", MaxBytes)
)

// Validate проверяет пароль и его повтор. Несовпадение проверяется первым.
func Validate(password, repeat string) error {
	if password != repeat {
		return ErrMismatch
	}
	if len([]rune(password)) < MinLength {
		return ErrTooShort
	}
	if len(password) > MaxBytes {
		return ErrTooLong
	}
	return nil
}

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
