// Package models содержит доменные структуры сервиса оформления подписок:
// пользователя, клиента платёжного провайдера, подписку и события вебхука.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UID          string    // Уникальный идентификатор пользователя
	Email        string    // Электронная почта (уникальная, в нижнем регистре)
	DisplayName  string    // Отображаемое имя
	PasswordHash string    // Хэш пароля пользователя
	CreatedAt    time.Time // Дата регистрации
}

// Customer связывает пользователя с записью клиента у платёжного провайдера.
type Customer struct {
	UserUID    string
	CustomerID string
	Email      string
	CreatedAt  time.Time
}

// Profile данные для дашборда пользователя.
type Profile struct {
	UID          string               `json:"uid"`
	Email        string               `json:"email"`
	DisplayName  string               `json:"displayName"`
	Subscription *SubscriptionSummary `json:"subscription"`
}

// Greeting возвращает имя для приветствия: отображаемое имя или почту.
func (p Profile) Greeting() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}
