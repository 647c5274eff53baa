// Package model содержит доменные сущности сервиса корпоративных скидок.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind описывает тип субъекта, от имени которого выполняется запрос.
type AccountKind string

const (
	AccountKindEmployee AccountKind = "EMPLOYEE"
	AccountKindCompany  AccountKind = "COMPANY"
	AccountKindAdmin    AccountKind = "ADMIN"
)

// Account представляет запись единого реестра субъектов. Учётные данные хранятся у провайдера идентификации.
type Account struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	Kind      AccountKind `json:"kind"`
	CompanyID *uuid.UUID  `json:"company_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Principal описывает аутентифицированного субъекта текущей сессии.
type Principal struct {
	AccountID uuid.UUID   `json:"account_id"`
	Email     string      `json:"email"`
	Kind      AccountKind `json:"kind"`
	CompanyID *uuid.UUID  `json:"company_id,omitempty"`
}

// PrincipalFromAccount строит Principal по записи реестра.
func PrincipalFromAccount(a *Account) Principal {
	return Principal{
		AccountID: a.ID,
		Email:     a.Email,
		Kind:      a.Kind,
		CompanyID: a.CompanyID,
	}
}

// CompanyProfile содержит публичные реквизиты компании.
type CompanyProfile struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
	Website     string `json:"website"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

// CompanyStatus описывает статус компании-партнёра.
type CompanyStatus string

const CompanyStatusActive CompanyStatus = "ACTIVE"

// Company представляет одобренную компанию. ID совпадает с идентификатором учётной записи у провайдера.
type Company struct {
	ID        uuid.UUID      `json:"id"`
	Profile   CompanyProfile `json:"profile"`
	Email     string         `json:"email"`
	Status    CompanyStatus  `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// RegistrationStatus описывает статус заявки на регистрацию компании.
type RegistrationStatus string

const (
	RegistrationStatusPending  RegistrationStatus = "PENDING"
	RegistrationStatusApproved RegistrationStatus = "APPROVED"
	RegistrationStatusRejected RegistrationStatus = "REJECTED"
)

// RegistrationRequest описывает заявку компании на подключение к платформе.
type RegistrationRequest struct {
	ID           uuid.UUID          `json:"id"`
	Profile      CompanyProfile     `json:"profile"`
	ContactEmail string             `json:"contact_email"`
	PasswordHash []byte             `json:"-"`
	Status       RegistrationStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	ReviewedAt   *time.Time         `json:"reviewed_at,omitempty"`
}

// Employee содержит профиль сотрудника компании. Пароль сотрудника хранится только у провайдера идентификации.
type Employee struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Position  string    `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// DiscountKind описывает способ расчёта скидки.
type DiscountKind string

const (
	DiscountKindPercent DiscountKind = "PERCENT"
	DiscountKindFixed   DiscountKind = "FIXED"
)

// Offer описывает предложение компании-партнёра.
// Пустой EligibleCompanyIDs означает, что предложение доступно сотрудникам любой компании.
type Offer struct {
	ID                 uuid.UUID       `json:"id"`
	CompanyID          uuid.UUID       `json:"company_id"`
	CompanyName        string          `json:"company_name"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	DiscountKind       DiscountKind    `json:"discount_kind"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
	ValidFrom          time.Time       `json:"valid_from"`
	ValidUntil         time.Time       `json:"valid_until"`
	EligibleCompanyIDs []uuid.UUID     `json:"eligible_company_ids"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ActiveAt сообщает, действует ли предложение в момент t (границы включены).
func (o *Offer) ActiveAt(t time.Time) bool {
	return !t.Before(o.ValidFrom) && !t.After(o.ValidUntil)
}

// EligibleFor сообщает, доступно ли предложение сотрудникам указанной компании.
func (o *Offer) EligibleFor(companyID *uuid.UUID) bool {
	if len(o.EligibleCompanyIDs) == 0 {
		return true
	}
	if companyID == nil {
		return false
	}
	for _, id := range o.EligibleCompanyIDs {
		if id == *companyID {
			return true
		}
	}
	return false
}

// OfferInput содержит изменяемые поля предложения.
type OfferInput struct {
	Title              string
	Description        string
	DiscountKind       DiscountKind
	DiscountValue      decimal.Decimal
	ValidFrom          time.Time
	ValidUntil         time.Time
	EligibleCompanyIDs []uuid.UUID
}

// OfferFilter задаёт параметры выборки доступных предложений.
type OfferFilter struct {
	At              time.Time
	Search          string
	CompanyID       *uuid.UUID
	ViewerCompanyID *uuid.UUID
}

// CouponStatus описывает состояние купона. USED и EXPIRED являются конечными.
type CouponStatus string

const (
	CouponStatusActive  CouponStatus = "ACTIVE"
	CouponStatusUsed    CouponStatus = "USED"
	CouponStatusExpired CouponStatus = "EXPIRED"
)

// Terminal сообщает, является ли статус конечным.
func (s CouponStatus) Terminal() bool {
	return s == CouponStatusUsed || s == CouponStatusExpired
}

// Coupon описывает купон пользователя на конкретное предложение.
type Coupon struct {
	ID         uuid.UUID    `json:"id"`
	Code       string       `json:"code"`
	UserID     uuid.UUID    `json:"user_id"`
	OfferID    uuid.UUID    `json:"offer_id"`
	Status     CouponStatus `json:"status"`
	IssuedAt   time.Time    `json:"issued_at"`
	RedeemedAt *time.Time   `json:"redeemed_at,omitempty"`
	Offer      *Offer       `json:"offer,omitempty"`
}

// Credential хранит учётные данные локального провайдера идентификации.
type Credential struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  []byte
	EmailVerified bool
	Metadata      map[string]string
	CreatedAt     time.Time
}
