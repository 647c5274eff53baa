package validation

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"unicode"
)

// CouponCodeLength задаёт длину кода купона вместе с контрольной цифрой.
const CouponCodeLength = 12

// IsValidLuhn проверяет строку из цифр по алгоритму Луна.
func IsValidLuhn(number string) bool {
	if number == "" {
		return false
	}

	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}

// IsValidCouponCode проверяет формат кода купона: CouponCodeLength цифр с корректной контрольной цифрой.
func IsValidCouponCode(code string) bool {
	return len(code) == CouponCodeLength && IsValidLuhn(code)
}

// GenerateCouponCode создаёт случайный код купона с контрольной цифрой Луна.
func GenerateCouponCode() (string, error) {
	payload := make([]byte, CouponCodeLength-1)
	ten := big.NewInt(10)
	for i := range payload {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate coupon code: %w", err)
		}
		payload[i] = byte('0' + n.Int64())
	}
	return string(payload) + string(luhnCheckDigit(string(payload))), nil
}

// luhnCheckDigit вычисляет цифру, которую нужно дописать к payload, чтобы результат проходил проверку Луна.
func luhnCheckDigit(payload string) byte {
	sum := 0
	double := true
	for i := len(payload) - 1; i >= 0; i-- {
		digit := int(payload[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return byte('0' + (10-sum%10)%10)
}
