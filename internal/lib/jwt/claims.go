// Package jwt реализует короткие подписанные токены привязки чатов Telegram.
//
// Параметр start глубокой ссылки Telegram ограничен 64 символами из [A-Za-z0-9_-],
// поэтому токен хранит только идентификатор мерчанта и срок действия:
//
//	<merchant base36>-<exp base36>-<HS256 base64url>
//
// Подпись и проверка срока выполняются средствами golang-jwt.
package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken токен повреждён или подписан другим ключом.
var ErrInvalidToken = errors.New("invalid link token")

// LinkClaims описывает данные, хранящиеся в токене привязки.
type LinkClaims struct {
	MerchantID           int64 `json:"mid"` // Идентификатор мерчанта
	jwt.RegisteredClaims       // ExpiresAt и восстановленный IssuedAt
}

// GenerateToken создаёт токен привязки для мерчанта, подписывая его секретным ключом.
//
// Время жизни токена определяется полем tokenTTL.
func (j *MakerImpl) GenerateToken(merchantID int64) (string, error) {
	const op = "jwt.GenerateToken"
	exp := time.Now().Add(j.tokenTTL).Unix()
	payload := strconv.FormatInt(merchantID, 36) + "-" + strconv.FormatInt(exp, 36)

	sig, err := jwt.SigningMethodHS256.Sign(payload, []byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return payload + "-" + base64.RawURLEncoding.EncodeToString(sig), nil
}

// ParseToken проверяет подпись и срок действия токена и возвращает LinkClaims.
func (j *MakerImpl) ParseToken(tokenStr string) (*LinkClaims, error) {
	const op = "jwt.ParseToken"
	parts := strings.SplitN(tokenStr, "-", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	payload := parts[0] + "-" + parts[1]
	if err := jwt.SigningMethodHS256.Verify(payload, sig, []byte(j.secretKey)); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	merchantID, err := strconv.ParseInt(parts[0], 36, 64)
	if err != nil || merchantID <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	exp, err := strconv.ParseInt(parts[1], 36, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	expiresAt := time.Unix(exp, 0)
	claims := &LinkClaims{
		MerchantID: merchantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(merchantID, 10),
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-j.tokenTTL)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if err := jwt.NewValidator(jwt.WithExpirationRequired()).Validate(claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}
