package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultInitDataTTL is used when the caller passes a non-positive max age.
// initData is regenerated every time the mini-app opens.
const DefaultInitDataTTL = 5 * time.Minute

// WebAppUser is the "user" object embedded in initData.
type WebAppUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// InitData is a verified mini-app launch payload.
type InitData struct {
	QueryID  string
	AuthDate time.Time
	User     WebAppUser
}

// ValidateTelegramWebAppData checks the initData signature and freshness and
// decodes the launching user.
// https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app
func ValidateTelegramWebAppData(initData string, botToken string, maxAge time.Duration) (*InitData, error) {
	return validateAt(initData, botToken, maxAge, time.Now())
}

func validateAt(initData, botToken string, maxAge time.Duration, now time.Time) (*InitData, error) {
	if maxAge <= 0 {
		maxAge = DefaultInitDataTTL
	}

	vals, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("invalid initData format: %w", err)
	}

	receivedHash := vals.Get("hash")
	if receivedHash == "" {
		return nil, errors.New("hash is missing from initData")
	}

	authDateStr := vals.Get("auth_date")
	if authDateStr == "" {
		return nil, errors.New("auth_date is missing from initData")
	}
	authDateUnix, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return nil, errors.New("auth_date is not a valid unix timestamp")
	}
	authDate := time.Unix(authDateUnix, 0)
	if age := now.Sub(authDate); age > maxAge {
		return nil, fmt.Errorf("initData expired: auth_date is %s old (max %s)", age.Round(time.Second), maxAge)
	}
	// clock skew до минуты
	if authDate.After(now.Add(time.Minute)) {
		return nil, errors.New("auth_date is in the future")
	}

	calculated := signInitData(vals, botToken)
	if !hmac.Equal([]byte(calculated), []byte(strings.ToLower(receivedHash))) {
		return nil, errors.New("invalid hash: data integrity check failed")
	}

	out := &InitData{QueryID: vals.Get("query_id"), AuthDate: authDate}
	raw := vals.Get("user")
	if raw == "" {
		return nil, errors.New("user is missing from initData")
	}
	if err := json.Unmarshal([]byte(raw), &out.User); err != nil {
		return nil, fmt.Errorf("invalid user in initData: %w", err)
	}
	if out.User.ID == 0 {
		return nil, errors.New("user id is missing from initData")
	}
	return out, nil
}

// signInitData computes the hex signature over every field except hash.
func signInitData(vals url.Values, botToken string) string {
	var pairs []string
	for key, values := range vals {
		if key == "hash" {
			continue
		}
		for _, v := range values {
			pairs = append(pairs, key+"="+v)
		}
	}
	sort.Strings(pairs)

	// secret_key = HMAC-SHA256("WebAppData", bot_token)
	secretKey := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	return hex.EncodeToString(hmacSHA256(secretKey, []byte(strings.Join(pairs, "\n"))))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
