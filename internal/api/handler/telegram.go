package handler

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

// initDataMaxAge bounds how old a WebApp launch payload may be.
const initDataMaxAge = 24 * time.Hour

var errInitData = errors.New("invalid Telegram WebApp data")

// verifyInitData checks a Telegram WebApp initData string against the bot
// token and returns the Telegram user id it carries.
func verifyInitData(data, botToken string, now time.Time) (string, error) {
	if botToken == "" {
		return "", errors.New("bot token not configured")
	}
	params, err := url.ParseQuery(data)
	if err != nil {
		return "", errInitData
	}

	hash := params.Get("hash")
	if hash == "" {
		return "", fmt.Errorf("%w: hash missing", errInitData)
	}

	var pairs []string
	for key, values := range params {
		if key != "hash" && len(values) > 0 {
			pairs = append(pairs, key+"="+values[0])
		}
	}
	sort.Strings(pairs)

	keyMAC := hmac.New(sha256.New, []byte("WebAppData"))
	keyMAC.Write([]byte(botToken))
	h := hmac.New(sha256.New, keyMAC.Sum(nil))
	h.Write([]byte(strings.Join(pairs, "\n")))

	got, err := hex.DecodeString(hash)
	if err != nil || !hmac.Equal(got, h.Sum(nil)) {
		return "", fmt.Errorf("%w: hash mismatch", errInitData)
	}

	authDate, err := strconv.ParseInt(params.Get("auth_date"), 10, 64)
	if err != nil || now.Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return "", fmt.Errorf("%w: expired", errInitData)
	}

	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(params.Get("user")), &user); err != nil || user.ID <= 0 {
		return "", fmt.Errorf("%w: user missing", errInitData)
	}
	return strconv.FormatInt(user.ID, 10), nil
}
