package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

const testBotToken = "123456:TEST-token"

func signInitData(values url.Values, token string) string {
	var pairs []string
	for k := range values {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	sort.Strings(pairs)
	key := hmac.New(sha256.New, []byte("WebAppData"))
	key.Write([]byte(token))
	h := hmac.New(sha256.New, key.Sum(nil))
	h.Write([]byte(strings.Join(pairs, "\n")))
	values.Set("hash", hex.EncodeToString(h.Sum(nil)))
	return values.Encode()
}

func TestVerifyInitData(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := func() url.Values {
		return url.Values{
			"auth_date": {strconv.FormatInt(now.Add(-time.Minute).Unix(), 10)},
			"query_id":  {"AAHdF6IQAAAAAN0XohDhrOrc"},
			"user":      {`{"id":100000001,"first_name":"Ada"}`},
		}
	}

	id, err := verifyInitData(signInitData(fresh(), testBotToken), testBotToken, now)
	if err != nil || id != "100000001" {
		t.Fatalf("verify = %q, %v", id, err)
	}

	if _, err := verifyInitData(signInitData(fresh(), "other-token"), testBotToken, now); err == nil {
		t.Error("accepted data signed with another token")
	}

	tampered := fresh()
	data := signInitData(tampered, testBotToken)
	data = strings.Replace(data, "100000001", "999999999", 1)
	if _, err := verifyInitData(data, testBotToken, now); err == nil {
		t.Error("accepted tampered data")
	}

	old := fresh()
	old.Set("auth_date", strconv.FormatInt(now.Add(-48*time.Hour).Unix(), 10))
	if _, err := verifyInitData(signInitData(old, testBotToken), testBotToken, now); err == nil {
		t.Error("accepted expired data")
	}

	if _, err := verifyInitData(signInitData(fresh(), testBotToken), "", now); err == nil {
		t.Error("accepted data without a bot token")
	}
}

func TestFlexID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`"123456789"`, "123456789", false},
		{`123456789`, "123456789", false},
		{`null`, "", false},
		{`true`, "", true},
	}
	for _, tt := range tests {
		var got flexID
		err := json.Unmarshal([]byte(tt.in), &got)
		if (err != nil) != tt.wantErr || string(got) != tt.want {
			t.Errorf("unmarshal %s = %q, %v", tt.in, got, err)
		}
	}
}

func TestValidTelegramID(t *testing.T) {
	for id, want := range map[string]bool{
		"123456":           true,
		"123456789012345":  true,
		"12345":            false,
		"1234567890123456": false,
		"12345a":           false,
		"":                 false,
	} {
		if got := validTelegramID(id); got != want {
			t.Errorf("validTelegramID(%q) = %v", id, got)
		}
	}
}
