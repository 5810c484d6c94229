package inscription

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var lastNonce atomic.Int64

// NextNonce returns a wall-clock nanosecond value that is strictly greater
// than any value previously returned by this process.
func NextNonce() string {
	for {
		prev := lastNonce.Load()
		n := time.Now().UnixNano()
		if n <= prev {
			n = prev + 1
		}
		if lastNonce.CompareAndSwap(prev, n) {
			return strconv.FormatInt(n, 10)
		}
	}
}

var nonceRe = regexp.MustCompile(`"nonce"\s*:\s*("(?:[^"\\]|\\.)*"|-?[0-9]+)`)

// RefreshNonce rewrites the nonce value of the JSON object embedded in
// payload. Every other byte, key order included, is left untouched.
func RefreshNonce(payload string) (string, error) {
	start := strings.IndexByte(payload, '{')
	end := strings.LastIndexByte(payload, '}')
	if start < 0 || end < start {
		return "", &MalformedPayloadError{Reason: "no JSON object"}
	}
	obj := payload[start : end+1]
	if !json.Valid([]byte(obj)) {
		return "", &MalformedPayloadError{Reason: "invalid JSON object"}
	}

	loc := nonceRe.FindStringSubmatchIndex(obj)
	if loc == nil {
		return "", &MalformedPayloadError{Reason: "no nonce field"}
	}
	valStart, valEnd := loc[2], loc[3]

	fresh := NextNonce()
	if obj[valStart] == '"' {
		fresh = `"` + fresh + `"`
	}

	var b strings.Builder
	b.Grow(len(payload) + 4)
	b.WriteString(payload[:start+valStart])
	b.WriteString(fresh)
	b.WriteString(payload[start+valEnd:])
	return b.String(), nil
}
