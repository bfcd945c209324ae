package service

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	orderNumberPrefix = "ORD-"
	base36Alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomSuffixLen   = 4
)

// NewOrderNumber returns "ORD-" followed by the base36 millisecond timestamp
// and four random base36 characters.
func NewOrderNumber(now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString(orderNumberPrefix)
	b.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))

	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < randomSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36Alphabet[n.Int64()])
	}

	return b.String(), nil
}

// looksLikeOrderNumber reports whether s has the human-readable order number shape.
func looksLikeOrderNumber(s string) bool {
	if !strings.HasPrefix(s, orderNumberPrefix) || len(s) <= len(orderNumberPrefix)+randomSuffixLen {
		return false
	}
	for _, c := range s[len(orderNumberPrefix):] {
		if !strings.ContainsRune(base36Alphabet, c) {
			return false
		}
	}
	return true
}
