package utils

import (
	"context"
	"sync"
	"time"
)

var (
	blacklist   = map[string]time.Time{}
	blacklistMu sync.Mutex
)

func blacklistKey(token string) string {
	return "blacklist:token:" + token
}

// BlacklistToken marks a JWT as revoked until its expiry.
func BlacklistToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, blacklistKey(token), "1", ttl).Err(); err == nil {
			return
		}
	}
	blacklistMu.Lock()
	blacklist[token] = expiresAt
	blacklistMu.Unlock()
}

// IsTokenBlacklisted reports whether a token has been revoked.
func IsTokenBlacklisted(token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := rc.Exists(ctx, blacklistKey(token)).Result(); err == nil {
			return n > 0
		}
	}
	blacklistMu.Lock()
	defer blacklistMu.Unlock()
	expiresAt, ok := blacklist[token]
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		delete(blacklist, token)
		return false
	}
	return true
}
