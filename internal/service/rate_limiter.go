package service

import (
	"sync"
	"time"
)

// RateLimiter limita requests por clave (ruta + IP del cliente).
// Credit devuelve un cupo ya consumido: el limiter de login no cuenta
// los intentos exitosos.
type RateLimiter interface {
	Allow(key string) bool
	Credit(key string)
}

type memoryRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewMemoryRateLimiter crea un rate limiter en memoria con ventana
// deslizante. Sirve como fallback cuando no hay Redis configurado.
func NewMemoryRateLimiter(window time.Duration, max int) RateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *memoryRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}

func (l *memoryRateLimiter) Credit(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.hits[key]
	if len(entries) == 0 {
		return
	}
	l.hits[key] = entries[:len(entries)-1]
}
