package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

const orderIDPrefix = "M2B"

// orderIDGenerator remembers the suffixes handed out for one calendar date so a
// process never issues the same ID twice. The set resets when the date
// changes; IDs on different dates cannot collide.
type orderIDGenerator struct {
	mu     sync.Mutex
	day    string
	issued map[string]struct{}
}

var orderIDs = &orderIDGenerator{}

// NewOrderID returns "M2B-YYYYMMDD-XXXXXX": the local date of now and
// three random bytes as upper-case hex. IDs are unique within the process.
func NewOrderID(now time.Time) (string, error) {
	return orderIDs.next(now)
}

func (g *orderIDGenerator) next(now time.Time) (string, error) {
	day := now.Format("20060102")

	g.mu.Lock()
	defer g.mu.Unlock()
	if day != g.day || g.issued == nil {
		g.day = day
		g.issued = make(map[string]struct{})
	}

	b := make([]byte, 3)
	for {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generate order id: %w", err)
		}
		suffix := strings.ToUpper(hex.EncodeToString(b))
		if _, dup := g.issued[suffix]; dup {
			continue
		}
		g.issued[suffix] = struct{}{}
		return fmt.Sprintf("%s-%s-%s", orderIDPrefix, day, suffix), nil
	}
}
