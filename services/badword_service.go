// services/badword_service.go - Chat term masking
package services

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"songquiz/database"
	"songquiz/models"
)

// maskRule is one banned term with its pattern compiled up front.
type maskRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// badWordCache avoids hitting the bad-word table and recompiling the
// patterns on every chat message.
var badWordCache = struct {
	sync.RWMutex
	rules    []maskRule
	loadedAt time.Time
}{}

const badWordCacheTTL = 5 * time.Minute

func loadMaskRules() []maskRule {
	badWordCache.RLock()
	if time.Since(badWordCache.loadedAt) < badWordCacheTTL {
		rules := badWordCache.rules
		badWordCache.RUnlock()
		return rules
	}
	badWordCache.RUnlock()

	badWordCache.Lock()
	defer badWordCache.Unlock()
	if time.Since(badWordCache.loadedAt) < badWordCacheTTL {
		return badWordCache.rules
	}

	var words []models.BadWord
	database.GetDB().Where("is_active = ?", true).Find(&words)

	rules := make([]maskRule, 0, len(words))
	for _, w := range words {
		if w.Word == "" {
			continue
		}
		pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(w.Word))
		if err != nil {
			continue
		}
		replacement := w.Replacement
		if replacement == "" {
			replacement = strings.Repeat("*", len([]rune(w.Word)))
		}
		rules = append(rules, maskRule{pattern: pattern, replacement: replacement})
	}
	badWordCache.rules = rules
	badWordCache.loadedAt = time.Now()
	return rules
}

// MaskBadWords replaces banned terms in a message, case-insensitively.
// Words without a configured replacement are masked with asterisks.
func MaskBadWords(message string) string {
	for _, rule := range loadMaskRules() {
		message = rule.pattern.ReplaceAllLiteralString(message, rule.replacement)
	}
	return message
}

// InvalidateBadWordCache forces a reload on the next message.
func InvalidateBadWordCache() {
	badWordCache.Lock()
	badWordCache.loadedAt = time.Time{}
	badWordCache.Unlock()
}
