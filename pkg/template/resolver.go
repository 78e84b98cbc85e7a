// Package template resolves the text/CTA/store-URL defaults a new
// creative inherits from the most recent active ad in its destination.
package template

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/logger"
	"github.com/supercrema/adforge/pkg/platform/core"
)

// Defaults is the snapshot inherited from an active ad.
type Defaults struct {
	PrimaryTexts []string
	Headlines    []string
	CTA          string
	StoreURL     string
	// Sequence is the number embedded in the source ad's name,
	// identifying how far the destination's naming has advanced.
	Sequence int
}

// ActiveCreativeSource is the slice of the adapter contract the resolver
// needs.
type ActiveCreativeSource interface {
	QueryActiveCreatives(ctx context.Context, destinationID string) ([]core.CreativeSummary, error)
}

// placeholderHeadline is the scaffold headline some templates carry; it
// is never inherited.
const placeholderHeadline = "new game"

type cacheEntry struct {
	defaults  Defaults
	expiresAt time.Time
}

// Resolver queries active creatives and caches resolved defaults per
// network+destination+mode with a bounded TTL.
type Resolver struct {
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewResolver creates a resolver whose entries expire after ttl.
func NewResolver(ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Resolver{
		ttl:    ttl,
		logger: logger.With(zap.String("component", "template_resolver")),
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve returns the defaults for a destination, serving from cache
// unless the entry expired or force is set. The destination-level store
// URL, when present, overrides the inherited ad's own store URL.
func (r *Resolver) Resolve(ctx context.Context, source ActiveCreativeSource, network string, dest core.Destination, mode core.Mode, force bool) (Defaults, error) {
	key := network + "/" + dest.ID + "/" + string(mode)

	if !force {
		r.mu.Lock()
		entry, ok := r.cache[key]
		r.mu.Unlock()
		if ok && time.Now().Before(entry.expiresAt) {
			return entry.defaults, nil
		}
	}

	summaries, err := source.QueryActiveCreatives(ctx, dest.ID)
	if err != nil {
		return Defaults{}, err
	}
	if len(summaries) == 0 {
		return Defaults{}, errors.Newf(errors.ErrorTypeNotFound,
			"destination %s has no active creatives to inherit from", dest.ID)
	}

	chosen := pickLatest(summaries)
	defaults := extract(chosen)

	// Destination promoted-object URL wins over the inherited ad's URL
	// to avoid platform-side validation mismatches.
	if dest.StoreURL != "" {
		defaults.StoreURL = SanitizeStoreURL(dest.StoreURL)
	}

	r.mu.Lock()
	r.cache[key] = cacheEntry{defaults: defaults, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	r.logger.Debug("defaults resolved",
		zap.String("network", network),
		zap.String("destination", dest.ID),
		zap.String("source_creative", chosen.Name),
		zap.Int("sequence", defaults.Sequence))

	return defaults, nil
}

// Invalidate drops the cached entry for a destination, forcing the next
// Resolve to query.
func (r *Resolver) Invalidate(network, destinationID string, mode core.Mode) {
	key := network + "/" + destinationID + "/" + string(mode)
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
}

// pickLatest selects the summary with the highest embedded sequence
// number; ties go to the most recently created.
func pickLatest(summaries []core.CreativeSummary) core.CreativeSummary {
	best := summaries[0]
	bestSeq := SequenceNumber(best.Name)

	for _, s := range summaries[1:] {
		seq := SequenceNumber(s.Name)
		if seq > bestSeq || (seq == bestSeq && s.CreatedAt.After(best.CreatedAt)) {
			best = s
			bestSeq = seq
		}
	}
	return best
}

// extract builds the inheritable snapshot from a creative summary,
// dropping the placeholder headline and sanitizing the store URL.
func extract(s core.CreativeSummary) Defaults {
	d := Defaults{
		PrimaryTexts: append([]string(nil), s.PrimaryTexts...),
		CTA:          s.CTA,
		StoreURL:     SanitizeStoreURL(s.StoreURL),
		Sequence:     SequenceNumber(s.Name),
	}
	for _, h := range s.Headlines {
		if strings.EqualFold(strings.TrimSpace(h), placeholderHeadline) {
			continue
		}
		d.Headlines = append(d.Headlines, h)
	}
	return d
}

var numberPattern = regexp.MustCompile(`\d+`)

// SequenceNumber returns the largest integer embedded in a creative
// name, or -1 when it carries none.
func SequenceNumber(name string) int {
	best := -1
	for _, m := range numberPattern.FindAllString(name, -1) {
		if n, err := strconv.Atoi(m); err == nil && n > best {
			best = n
		}
	}
	return best
}

// Tracking query parameters stripped from inherited store URLs.
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "referrer": true,
}

// SanitizeStoreURL validates the scheme and strips tracking query
// parameters. Invalid URLs come back empty rather than poisoning a
// creation payload.
func SanitizeStoreURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}

	q := u.Query()
	for param := range trackingParams {
		q.Del(param)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
