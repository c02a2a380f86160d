// Package cache persists aggregate results keyed by channel-scoped
// fingerprints. The store is append-only: a recomputation inserts a fresh
// entry and lookups return the newest one, so history is never rewritten.
// There is no expiry and no single-flight protection; concurrent identical
// requests may both compute and both insert, which is accepted.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/safelens/safelens/internal/model"
)

// prefixLen bounds the identity key for text-keyed channels. Text longer
// than this is not identity-complete on its own; hash-bearing channels use
// the hash instead.
const prefixLen = 100

// Store is the append-only result store. Insert never overwrites and
// FindLatest returns the most recently inserted entry for a fingerprint.
type Store interface {
	Insert(ctx context.Context, entry model.CacheEntry) error
	FindLatest(ctx context.Context, fingerprint string) (*model.CacheEntry, bool, error)
}

// Fingerprint computes the identity key for a target. URL and SMS targets
// key on a text prefix, decoded payloads on the full payload, and
// hash-bearing channels (email, voice) prefer their content hash.
func Fingerprint(t model.Target) string {
	var key string
	switch t.Channel {
	case model.ChannelQR:
		key = t.Raw
	case model.ChannelEmail, model.ChannelVoice:
		if t.ContentHash != "" {
			key = "md5:" + t.ContentHash
		} else {
			key = prefix(t.Raw)
		}
	default:
		key = prefix(t.Raw)
	}
	return string(t.Channel) + ":" + key
}

// NewEntry snapshots a result under the target's fingerprint.
func NewEntry(target model.Target, result model.AggregateResult) model.CacheEntry {
	return model.CacheEntry{
		ID:          uuid.NewString(),
		Fingerprint: Fingerprint(target),
		Channel:     target.Channel,
		Result:      result,
		CreatedAt:   time.Now().UTC(),
	}
}

// Lookup finds the newest entry for a target and applies the channel's
// secondary identity check. A failed check is a miss, not an error: the
// caller reruns the pipeline and inserts a fresh entry.
func Lookup(ctx context.Context, s Store, target model.Target) (*model.CacheEntry, bool, error) {
	entry, ok, err := s.FindLatest(ctx, Fingerprint(target))
	if err != nil || !ok {
		return nil, false, err
	}
	if !identityMatch(entry, target) {
		return nil, false, nil
	}
	return entry, true, nil
}

// identityMatch is the secondary check a fingerprint hit must pass.
// Payload channels require the stated expectation to be unchanged;
// hash-bearing channels require an exact hash match, falling back to full
// text equality only when the text is short enough to be identity-complete.
func identityMatch(entry *model.CacheEntry, target model.Target) bool {
	switch target.Channel {
	case model.ChannelQR:
		return entry.Result.Target.Expectation == target.Expectation
	case model.ChannelEmail, model.ChannelVoice:
		if entry.Result.Target.ContentHash != "" && target.ContentHash != "" {
			return entry.Result.Target.ContentHash == target.ContentHash
		}
		return len([]rune(target.Raw)) <= prefixLen && entry.Result.Target.Raw == target.Raw
	default:
		return true
	}
}

func prefix(text string) string {
	runes := []rune(text)
	if len(runes) <= prefixLen {
		return text
	}
	return string(runes[:prefixLen])
}

// storageKey makes a fingerprint safe for filenames and redis keys.
func storageKey(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}
