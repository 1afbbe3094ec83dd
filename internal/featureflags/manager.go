// Package featureflags evaluates per-guild switches from a single config string.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Known flag names.
const (
	// PublicListings lets unauthenticated callers read a guild's ban listings.
	PublicListings = "public_listings"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "public_listings=25%,ban_events=on,beta=100000000000000001|100000000000000002"
type Manager struct {
	flags  map[string]string
	guilds map[string]map[uint64]struct{}
}

// NewManager creates a feature-flag manager from a comma-separated config string.
// Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	m := &Manager{
		flags:  make(map[string]string),
		guilds: make(map[string]map[uint64]struct{}),
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key = normalize(key)
		value = normalize(value)
		if key == "" || value == "" {
			continue
		}
		m.flags[key] = value
		if ids := parseGuildList(value); ids != nil {
			m.guilds[key] = ids
		}
	}

	return m
}

// parseGuildList returns nil unless every |-separated element is a guild ID.
func parseGuildList(value string) map[uint64]struct{} {
	if strings.HasSuffix(value, "%") {
		return nil
	}
	parts := strings.Split(value, "|")
	if len(parts) == 1 && len(value) < 6 {
		// "1", "0" and friends are booleans, not guild IDs.
		return nil
	}
	out := make(map[uint64]struct{}, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil || id == 0 {
			return nil
		}
		out[id] = struct{}{}
	}
	return out
}

// Enabled returns whether a flag is enabled for a guild.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic guild rollout, e.g. 25%)
// - id|id|... (explicit guild allow list)
func (m *Manager) Enabled(name string, guildID uint64) bool {
	if m == nil {
		return false
	}

	key := normalize(name)
	value, ok := m.flags[key]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if ids, ok := m.guilds[key]; ok {
		_, listed := ids[guildID]
		return listed
	}

	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if guildID == 0 {
			return false
		}
		return rolloutBucket(key, guildID) < pct
	}

	return false
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one guild.
func (m *Manager) Snapshot(guildID uint64) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, guildID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, guildID uint64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(guildID, 10)))
	return int(h.Sum32() % 100)
}
