package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles with gradual per-user rollout.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent (0-100) assigns users by a hash of their ID.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// FeatureGamification registers the post-commit gamification interceptor.
	FeatureGamification = "gamification.enabled"

	// FeatureLeaderboardCache mirrors leaderboards into Redis.
	FeatureLeaderboardCache = "leaderboard.cache"

	// FeatureNotifyAchievement stores a notification for earned achievements.
	FeatureNotifyAchievement = "notify.achievement"
)

// LoadFeatureFlags returns the defaults overridden by FEATURE_* variables.
// FEATURE_NOTIFY_ACHIEVEMENT=false disables a flag; FEATURE_NOTIFY_ACHIEVEMENT=25
// enables it for a quarter of users.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.register(FeatureGamification, "Award achievements and points after progress commits", true)
	ff.register(FeatureLeaderboardCache, "Serve leaderboards from Redis", true)
	ff.register(FeatureNotifyAchievement, "Notify learners about earned achievements", true)
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) register(name, description string, enabled bool) {
	ff.features[name] = &Feature{
		Name:           name,
		Description:    description,
		Enabled:        enabled,
		RolloutPercent: 100,
	}
}

func (ff *FeatureFlags) loadFromEnvironment() {
	for name, f := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			f.Enabled = b
			continue
		}
		if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
			f.Enabled = pct > 0
			f.RolloutPercent = pct
		}
	}
}

func featureNameToEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(name))
}

// IsEnabled reports whether a flag is on for everyone it applies to.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	return ok && f.Enabled
}

// IsEnabledFor reports whether a flag is on for one user.
func (ff *FeatureFlags) IsEnabledFor(name, userID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	if !ok || !f.Enabled {
		return false
	}
	if f.RolloutPercent >= 100 {
		return true
	}
	return inRollout(userID, name, f.RolloutPercent)
}

func inRollout(userID, featureName string, percent int) bool {
	if percent <= 0 {
		return false
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(featureName + ":" + userID))
	return int(h.Sum32()%100) < percent
}

// SetRolloutPercent changes the rollout of a flag.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{Feature: name, Msg: fmt.Sprintf("rollout percent %d out of range", percent)}
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name, Msg: "unknown feature"}
	}
	f.RolloutPercent = percent
	return nil
}

// SetEnabled turns a flag on or off.
func (ff *FeatureFlags) SetEnabled(name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name, Msg: "unknown feature"}
	}
	f.Enabled = enabled
	return nil
}

// FeatureFlagError reports a bad flag operation.
type FeatureFlagError struct {
	Feature string
	Msg     string
}

func (e *FeatureFlagError) Error() string {
	return "feature " + e.Feature + ": " + e.Msg
}
