// Package domain contains the core domain models for the WolfAlert
// content-ingestion and relevance-scoring pipeline.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Reliability describes how much weight a source's content carries.
type Reliability string

const (
	// ReliabilityHigh marks official company sources.
	ReliabilityHigh Reliability = "high"
	// ReliabilityMedium marks established publications.
	ReliabilityMedium Reliability = "medium"
	// ReliabilityCommunity marks community feeds that need heavier filtering.
	ReliabilityCommunity Reliability = "community"
)

var validReliabilities = map[Reliability]bool{
	ReliabilityHigh:      true,
	ReliabilityMedium:    true,
	ReliabilityCommunity: true,
}

// IsValid reports whether r is a recognised reliability tier.
func (r Reliability) IsValid() bool {
	return validReliabilities[r]
}

// ImpactType classifies the business impact of an article for a profile.
type ImpactType string

const (
	// ImpactThreat flags developments that endanger the profile's position.
	ImpactThreat ImpactType = "threat"
	// ImpactOpportunity flags developments the profile could exploit.
	ImpactOpportunity ImpactType = "opportunity"
	// ImpactWatch flags developments worth monitoring.
	ImpactWatch ImpactType = "watch"
)

var validImpactTypes = map[ImpactType]bool{
	ImpactThreat:      true,
	ImpactOpportunity: true,
	ImpactWatch:       true,
}

// IsValid reports whether t is a recognised impact type.
func (t ImpactType) IsValid() bool {
	return validImpactTypes[t]
}

// Source is an RSS feed endpoint tracked by the registry.
type Source struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	FeedURL             string        `json:"feed_url"`
	Reliability         Reliability   `json:"reliability"`
	Weight              float64       `json:"weight"`
	FetchInterval       time.Duration `json:"fetch_interval"`
	LastFetchedAt       *time.Time    `json:"last_fetched_at,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Degraded            bool          `json:"degraded"`
	Active              bool          `json:"active"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// Article is one unique piece of content ingested from a source.
// The canonical URL is the dedup key; rows are immutable after creation
// except for the processed flag and the attempt counter.
type Article struct {
	ID                 string    `json:"id"`
	SourceID           string    `json:"source_id"`
	URL                string    `json:"url"`
	Title              string    `json:"title"`
	Content            string    `json:"content"`
	PublishedAt        time.Time `json:"published_at"`
	FetchedAt          time.Time `json:"fetched_at"`
	ExpiresAt          time.Time `json:"expires_at"`
	Processed          bool      `json:"processed"`
	ProcessingAttempts int       `json:"processing_attempts"`
}

// Profile is a user-defined lens that articles are scored against.
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Industry   string    `json:"industry"`
	Department string    `json:"department"`
	RoleLevel  string    `json:"role_level"`
	SessionID  string    `json:"session_id,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Fingerprint returns the deterministic cache partition key for the profile.
// Profiles sharing industry, department, and role level share scored results.
func (p *Profile) Fingerprint() string {
	return FingerprintOf(p.Industry, p.Department, p.RoleLevel)
}

// FingerprintOf derives a fingerprint from the classification axes directly.
// Axes are lowercased and trimmed so cosmetic differences do not split the
// cache partition.
func FingerprintOf(industry, department, roleLevel string) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	h := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%s", norm(industry), norm(department), norm(roleLevel)))
	return hex.EncodeToString(h[:])
}

// Insight is the cached output of scoring one article against one profile
// fingerprint under one model version. Never mutated once created.
type Insight struct {
	ID                 string     `json:"id"`
	ArticleID          string     `json:"article_id"`
	ProfileFingerprint string     `json:"profile_fingerprint"`
	ModelVersion       string     `json:"model_version"`
	Summary            string     `json:"summary"`
	ImpactReasoning    string     `json:"impact_reasoning"`
	ImpactType         ImpactType `json:"impact_type"`
	ImpactScore        float64    `json:"impact_score"`
	ProcessingTimeMs   int        `json:"processing_time_ms"`
	CreatedAt          time.Time  `json:"created_at"`

	// Denormalized article fields populated on dashboard reads.
	ArticleTitle       string    `json:"article_title,omitempty"`
	ArticleURL         string    `json:"article_url,omitempty"`
	ArticlePublishedAt time.Time `json:"article_published_at,omitempty"`
}

// Validate checks the insight satisfies the persistence invariants:
// score within [0,1] and a recognised impact type.
func (i *Insight) Validate() error {
	if i.ImpactScore < 0 || i.ImpactScore > 1 {
		return fmt.Errorf("%w: impact score %.4f outside [0,1]", ErrMalformedOutput, i.ImpactScore)
	}
	if !i.ImpactType.IsValid() {
		return fmt.Errorf("%w: unknown impact type %q", ErrMalformedOutput, i.ImpactType)
	}
	return nil
}

// Dashboard is the assembled alert view for one profile.
type Dashboard struct {
	ProfileID   string             `json:"profile_id"`
	Fingerprint string             `json:"fingerprint"`
	Primary     *Insight           `json:"primary,omitempty"`
	Secondary   []*Insight         `json:"secondary"`
	Counts      map[ImpactType]int `json:"counts"`
	GeneratedAt time.Time          `json:"generated_at"`
}
