package models

import (
	"fmt"
	"math"
	"strings"
)

// Channel is the attack channel a template simulates
type Channel string

const (
	ChannelEmail        Channel = "email"
	ChannelWhatsApp     Channel = "whatsapp"
	ChannelVishing      Channel = "vishing"
	ChannelSMS          Channel = "sms"
	ChannelQRCode       Channel = "qr-code"
	ChannelMultiChannel Channel = "multi-channel"
)

// Channels lists every channel in display order
var Channels = []Channel{
	ChannelEmail,
	ChannelWhatsApp,
	ChannelVishing,
	ChannelSMS,
	ChannelQRCode,
	ChannelMultiChannel,
}

// Valid reports whether c is one of the known channels
func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Source distinguishes curated templates from community submissions
type Source string

const (
	SourceCurated   Source = "sosafe-curated"
	SourceCommunity Source = "community"
)

// Sources lists every source type
var Sources = []Source{SourceCurated, SourceCommunity}

// Valid reports whether s is one of the known sources
func (s Source) Valid() bool {
	return s == SourceCurated || s == SourceCommunity
}

// Status is the marketplace badge shown next to a template
type Status string

const (
	StatusNew      Status = "new"
	StatusTrending Status = "trending"
	StatusPopular  Status = "popular"
	StatusUpdated  Status = "updated"
)

// Valid reports whether s is a known status. The empty status is allowed.
func (s Status) Valid() bool {
	switch s {
	case "", StatusNew, StatusTrending, StatusPopular, StatusUpdated:
		return true
	}
	return false
}

const (
	MinDifficulty = 1
	MaxDifficulty = 5
	MaxRating     = 5.0
)

// Author describes who published a template
type Author struct {
	Name               string `json:"name"`
	Industry           string `json:"industry,omitempty"`
	OrgSize            string `json:"orgSize,omitempty"`
	TrustScore         int    `json:"trustScore,omitempty"`
	TemplatesPublished int    `json:"templatesPublished,omitempty"`
	MemberSince        string `json:"memberSince,omitempty"`
}

// Metrics holds the effectiveness figures shown on a template's detail panel
type Metrics struct {
	AvgReportingRate      float64   `json:"avgReportingRate"`
	CompletionRate        float64   `json:"completionRate"`
	BehaviorChangeScore   float64   `json:"behaviorChangeScore"`
	ClickRateOverTime     []float64 `json:"clickRateOverTime,omitempty"`
	ReportingRateOverTime []float64 `json:"reportingRateOverTime,omitempty"`
}

// Breakdown is a labelled count (industry, org size, region)
type Breakdown struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Usage holds network-wide adoption figures
type Usage struct {
	TotalSimulations int         `json:"totalSimulations"`
	Industries       []Breakdown `json:"industries,omitempty"`
	OrgSizes         []Breakdown `json:"orgSizes,omitempty"`
	Regions          []Breakdown `json:"regions,omitempty"`
	LastDeployedAgo  string      `json:"lastDeployedAgo,omitempty"`
}

// Review is an organisation's rating of a template
type Review struct {
	ID                 int     `json:"id"`
	OrgIndustry        string  `json:"orgIndustry"`
	OrgSize            string  `json:"orgSize"`
	Rating             int     `json:"rating"`
	Comment            string  `json:"comment"`
	ClickRateReduction float64 `json:"clickRateReduction"`
	TimeAgo            string  `json:"timeAgo"`
}

// Record is one template in the marketplace catalog.
// Records are immutable once built by NewRecord; use the With* helpers to derive updated copies.
type Record struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Channel     Channel  `json:"channel"`
	Source      Source   `json:"source"`
	Tags        []string `json:"tags"`
	Author      Author   `json:"author"`

	Popularity    int     `json:"popularity"`    // adopting organisations
	Effectiveness float64 `json:"effectiveness"` // average click rate, percent
	Rating        float64 `json:"rating"`
	Difficulty    int     `json:"difficulty"`
	Recency       int64   `json:"recency"`

	Status         Status   `json:"status,omitempty"`
	Language       string   `json:"language,omitempty"`
	NetworkPowered bool     `json:"networkPowered"`
	CreatedAt      string   `json:"createdAt,omitempty"`
	UpdatedAt      string   `json:"updatedAt,omitempty"`
	Metrics        Metrics  `json:"metrics"`
	Usage          Usage    `json:"usage"`
	Reviews        []Review `json:"reviews,omitempty"`
}

// ValidationError reports a record or query field that failed validation
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// NewRecord validates r and returns an independent copy of it
func NewRecord(r Record) (*Record, error) {
	if r.ID <= 0 {
		return nil, &ValidationError{Field: "id", Value: r.ID, Reason: "must be positive"}
	}
	if strings.TrimSpace(r.Name) == "" {
		return nil, &ValidationError{Field: "name", Value: r.Name, Reason: "is required"}
	}
	if !r.Channel.Valid() {
		return nil, &ValidationError{Field: "channel", Value: r.Channel, Reason: "unknown channel"}
	}
	if !r.Source.Valid() {
		return nil, &ValidationError{Field: "source", Value: r.Source, Reason: "unknown source"}
	}
	if !r.Status.Valid() {
		return nil, &ValidationError{Field: "status", Value: r.Status, Reason: "unknown status"}
	}
	if math.IsNaN(r.Rating) || r.Rating < 0 || r.Rating > MaxRating {
		return nil, &ValidationError{Field: "rating", Value: r.Rating, Reason: "must be within [0,5]"}
	}
	if r.Difficulty < MinDifficulty || r.Difficulty > MaxDifficulty {
		return nil, &ValidationError{Field: "difficulty", Value: r.Difficulty, Reason: "must be within [1,5]"}
	}
	if r.Popularity < 0 {
		return nil, &ValidationError{Field: "popularity", Value: r.Popularity, Reason: "must not be negative"}
	}
	if math.IsNaN(r.Effectiveness) || math.IsInf(r.Effectiveness, 0) || r.Effectiveness < 0 {
		return nil, &ValidationError{Field: "effectiveness", Value: r.Effectiveness, Reason: "must be a non-negative number"}
	}
	if r.Author.TrustScore < 0 || r.Author.TrustScore > 100 {
		return nil, &ValidationError{Field: "author.trust_score", Value: r.Author.TrustScore, Reason: "must be within [0,100]"}
	}
	for _, rev := range r.Reviews {
		if rev.Rating < 1 || rev.Rating > 5 {
			return nil, &ValidationError{Field: "reviews.rating", Value: rev.Rating, Reason: "must be within [1,5]"}
		}
	}

	return r.clone(), nil
}

// WithPopularity returns a copy of r with a new popularity value
func (r *Record) WithPopularity(popularity int) *Record {
	c := r.clone()
	c.Popularity = popularity
	return c
}

// WithUsage returns a copy of r with new usage figures
func (r *Record) WithUsage(usage Usage) *Record {
	c := r.clone()
	c.Usage = usage
	c.Usage.Industries = append([]Breakdown(nil), usage.Industries...)
	c.Usage.OrgSizes = append([]Breakdown(nil), usage.OrgSizes...)
	c.Usage.Regions = append([]Breakdown(nil), usage.Regions...)
	return c
}

// clone deep-copies the slices so the copy shares no mutable state with r
func (r *Record) clone() *Record {
	c := *r
	c.Tags = append([]string(nil), r.Tags...)
	c.Reviews = append([]Review(nil), r.Reviews...)
	c.Metrics.ClickRateOverTime = append([]float64(nil), r.Metrics.ClickRateOverTime...)
	c.Metrics.ReportingRateOverTime = append([]float64(nil), r.Metrics.ReportingRateOverTime...)
	c.Usage.Industries = append([]Breakdown(nil), r.Usage.Industries...)
	c.Usage.OrgSizes = append([]Breakdown(nil), r.Usage.OrgSizes...)
	c.Usage.Regions = append([]Breakdown(nil), r.Usage.Regions...)
	return &c
}
