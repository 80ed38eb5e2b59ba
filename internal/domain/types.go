package domain

import (
	"slices"
	"time"
)

type Capability string

const (
	CapabilityResearcher   Capability = "researcher"
	CapabilityGenerator    Capability = "generator"
	CapabilityOptimizer    Capability = "optimizer"
	CapabilityPublisher    Capability = "publisher"
	CapabilityAnalyzer     Capability = "analyzer"
	CapabilityCoordinator  Capability = "coordinator"
	CapabilityReviewer     Capability = "reviewer"
	CapabilityVideoCreator Capability = "video_creator"
	CapabilityReelCreator  Capability = "reel_creator"
)

// Capabilities lists every known capability in roster order.
var Capabilities = []Capability{
	CapabilityResearcher,
	CapabilityGenerator,
	CapabilityOptimizer,
	CapabilityPublisher,
	CapabilityAnalyzer,
	CapabilityCoordinator,
	CapabilityReviewer,
	CapabilityVideoCreator,
	CapabilityReelCreator,
}

func (c Capability) Valid() bool {
	return slices.Contains(Capabilities, c)
}

// IsVideo reports whether agents of this capability carry a VideoProfile.
func (c Capability) IsVideo() bool {
	return c == CapabilityVideoCreator || c == CapabilityReelCreator
}

type AgentStatus string

const (
	AgentStatusIdle      AgentStatus = "idle"
	AgentStatusWorking   AgentStatus = "working"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusError     AgentStatus = "error"
	AgentStatusPaused    AgentStatus = "paused"
)

type Stage string

const (
	StageResearch          Stage = "research"
	StageGeneration        Stage = "generation"
	StageOptimization      Stage = "optimization"
	StageReview            Stage = "review"
	StageApproved          Stage = "approved"
	StagePublished         Stage = "published"
	StageArchived          Stage = "archived"
	StageRevisionRequested Stage = "revision_requested"
)

// Advanceable reports whether the pipeline engine moves items out of this
// stage on its own.
func (s Stage) Advanceable() bool {
	switch s {
	case StageResearch, StageGeneration, StageOptimization, StageRevisionRequested:
		return true
	}
	return false
}

// InPipeline reports whether the item is still being produced.
func (s Stage) InPipeline() bool {
	return s == StageResearch || s == StageGeneration || s == StageOptimization
}

type ContentKind string

const (
	ContentKindArticle     ContentKind = "article"
	ContentKindSocialPost  ContentKind = "social_post"
	ContentKindVideoScript ContentKind = "video_script"
	ContentKindEmail       ContentKind = "email"
	ContentKindAdCopy      ContentKind = "ad_copy"
	ContentKindBlogPost    ContentKind = "blog_post"
	ContentKindReel        ContentKind = "reel"
	ContentKindVideo       ContentKind = "video"
)

type FeedbackStatus string

const (
	FeedbackStatusPending   FeedbackStatus = "pending"
	FeedbackStatusAddressed FeedbackStatus = "addressed"
	FeedbackStatusRejected  FeedbackStatus = "rejected"
)

type VideoKind string

const (
	VideoKindReel  VideoKind = "reel"
	VideoKindVideo VideoKind = "video"
	VideoKindShort VideoKind = "short"
)

type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusGenerating VideoStatus = "generating"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

type Agent struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Capability     Capability    `json:"capability"`
	Status         AgentStatus   `json:"status"`
	Progress       int           `json:"progress"`
	LastActivity   time.Time     `json:"last_activity"`
	TasksCompleted int           `json:"tasks_completed"`
	CurrentTask    string        `json:"current_task,omitempty"`
	Video          *VideoProfile `json:"video,omitempty"`
}

// VideoProfile is only present on video_creator and reel_creator agents.
type VideoProfile struct {
	VideosCreated   int     `json:"videos_created"`
	AverageDuration float64 `json:"average_duration"`
	CurrentFormat   string  `json:"current_format,omitempty"`
}

func (a Agent) Clone() Agent {
	if a.Video != nil {
		v := *a.Video
		a.Video = &v
	}
	return a
}

type ContentMetadata struct {
	Keywords       []string    `json:"keywords"`
	TargetAudience string      `json:"target_audience"`
	Platforms      []string    `json:"platforms"`
	EstimatedReach int         `json:"estimated_reach"`
	TrendingTopics []string    `json:"trending_topics"`
	VideoRequested bool        `json:"video_requested,omitempty"`
	VideoStatus    VideoStatus `json:"video_status,omitempty"`
}

type FeedbackEntry struct {
	ID        string         `json:"id"`
	Text      string         `json:"feedback"`
	Timestamp time.Time      `json:"timestamp"`
	Status    FeedbackStatus `json:"status"`
}

type VideoArtifact struct {
	ID        string      `json:"id"`
	Kind      VideoKind   `json:"type"`
	Duration  int         `json:"duration"`
	Format    string      `json:"format"`
	Status    VideoStatus `json:"status"`
	URL       string      `json:"url,omitempty"`
	Thumbnail string      `json:"thumbnail,omitempty"`
	Script    string      `json:"script,omitempty"`
}

type ContentItem struct {
	ID                   string          `json:"id"`
	Title                string          `json:"title"`
	Kind                 ContentKind     `json:"type"`
	Stage                Stage           `json:"status"`
	TrendScore           int             `json:"trend_score"`
	SEOScore             int             `json:"seo_score"`
	EngagementPrediction int             `json:"engagement_prediction"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Body                 string          `json:"content"`
	Metadata             ContentMetadata `json:"metadata"`
	AssignedAgents       []string        `json:"assigned_agents"`
	Feedback             []FeedbackEntry `json:"feedback,omitempty"`
	Video                *VideoArtifact  `json:"video_content,omitempty"`
}

// Clone returns a copy that shares no slices or pointers with c.
func (c ContentItem) Clone() ContentItem {
	c.Metadata.Keywords = slices.Clone(c.Metadata.Keywords)
	c.Metadata.Platforms = slices.Clone(c.Metadata.Platforms)
	c.Metadata.TrendingTopics = slices.Clone(c.Metadata.TrendingTopics)
	c.AssignedAgents = slices.Clone(c.AssignedAgents)
	c.Feedback = slices.Clone(c.Feedback)
	if c.Video != nil {
		v := *c.Video
		c.Video = &v
	}
	return c
}

// LatestPendingFeedback returns the index of the most recent pending entry, or -1.
func (c ContentItem) LatestPendingFeedback() int {
	for i := len(c.Feedback) - 1; i >= 0; i-- {
		if c.Feedback[i].Status == FeedbackStatusPending {
			return i
		}
	}
	return -1
}

type Metrics struct {
	TotalContentCreated  int `json:"total_content_created"`
	AverageTrendScore    int `json:"average_trend_score"`
	ActiveAgents         int `json:"active_agents"`
	ContentPipelineCount int `json:"content_pipeline_count"`
	DailyOutput          int `json:"daily_output"`
	SuccessRate          int `json:"success_rate"`
	VideosCreated        int `json:"videos_created"`
	ReelsCreated         int `json:"reels_created"`
}

type Trend struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Volume  int    `json:"volume" yaml:"volume"`
	Growth  string `json:"growth" yaml:"growth"`
}

type GeneratedContent struct {
	Body             string   `json:"body"`
	WordCount        int      `json:"word_count"`
	ReadabilityScore int      `json:"readability_score"`
	Keywords         []string `json:"keywords"`
}

type VideoRequest struct {
	ContentID string    `json:"content_id"`
	Kind      VideoKind `json:"kind"`
	Duration  int       `json:"duration"`
	Format    string    `json:"format"`
	Script    string    `json:"script"`
}
