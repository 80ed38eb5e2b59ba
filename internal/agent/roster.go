package agent

import "content_orchestra/internal/domain"

// DefaultRoster is the fixed set of agents created at startup.
func DefaultRoster() []domain.Agent {
	return []domain.Agent{
		{ID: "researcher-01", Name: "Trend Researcher", Capability: domain.CapabilityResearcher},
		{ID: "generator-01", Name: "Content Generator", Capability: domain.CapabilityGenerator},
		{ID: "generator-02", Name: "Creative Writer", Capability: domain.CapabilityGenerator},
		{ID: "optimizer-01", Name: "SEO Optimizer", Capability: domain.CapabilityOptimizer},
		{ID: "publisher-01", Name: "Content Publisher", Capability: domain.CapabilityPublisher},
		{ID: "analyzer-01", Name: "Performance Analyzer", Capability: domain.CapabilityAnalyzer},
		{ID: "coordinator-01", Name: "System Coordinator", Capability: domain.CapabilityCoordinator},
		{ID: "reviewer-01", Name: "Content Reviewer", Capability: domain.CapabilityReviewer},
		{ID: "video-creator-01", Name: "Video Creator Pro", Capability: domain.CapabilityVideoCreator, Video: &domain.VideoProfile{}},
		{ID: "reel-creator-01", Name: "Reel Master", Capability: domain.CapabilityReelCreator, Video: &domain.VideoProfile{}},
		{ID: "reel-creator-02", Name: "Short Form Specialist", Capability: domain.CapabilityReelCreator, Video: &domain.VideoProfile{}},
	}
}

// VideoFormat is the output format a video-capable agent renders.
func VideoFormat(c domain.Capability) string {
	if c == domain.CapabilityReelCreator {
		return "MP4 (9:16)"
	}
	return "MP4 (16:9)"
}

// VideoKindFor maps a video capability to the artifact it produces.
func VideoKindFor(c domain.Capability) domain.VideoKind {
	if c == domain.CapabilityReelCreator {
		return domain.VideoKindReel
	}
	return domain.VideoKindVideo
}
