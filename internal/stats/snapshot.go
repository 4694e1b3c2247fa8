package stats

// Snapshot is the immutable global statistics view served by the read API.
// Field names match the shape the DeepSearch stats UI consumes.
type Snapshot struct {
	Global        GlobalStats          `json:"global"`
	ByProjectType []ProjectTypeStats   `json:"byProjectType"`
	TopReused     []TopReusedEntry     `json:"topReused"`
	Collaborative CollaborativeMetrics `json:"collaborativeMetrics"`
}

// GlobalStats holds the cache-wide counters.
type GlobalStats struct {
	TotalLists          int64   `json:"totalLists"`
	TotalReuses         int64   `json:"totalReuses"`
	UniqueRegions       int     `json:"uniqueRegions"`
	UniqueProjectTypes  int     `json:"uniqueProjectTypes"`
	AvgGlobalConfidence float64 `json:"avgGlobalConfidence"`
	SavedGenerations    int64   `json:"savedGenerations"`
}

// ProjectTypeStats is the per-project-type rollup.
type ProjectTypeStats struct {
	ProjectType    string  `json:"projectType"`
	TotalProjects  int64   `json:"totalProjects"`
	TotalUsage     int64   `json:"totalUsage"`
	AvgConfidence  float64 `json:"avgConfidence"`
	RegionsCovered int     `json:"regionsCovered"`
}

// TopReusedEntry is one row of the most-reused leaderboard.
type TopReusedEntry struct {
	ProjectType        string  `json:"projectType"`
	Region             string  `json:"region"`
	UsageCount         int64   `json:"usageCount"`
	Confidence         float64 `json:"confidence"`
	ProjectDescription string  `json:"projectDescription"`
}

// CollaborativeMetrics summarizes cross-contractor sharing.
type CollaborativeMetrics struct {
	ReuseRate                int64   `json:"reuseRate"`
	CrossRegionalProjects    int     `json:"crossRegionalProjects"`
	AverageRegionsPerProject float64 `json:"averageRegionsPerProject"`
}
