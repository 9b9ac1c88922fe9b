package auth

// Known OAuth scopes used by the insights backend.
const (
	ScopeActivityRead      = "activity:read"
	ScopeInsightsRead      = "insights:read"
	ScopeNotificationsRead = "notifications:read"
	ScopeJobsRun           = "jobs:run"
)
