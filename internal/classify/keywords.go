package classify

// Keyword lists for the deterministic tagger. Matching is substring based on
// lowercased title + body.

var positiveKeywords = []string{
	"resolved", "fixed", "completed", "passed", "success",
	"working", "recovered", "restored", "upgraded",
}

var negativeKeywords = []string{
	"error", "outage", "fail", "broken", "timeout", "crash",
	"down", "incident", "blocker", "degraded", "502", "503",
	"500", "bug", "regression", "breaking change",
}

var internalImplKeywords = []string{
	"setup", "configure", "install", "migration", "deploy",
	"implement", "training", "onboard", "provision", "roll out",
}

var vendorIssueKeywords = []string{
	"bug", "outage", "error", "defect", "regression", "downtime",
	"broken", "incident", "crash", "503", "502", "500",
}

var vendorRequestKeywords = []string{
	"request", "feature", "enhancement", "suggestion", "would like",
	"please add", "need support for", "capability",
}

type stageKeywords struct {
	stage    string
	keywords []string
}

// Tie-break order follows this slice.
var stageKeywordTable = []stageKeywords{
	{"onboarding", []string{
		"onboarding", "account setup", "initial config", "first login",
		"welcome", "getting started", "provision", "invite", "team access",
		"create account", "sign up",
	}},
	{"integration", []string{
		"api connect", "webhook", "data migration", "sync setup",
		"pipeline", "integration test", "sso", "oauth", "endpoint",
		"api key", "sdk", "data sync",
	}},
	{"stabilization", []string{
		"bug fix", "patch", "hotfix", "edge case", "intermittent",
		"flaky", "tuning", "performance issue", "workaround",
		"stability", "reliability", "outage", "incident", "crash",
		"downtime", "degraded", "503", "502", "500", "regression",
		"breaking change", "investigate",
	}},
	{"optimization", []string{
		"scale", "automat", "cost optim", "advanced feature",
		"rate limit", "batch processing", "caching", "throughput",
		"bulk export", "workflow",
	}},
	{"productive", []string{
		"routine", "regular usage", "monthly report", "status update",
		"renewal", "quarterly review", "usage report",
	}},
}

var reliabilityKeywords = []string{
	"outage", "incident", "downtime", "uptime", "availability",
	"crash", "failure", "failing", "recovery", "failover", "sla",
	"service disruption", "503", "502", "500", "error rate",
	"service restored", "maintenance window",
	"error", "broken", "bug", "regression", "not responding",
	"connection lost", "dropped", "unreachable", "flaky",
}

var performanceKeywords = []string{
	"latency", "slow", "timeout", "rate limit", "throttl",
	"throughput", "response time", "performance", "speed",
	"lag", "bottleneck", "load", "capacity",
	"degradation", "delay", "queue", "backlog",
}

var fitnessKeywords = []string{
	"feature request", "enhancement", "capability", "suggestion",
	"would like", "please add", "need support for", "missing feature",
	"workaround", "roadmap", "planned for",
	"wish list", "not supported", "limitation",
}

var supportKeywords = []string{
	"support ticket", "support team", "customer success", "account manager",
	"escalat", "no response", "follow up", "follow-up", "waiting on",
	"response from", "replied", "reply",
}

// IncidentKeywords mark a signal as a reliability incident when no upstream
// is_incident flag is present.
var IncidentKeywords = []string{
	"outage", "downtime", "503", "502", "500", "unavailable",
	"incident", "service disruption", "system down", "unresponsive",
	"service degradation", "service interruption", "service unavailable",
}

var latencyKeywords = []string{
	"latency", "slow", "sluggish", "timeout", "timed out", "time out",
	"response time", "delay", "lag", "long wait", "loading",
}

var rateLimitKeywords = []string{
	"rate limit", "rate-limit", "ratelimit", "throttl", "429",
	"too many requests", "quota exceeded", "request limit", "api call limit",
}

// PeripheralCategory is a named group of ecosystem-friction keywords.
type PeripheralCategory struct {
	Name     string
	Keywords []string
}

// PeripheralCategories are checked in order; the first match wins.
var PeripheralCategories = []PeripheralCategory{
	{"SSO / Auth", []string{
		"sso", "saml", "ldap", "oauth", "openid", "authentication",
		"login", "sign-in", "sign in", "mfa", "2fa", "two-factor",
		"password", "credential", "single sign",
	}},
	{"Billing", []string{
		"billing", "invoice", "payment", "subscription", "license",
		"pricing", "renewal", "charge", "cost", "quota", "plan upgrade",
		"plan downgrade",
	}},
	{"Access / Permissions", []string{
		"permission", "access control", "rbac", "role", "privilege",
		"authorization", "forbidden", "access denied", "user management",
		"provisioning", "scim", "directory sync", "user access",
	}},
	{"Compliance", []string{
		"compliance", "audit", "gdpr", "soc2", "soc 2", "hipaa",
		"certification", "data retention", "privacy policy",
		"security review",
	}},
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "our": true, "the": true,
	"to": true, "we": true, "with": true,
}
