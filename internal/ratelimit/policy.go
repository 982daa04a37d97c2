package ratelimit

// Endpoint class names used as rate-limit keys. Handlers reference these
// when wiring the middleware; unknown names fall back to the default policy.
const (
	EndpointDefault      = "default"
	EndpointLogin        = "auth_login"
	EndpointRegister     = "auth_register"
	EndpointQuoteCreate  = "quote_create"
	EndpointQuoteList    = "quote_list"
	EndpointFileUpload   = "file_upload"
	EndpointAIDetection  = "ai_detection"
	EndpointPublicQuote  = "public_quote"
)

// Policy is a request budget: Limit requests per WindowMinutes
type Policy struct {
	Limit         int
	WindowMinutes int
}

// Per-endpoint-class policies, each independently tunable. Tenant-scoped
// checks apply TenantMultiplier on top of these: a tenant represents many
// legitimate users sharing one quota.
var policies = map[string]Policy{
	EndpointDefault:     {Limit: 100, WindowMinutes: 1},
	EndpointLogin:       {Limit: 5, WindowMinutes: 5},
	EndpointRegister:    {Limit: 3, WindowMinutes: 60},
	EndpointQuoteCreate: {Limit: 10, WindowMinutes: 1},
	EndpointQuoteList:   {Limit: 50, WindowMinutes: 1},
	EndpointFileUpload:  {Limit: 20, WindowMinutes: 5},
	EndpointAIDetection: {Limit: 5, WindowMinutes: 1},
	EndpointPublicQuote: {Limit: 20, WindowMinutes: 5},
}

// TenantMultiplier scales an IP-level policy up to the tenant axis
const TenantMultiplier = 10

// GetPolicy returns the policy for an endpoint class, or the default policy
// for unknown names.
func GetPolicy(endpoint string) Policy {
	if p, ok := policies[endpoint]; ok {
		return p
	}
	return policies[EndpointDefault]
}
