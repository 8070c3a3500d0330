package invo

import "strings"

// Environment selects which of the two fixed API deployments a client
// talks to.
type Environment string

const (
	// Production is the primary environment.
	Production Environment = "production"
	// Sandbox is the secondary, non-fiscal test environment.
	Sandbox Environment = "sandbox"
)

var baseURLs = map[Environment]string{
	Production: "https://api.invo.es",
	Sandbox:    "https://api.sandbox.invo.es",
}

// API keys carry a literal prefix identifying the environment they were
// issued for.
const (
	liveKeyPrefix = "invo_tok_live_"
	testKeyPrefix = "invo_tok_test_"
)

func (e Environment) valid() bool {
	_, ok := baseURLs[e]
	return ok
}

// BaseURL returns the fixed base URL for the environment.
func (e Environment) BaseURL() string { return baseURLs[e] }

// EnvironmentForKey derives the environment from an API key's prefix.
// Unrecognized prefixes fall back to Production rather than failing, so
// keys minted before a prefix convention change keep working.
func EnvironmentForKey(key string) Environment {
	switch {
	case strings.HasPrefix(key, testKeyPrefix):
		return Sandbox
	case strings.HasPrefix(key, liveKeyPrefix):
		return Production
	default:
		return Production
	}
}
