package solana

import "strings"

// Environment is the JSON RPC endpoint of a public cluster.
type Environment string

const (
	EnvironmentDev   Environment = "https://api.devnet.solana.com"
	EnvironmentTest  Environment = "https://api.testnet.solana.com"
	EnvironmentProd  Environment = "https://api.mainnet-beta.solana.com"
	EnvironmentLocal Environment = "http://127.0.0.1:8899"
)

var clusterEndpoints = map[string]Environment{
	"devnet":       EnvironmentDev,
	"testnet":      EnvironmentTest,
	"mainnet":      EnvironmentProd,
	"mainnet-beta": EnvironmentProd,
	"localnet":     EnvironmentLocal,
}

// ResolveEndpoint maps a cluster name to its RPC endpoint. Anything else is
// assumed to already be an endpoint URL and is returned unchanged.
func ResolveEndpoint(endpoint string) string {
	if env, ok := clusterEndpoints[strings.ToLower(strings.TrimSpace(endpoint))]; ok {
		return string(env)
	}
	return endpoint
}
