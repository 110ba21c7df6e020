// Beacon is a tiered metrics-retrieval daemon and CLI for investor
// dashboards.
//
// It fetches metric payloads from a backend API and degrades gracefully
// when the backend is unavailable: a local cache answers immediately
// while revalidating in the background, a durable cache endpoint covers
// backend outages, and a static fallback table guarantees the dashboard
// always has something to show. Every result carries its provenance and
// a freshness classification.
//
// Usage:
//
//	# Fetch one metric through the fallback chain
//	beacon fetch stripe_mrr
//
//	# Run the sidecar server with cache warming
//	beacon serve --config /etc/beacon/config.yaml
//
//	# Inspect or maintain the local cache
//	beacon cache stats
//	beacon cache prune
//
//	# Show version information
//	beacon version
package main

func main() {
	Execute()
}
