// File: internal/infra/metrics/metrics.go
// Package metrics holds the Prometheus collectors of the chatbot. Each file
// enqueues its collectors from init(); MustRegister publishes them once.
package metrics

import "strings"

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
