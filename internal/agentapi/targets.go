// Package agentapi is the transport adapter for the remote agent service.
// It owns the wire contract (endpoint paths, request and response field
// names) and converts responses into the transcript schema used by the
// session core.
package agentapi

import (
	"fmt"
	"strings"
)

// Target identifies one of the remote agent operations.
type Target string

const (
	TargetResearch    Target = "research"
	TargetProduct     Target = "product"
	TargetMarketing   Target = "marketing"
	TargetRunPipeline Target = "run-pipeline"
)

// Auxiliary endpoints. They are not reachable through a Target.
const (
	EndpointChooseAgent       = "/choose-agent"
	EndpointGetReports        = "/get-reports"
	EndpointDownloadReport    = "/download-report"
	EndpointDownloadReportPDF = "/download-report-pdf"
)

type targetInfo struct {
	endpoint string
	label    string
	aliases  []string
}

var targets = map[Target]targetInfo{
	TargetProduct: {
		endpoint: "/product-agent",
		label:    "Generate Product Idea",
		aliases:  []string{"product-agent", "product_agent"},
	},
	TargetResearch: {
		endpoint: "/research-agent",
		label:    "Get Research Report",
		aliases:  []string{"research-agent", "research_agent"},
	},
	TargetMarketing: {
		endpoint: "/marketing-agent",
		label:    "Generate Marketing Plan",
		aliases:  []string{"marketing-agent", "marketing_agent"},
	},
	TargetRunPipeline: {
		endpoint: "/run-pipeline",
		label:    "Run Full Pipeline",
		aliases:  []string{"pipeline", "run_pipeline", "full"},
	},
}

// Targets returns every dispatch target in button order.
func Targets() []Target {
	return []Target{TargetProduct, TargetResearch, TargetMarketing, TargetRunPipeline}
}

// Valid reports whether t is part of the fixed enumeration.
func (t Target) Valid() bool {
	_, ok := targets[t]
	return ok
}

// Endpoint returns the request path for t, e.g. "/research-agent".
func (t Target) Endpoint() (string, bool) {
	info, ok := targets[t]
	return info.endpoint, ok
}

// Label returns the human label shown on the trigger for t.
func (t Target) Label() string {
	if info, ok := targets[t]; ok {
		return info.label
	}
	return string(t)
}

func (t Target) String() string { return string(t) }

// ParseTarget resolves a target from its name, an alias or its endpoint path.
func ParseTarget(s string) (Target, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for t, info := range targets {
		if key == string(t) || key == info.endpoint || key == strings.TrimPrefix(info.endpoint, "/") {
			return t, nil
		}
		for _, a := range info.aliases {
			if key == a {
				return t, nil
			}
		}
	}
	return "", fmt.Errorf("unknown agent %q (valid: research, product, marketing, run-pipeline)", s)
}
