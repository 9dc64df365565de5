package a11y

import (
	"encoding/json"
	"slices"
	"strings"
)

// Impact is the axe severity of a finding.
type Impact string

const (
	ImpactMinor    Impact = "minor"
	ImpactModerate Impact = "moderate"
	ImpactSerious  Impact = "serious"
	ImpactCritical Impact = "critical"
)

func (i Impact) rank() int {
	switch i {
	case ImpactMinor:
		return 1
	case ImpactModerate:
		return 2
	case ImpactSerious:
		return 3
	case ImpactCritical:
		return 4
	}
	return 0
}

// AtLeast reports whether i is as severe as min.
func (i Impact) AtLeast(min Impact) bool { return i.rank() >= min.rank() && i.rank() > 0 }

type Node struct {
	Target         []string `json:"target"`
	HTML           string   `json:"html"`
	FailureSummary string   `json:"failureSummary"`
	Impact         Impact   `json:"impact"`
}

type Violation struct {
	ID          string   `json:"id"`
	Impact      Impact   `json:"impact"`
	Description string   `json:"description"`
	Help        string   `json:"help"`
	HelpURL     string   `json:"helpUrl"`
	Tags        []string `json:"tags"`
	Nodes       []Node   `json:"nodes"`
}

type Results struct {
	URL        string     `json:"url"`
	Timestamp  string     `json:"timestamp"`
	Violations Violations `json:"violations"`
	Incomplete Violations `json:"incomplete"`
	Passes     int        `json:"passes"`
}

// Violations is a filterable list of findings.
type Violations []Violation

func (vs Violations) Filter(keep func(Violation) bool) Violations {
	var out Violations
	for _, v := range vs {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// WithIDs keeps findings of the given rules.
func (vs Violations) WithIDs(ids ...string) Violations {
	return vs.Filter(func(v Violation) bool { return slices.Contains(ids, v.ID) })
}

func (vs Violations) WithIDPrefix(prefix string) Violations {
	return vs.Filter(func(v Violation) bool { return strings.HasPrefix(v.ID, prefix) })
}

func (vs Violations) WithIDContaining(sub string) Violations {
	return vs.Filter(func(v Violation) bool { return strings.Contains(v.ID, sub) })
}

// AtLeast keeps findings with impact min or worse.
func (vs Violations) AtLeast(min Impact) Violations {
	return vs.Filter(func(v Violation) bool { return v.Impact.AtLeast(min) })
}

// Targeting keeps findings where some node selector contains one of subs.
func (vs Violations) Targeting(subs ...string) Violations {
	return vs.Filter(func(v Violation) bool {
		for _, n := range v.Nodes {
			first := ""
			if len(n.Target) > 0 {
				first = n.Target[0]
			}
			for _, s := range subs {
				if strings.Contains(first, s) {
					return true
				}
			}
		}
		return false
	})
}

func (vs Violations) IDs() []string {
	ids := make([]string, len(vs))
	for i, v := range vs {
		ids[i] = v.ID
	}
	return ids
}

// Summary is the report attachment form of a finding.
type Summary struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Impact      Impact   `json:"impact"`
	HelpURL     string   `json:"helpUrl"`
	Nodes       []string `json:"nodes"`
}

func (vs Violations) Summaries() []Summary {
	out := make([]Summary, len(vs))
	for i, v := range vs {
		nodes := make([]string, len(v.Nodes))
		for j, n := range v.Nodes {
			nodes[j] = strings.Join(n.Target, " ")
		}
		out[i] = Summary{ID: v.ID, Description: v.Description, Impact: v.Impact, HelpURL: v.HelpURL, Nodes: nodes}
	}
	return out
}

// JSON renders the summaries indented for attachments.
func (vs Violations) JSON() ([]byte, error) {
	return json.MarshalIndent(vs.Summaries(), "", "  ")
}
