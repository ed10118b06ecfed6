package jira

import (
	"encoding/json"
	"strings"
)

// DefaultIssueType is used when IssueInput.IssueType is empty.
const DefaultIssueType = "Task"

// Node is one element of an Atlassian Document Format tree.
type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// Document is an ADF document root.
type Document struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Content []Node `json:"content"`
}

// TextDocument wraps plain text in a single-paragraph ADF document.
func TextDocument(text string) Document {
	return Document{
		Type:    "doc",
		Version: 1,
		Content: []Node{{
			Type:    "paragraph",
			Content: []Node{{Type: "text", Text: text}},
		}},
	}
}

// Text concatenates every text node in document order.
func (d *Document) Text() string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	var walk func([]Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			b.WriteString(n.Text)
			walk(n.Content)
		}
	}
	walk(d.Content)
	return b.String()
}

// IssueInput describes an issue to create. Fields are merged over the base
// fields, so they can override summary or issuetype.
type IssueInput struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
	Fields      map[string]any
}

func (in IssueInput) payload() map[string]any {
	issueType := in.IssueType
	if issueType == "" {
		issueType = DefaultIssueType
	}
	fields := map[string]any{
		"project":     map[string]string{"key": in.ProjectKey},
		"summary":     in.Summary,
		"description": TextDocument(in.Description),
		"issuetype":   map[string]string{"name": issueType},
	}
	for k, v := range in.Fields {
		fields[k] = v
	}
	return map[string]any{"fields": fields}
}

// BulkFetchInput is the body of POST /rest/api/3/issue/bulkfetch.
type BulkFetchInput struct {
	IssueIDsOrKeys []string `json:"issueIdsOrKeys"`
	Fields         []string `json:"fields,omitempty"`
	Expand         []string `json:"expand,omitempty"`
	FieldsByKeys   *bool    `json:"fieldsByKeys,omitempty"`
	Properties     []string `json:"properties,omitempty"`
}

type Project struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

type IssueType struct {
	Name string `json:"name"`
}

type IssueFields struct {
	Summary     string          `json:"summary"`
	Project     *Project        `json:"project,omitempty"`
	IssueType   *IssueType      `json:"issuetype,omitempty"`
	Description *Document       `json:"description,omitempty"`
	Assignee    json.RawMessage `json:"assignee,omitempty"`
	Status      json.RawMessage `json:"status,omitempty"`
}

// Issue is the subset of the issue resource the suites read.
type Issue struct {
	ID     string       `json:"id"`
	Key    string       `json:"key"`
	Self   string       `json:"self,omitempty"`
	Fields *IssueFields `json:"fields,omitempty"`
}

type BulkFetchResult struct {
	Issues []Issue           `json:"issues"`
	Names  map[string]string `json:"names,omitempty"`
}

// Find returns the issue with the given key, or nil.
func (r *BulkFetchResult) Find(key string) *Issue {
	for i := range r.Issues {
		if r.Issues[i].Key == key {
			return &r.Issues[i]
		}
	}
	return nil
}

type User struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName,omitempty"`
	Active       bool   `json:"active"`
}
