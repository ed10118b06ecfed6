package suite

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/jira"
)

// JiraOptions parameterise the issue tracker suite.
type JiraOptions struct {
	ProjectKey    string
	ExpectedEmail string
	BulkKeys      []string
	Now           func() time.Time
}

// JiraSuite runs the create, read, update, delete workflow, a bulk fetch, and a
// cleanup that deletes the issue if an earlier step left it behind.
func JiraSuite(client *jira.Client, opts JiraOptions, logger *zap.Logger) *Suite {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var createdKey string

	getIssue := func(ctx context.Context, key string, want int) (*jira.Issue, error) {
		resp, err := client.GetIssue(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := expectStatus(resp, want); err != nil {
			return nil, err
		}
		if want != http.StatusOK {
			return nil, nil
		}
		var issue jira.Issue
		if err := resp.JSON(&issue); err != nil {
			return nil, err
		}
		return &issue, nil
	}

	requireIssue := func() error {
		return expect(createdKey != "", "no issue was created by an earlier step")
	}

	return &Suite{
		Name: "jira",
		Steps: []Step{
			{
				Name: "myself",
				Run: func(ctx context.Context) error {
					resp, err := client.GetMyself(ctx)
					if err != nil {
						return err
					}
					if err := expectOK(resp); err != nil {
						return err
					}
					var u jira.User
					if err := resp.JSON(&u); err != nil {
						return err
					}
					if err := expect(u.AccountID != "" && u.EmailAddress != "", "myself lacks accountId or emailAddress"); err != nil {
						return err
					}
					if opts.ExpectedEmail != "" {
						return expect(u.EmailAddress == opts.ExpectedEmail,
							"myself email %q, want %q", u.EmailAddress, opts.ExpectedEmail)
					}
					return nil
				},
			},
			{
				Name: "create_issue",
				Run: func(ctx context.Context) error {
					summary := "Test Issue - " + opts.Now().UTC().Format(time.RFC3339)
					resp, err := client.CreateIssue(ctx, jira.IssueInput{
						ProjectKey:  opts.ProjectKey,
						Summary:     summary,
						Description: "This is a test issue created by the qa-suite CRUD workflow.",
						IssueType:   jira.DefaultIssueType,
					})
					if err != nil {
						return err
					}
					if err := expectStatus(resp, http.StatusCreated); err != nil {
						return err
					}
					var issue jira.Issue
					if err := resp.JSON(&issue); err != nil {
						return err
					}
					if err := expect(issue.ID != "" && issue.Key != "", "created issue lacks id or key"); err != nil {
						return err
					}
					createdKey = issue.Key
					logger.Info("suite.jira_issue_created", zap.String("key", createdKey))

					// The create response normally carries only id and key; check the
					// echoed fields when the server includes them.
					if f := issue.Fields; f != nil {
						if err := expect(f.Summary == summary, "summary %q, want %q", f.Summary, summary); err != nil {
							return err
						}
						if f.Project != nil && f.Project.Key != opts.ProjectKey {
							return fmt.Errorf("project %q, want %q", f.Project.Key, opts.ProjectKey)
						}
						if f.IssueType != nil && f.IssueType.Name != jira.DefaultIssueType {
							return fmt.Errorf("issue type %q, want %q", f.IssueType.Name, jira.DefaultIssueType)
						}
					}
					return nil
				},
			},
			{
				Name: "get_issue",
				Run: func(ctx context.Context) error {
					if err := requireIssue(); err != nil {
						return err
					}
					issue, err := getIssue(ctx, createdKey, http.StatusOK)
					if err != nil {
						return err
					}
					if err := expect(issue.Key == createdKey, "key %q, want %q", issue.Key, createdKey); err != nil {
						return err
					}
					return expect(issue.Fields != nil && issue.Fields.Project != nil && issue.Fields.Project.Key == opts.ProjectKey,
						"issue %s is not in project %s", createdKey, opts.ProjectKey)
				},
			},
			{
				Name: "update_issue",
				Run: func(ctx context.Context) error {
					if err := requireIssue(); err != nil {
						return err
					}
					summary := fmt.Sprintf("Updated Summary - %s - %s", createdKey, opts.Now().UTC().Format(time.RFC3339))
					description := "The description has been updated by an automated test."
					resp, err := client.UpdateIssue(ctx, createdKey, map[string]any{
						"summary":     summary,
						"description": jira.TextDocument(description),
					})
					if err != nil {
						return err
					}
					if err := expectStatus(resp, http.StatusNoContent); err != nil {
						return err
					}

					issue, err := getIssue(ctx, createdKey, http.StatusOK)
					if err != nil {
						return fmt.Errorf("verify update: %w", err)
					}
					if err := expect(issue.Fields != nil && issue.Fields.Summary == summary, "summary was not updated"); err != nil {
						return err
					}
					return expect(issue.Fields.Description.Text() == description, "description was not updated")
				},
			},
			{
				Name: "delete_issue",
				Run: func(ctx context.Context) error {
					if err := requireIssue(); err != nil {
						return err
					}
					resp, err := client.DeleteIssue(ctx, createdKey)
					if err != nil {
						return err
					}
					if err := expectStatus(resp, http.StatusNoContent); err != nil {
						return err
					}
					deleted := createdKey
					createdKey = ""

					if _, err := getIssue(ctx, deleted, http.StatusNotFound); err != nil {
						return fmt.Errorf("issue %s still found after deletion: %w", deleted, err)
					}
					return nil
				},
			},
			{
				Name: "bulk_fetch",
				Run: func(ctx context.Context) error {
					if len(opts.BulkKeys) == 0 {
						return Skip("no bulk fetch keys configured")
					}
					fieldsByKeys := false
					resp, err := client.BulkFetchIssues(ctx, jira.BulkFetchInput{
						IssueIDsOrKeys: opts.BulkKeys,
						Fields:         []string{"summary", "project", "assignee", "status"},
						Expand:         []string{"names"},
						FieldsByKeys:   &fieldsByKeys,
					})
					if err != nil {
						return err
					}
					if err := expectStatus(resp, http.StatusOK); err != nil {
						return err
					}
					var result jira.BulkFetchResult
					if err := resp.JSON(&result); err != nil {
						return err
					}
					if err := expect(len(result.Issues) > 0, "bulk fetch returned no issues"); err != nil {
						return err
					}
					for _, key := range opts.BulkKeys {
						issue := result.Find(key)
						if issue == nil {
							return fmt.Errorf("%s not found in bulk fetch response", key)
						}
						if err := expect(issue.Fields != nil && issue.Fields.Project != nil, "%s has no project field", key); err != nil {
							return err
						}
					}
					return expect(result.Names["summary"] == "Summary" &&
						result.Names["project"] == "Project" &&
						result.Names["assignee"] == "Assignee",
						"names expansion missing")
				},
			},
			{
				Name:   "cleanup",
				Always: true,
				Run: func(ctx context.Context) error {
					if createdKey == "" {
						return nil
					}
					logger.Warn("suite.jira_cleanup", zap.String("key", createdKey))
					resp, err := client.DeleteIssue(ctx, createdKey)
					if err != nil {
						return err
					}
					if err := expectStatus(resp, http.StatusNoContent); err != nil {
						return err
					}
					createdKey = ""
					return nil
				},
			},
		},
	}
}
