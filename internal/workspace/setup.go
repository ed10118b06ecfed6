package workspace

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/httpclient"
)

// Setup step names, in execution order.
const (
	StepCheckAccess      = "check_access"
	StepRecentFiles      = "recent_files"
	StepInitWorkspace    = "init_workspace"
	StepListWorkspaces   = "list_workspaces"
	StepDraftProject     = "draft_project"
	StepCurrentWorkspace = "current_workspace"
)

// SetupOutcome is the final state of a successful SetupNewUser run.
type SetupOutcome struct {
	HasAccess          bool
	RecentFiles        int
	InitialWorkspaceID string
	WorkspaceCount     int
	DraftProjectID     string
	DraftFilesCount    int
	CurrentWorkspaceID string
}

// SetupNewUser runs the new-user bootstrap sequence. Each step must return 2xx,
// carry no GraphQL errors and contain its data field before the next one runs.
// The first failure is returned as *StepError.
func (c *Client) SetupNewUser(ctx context.Context) (*SetupOutcome, error) {
	var out SetupOutcome

	var access bool
	if err := c.step(ctx, StepCheckAccess, c.HasAccessToWorkspace, "hasAccessToAWorkspace", &access); err != nil {
		return nil, err
	}
	out.HasAccess = access

	var files []RecentFile
	if err := c.step(ctx, StepRecentFiles, c.GetRecentlyModifiedFiles, "filesRecentlyModified", &files); err != nil {
		return nil, err
	}
	out.RecentFiles = len(files)

	var initial Workspace
	if err := c.step(ctx, StepInitWorkspace, c.SetupInitialWorkspace, "setupInitialWorkspace", &initial); err != nil {
		return nil, err
	}
	if initial.ID == "" {
		return nil, &StepError{Step: StepInitWorkspace, Err: &MissingFieldError{Field: "data.setupInitialWorkspace.id"}}
	}
	out.InitialWorkspaceID = string(initial.ID)

	var workspaces []Workspace
	if err := c.step(ctx, StepListWorkspaces, c.GetWorkspaces, "workspaces", &workspaces); err != nil {
		return nil, err
	}
	out.WorkspaceCount = len(workspaces)

	var draft DraftProject
	draftCall := func(ctx context.Context) (*httpclient.Response, error) {
		return c.GetWorkspaceDraftProject(ctx, out.InitialWorkspaceID)
	}
	if err := c.step(ctx, StepDraftProject, draftCall, "workspaceDraftProject", &draft); err != nil {
		return nil, err
	}
	out.DraftProjectID = string(draft.ID)
	out.DraftFilesCount = draft.FilesCount

	var current Workspace
	if err := c.step(ctx, StepCurrentWorkspace, c.GetCurrentWorkspace, "currentWorkspace", &current); err != nil {
		return nil, err
	}
	if current.ID == "" {
		return nil, &StepError{Step: StepCurrentWorkspace, Err: &MissingFieldError{Field: "data.currentWorkspace.id"}}
	}
	out.CurrentWorkspaceID = string(current.ID)

	c.logger.Info("workspace.setup_complete",
		zap.String("initial_workspace", out.InitialWorkspaceID),
		zap.String("current_workspace", out.CurrentWorkspaceID),
		zap.Int("workspaces", out.WorkspaceCount))
	return &out, nil
}

func (c *Client) step(
	ctx context.Context,
	name string,
	call func(context.Context) (*httpclient.Response, error),
	field string,
	out any,
) error {
	fail := func(err error) error {
		c.logger.Warn("workspace.setup_step_failed", zap.String("step", name), zap.Error(err))
		return &StepError{Step: name, Err: err}
	}

	resp, err := call(ctx)
	if err != nil {
		return fail(err)
	}
	if !resp.OK() {
		return fail(&StatusError{StatusCode: resp.StatusCode, Body: resp.Text()})
	}
	env, err := Decode(resp, nil)
	if err != nil {
		return fail(err)
	}
	if err := env.Err(); err != nil {
		return fail(err)
	}
	raw, err := env.Field(field)
	if err != nil {
		return fail(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fail(fmt.Errorf("decode %s: %w", field, err))
	}
	return nil
}
