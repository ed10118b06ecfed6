package suite

import (
	"context"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/workspace"
)

// WorkspaceSuite checks login, the viewer query, and the new-user bootstrap.
func WorkspaceSuite(client *workspace.Client, logger *zap.Logger) *Suite {
	return &Suite{
		Name: "workspace",
		Steps: []Step{
			{
				Name: "login",
				Run: func(ctx context.Context) error {
					resp, err := client.Login(ctx)
					if err != nil {
						return err
					}
					return expectOK(resp)
				},
			},
			{
				Name: "viewer",
				Run: func(ctx context.Context) error {
					resp, err := client.GetViewer(ctx)
					if err != nil {
						return err
					}
					if err := expectOK(resp); err != nil {
						return err
					}
					var data struct {
						Viewer *workspace.Viewer `json:"viewer"`
					}
					env, err := workspace.Decode(resp, &data)
					if err != nil {
						return err
					}
					if err := env.Err(); err != nil {
						return err
					}
					return expect(data.Viewer != nil, "response has no viewer")
				},
			},
			{
				Name: "setup_new_user",
				Run: func(ctx context.Context) error {
					out, err := client.SetupNewUser(ctx)
					if err != nil {
						return err
					}
					logger.Info("suite.workspace_setup",
						zap.String("initial_workspace", out.InitialWorkspaceID),
						zap.String("draft_project", out.DraftProjectID),
						zap.Int("recent_files", out.RecentFiles))
					return nil
				},
			},
		},
	}
}
