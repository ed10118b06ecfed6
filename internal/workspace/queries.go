package workspace

import (
	"encoding/json"
	"fmt"
)

const workspaceFields = `
    id
    name
    icon
    features {
      slug
      isEnabled
      max
    }
    hasOwnership
    createdAt
    subscription {
      plan {
        planPosition
      }
    }`

var (
	opCurrentWorkspace = Operation{
		Name: "currentWorkspace",
		Query: `query {
  currentWorkspace {
    id
    name
    icon
    permissionScopes
    owner {
      email
      name
    }
  }
}`,
	}

	opHasAccessToWorkspace = Operation{
		Name: "hasAccessToAWorkspace",
		Query: `query hasAccessToAWorkspace {
  hasAccessToAWorkspace
}`,
	}

	opRecentlyModifiedFiles = Operation{
		Name: "getRecentlyModifiedFiles",
		Query: `query getRecentlyModifiedFiles {
  filesRecentlyModified(fileType: CreatorFile, count: 10, filterByCurrentUserModifications: true) {
    id
    backgroundColor
    name
    updatedAt
    fileObject {
      thumbnails {
        png {
          medium {
            url
          }
        }
      }
    }
  }
}`,
	}

	opSetupInitialWorkspace = Operation{
		Name:  "setupInitialWorkspace",
		Query: "mutation setupInitialWorkspace {\n  setupInitialWorkspace {" + workspaceFields + "\n  }\n}",
	}

	opWorkspaces = Operation{
		Name:  "workspaces",
		Query: "query {\n  workspaces {" + workspaceFields + "\n  }\n}",
	}

	opViewer = Operation{
		Name: "viewer",
		Query: `query {
  viewer {
    id
    email
    name
    avatarUrl
    country
    userSegments {
      title
    }
  }
}`,
	}
)

const draftProjectQuery = `query workspaceDraftProject($workspaceId: ID!) {
  workspaceDraftProject(workspaceId: $workspaceId) {
    id
    isPrivate
    isSystem
    slug
    title
    workspaceId
    filesCount
  }
}`

func opWorkspaceDraftProject(workspaceID string) Operation {
	return Operation{
		Name:      "workspaceDraftProject",
		Query:     draftProjectQuery,
		Variables: map[string]any{"workspaceId": workspaceID},
	}
}

// loginMutation renders the passwordLogin mutation. Credentials are written as
// GraphQL string literals; JSON string syntax is a valid subset.
func loginMutation(creds Credentials) string {
	return fmt.Sprintf(`mutation PasswordLogin {
  passwordLogin(email: %s, password: %s) {
    accessToken
  }
}`, stringLiteral(creds.Identifier), stringLiteral(creds.Secret))
}

func stringLiteral(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
