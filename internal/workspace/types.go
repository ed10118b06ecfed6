package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Checker-Finance/qa-suite/internal/httpclient"
)

// Credentials identify the account the client logs in as.
type Credentials struct {
	Identifier string
	Secret     string
}

// Endpoints holds the two base URLs: one for login, one for data traffic.
type Endpoints struct {
	AuthBaseURL string
	APIBaseURL  string
}

// Operation describes a single GraphQL call.
type Operation struct {
	Name      string
	Query     string
	Variables map[string]any
}

// Request is the JSON body posted to the API.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (o Operation) request() Request {
	return Request{Query: o.Query, Variables: o.Variables}
}

// ErrorItem is one entry of a GraphQL errors array.
type ErrorItem struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Envelope is the GraphQL response shape.
type Envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []ErrorItem     `json:"errors,omitempty"`
}

// Err returns a *GraphQLError when the errors array is non-empty.
func (e *Envelope) Err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return &GraphQLError{Errors: e.Errors}
}

// Field returns the raw value of a top-level data field. Absent and null
// fields are reported as *MissingFieldError.
func (e *Envelope) Field(name string) (json.RawMessage, error) {
	var data map[string]json.RawMessage
	if len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return nil, &MissingFieldError{Field: "data"}
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	raw, ok := data[name]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return nil, &MissingFieldError{Field: "data." + name}
	}
	return raw, nil
}

// Decode parses resp as a GraphQL envelope. When out is non-nil and data is
// present, data is also decoded into out. GraphQL errors are not returned here;
// check Envelope.Err.
func Decode(resp *httpclient.Response, out any) (*Envelope, error) {
	var env Envelope
	if err := resp.JSON(&env); err != nil {
		return nil, err
	}
	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &env, fmt.Errorf("decode data: %w", err)
		}
	}
	return &env, nil
}

// ID accepts both string and numeric identifiers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

type Feature struct {
	Slug      string `json:"slug"`
	IsEnabled bool   `json:"isEnabled"`
	Max       *int   `json:"max"`
}

type Workspace struct {
	ID               ID        `json:"id"`
	Name             string    `json:"name"`
	Icon             string    `json:"icon"`
	Features         []Feature `json:"features,omitempty"`
	HasOwnership     bool      `json:"hasOwnership"`
	CreatedAt        string    `json:"createdAt,omitempty"`
	PermissionScopes []string  `json:"permissionScopes,omitempty"`
}

type DraftProject struct {
	ID          ID     `json:"id"`
	IsPrivate   bool   `json:"isPrivate"`
	IsSystem    bool   `json:"isSystem"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	WorkspaceID ID     `json:"workspaceId"`
	FilesCount  int    `json:"filesCount"`
}

type RecentFile struct {
	ID              ID     `json:"id"`
	Name            string `json:"name"`
	BackgroundColor string `json:"backgroundColor"`
	UpdatedAt       string `json:"updatedAt"`
}

type Viewer struct {
	ID        ID     `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	Country   string `json:"country"`
}
