package secrets

import "context"

// Provider defines a secrets backend that returns a secret as a key-value map.
type Provider interface {
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// StaticProvider serves secrets from memory. Useful for local runs and tests.
type StaticProvider map[string]map[string]string

// GetSecret returns a copy of the named secret.
func (p StaticProvider) GetSecret(_ context.Context, name string) (map[string]string, error) {
	secret, ok := p[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	out := make(map[string]string, len(secret))
	for k, v := range secret {
		out[k] = v
	}
	return out, nil
}

// NotFoundError is returned when a secret name does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "secret not found: " + e.Name
}
