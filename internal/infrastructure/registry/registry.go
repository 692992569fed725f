// Package registry holds the static catalog of clients, scopes, and API
// resources. The catalog is loaded once from a YAML file at startup and is
// immutable afterwards, so lookups need no synchronization.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/microshop/identity-service/internal/core/domain"
)

// Registry is the immutable client/scope/resource catalog.
type Registry struct {
	clients   map[string]*domain.Client
	scopes    map[string]*domain.Scope
	resources map[string]*domain.APIResource
}

type fileFormat struct {
	Clients []struct {
		ID            string   `yaml:"id"`
		Secrets       []string `yaml:"secrets"`
		GrantTypes    []string `yaml:"grant_types"`
		AllowedScopes []string `yaml:"allowed_scopes"`
		RedirectURIs  []string `yaml:"redirect_uris"`
	} `yaml:"clients"`
	APIResources []struct {
		Name   string   `yaml:"name"`
		Scopes []string `yaml:"scopes"`
	} `yaml:"api_resources"`
	APIScopes []struct {
		Name   string   `yaml:"name"`
		Claims []string `yaml:"claims"`
	} `yaml:"api_scopes"`
}

// builtinScopes are the standard identity scopes and the claim keys each one
// grants. Claims assembly is restricted to this enumeration plus the API
// scopes declared in the registry file.
var builtinScopes = []domain.Scope{
	{Name: "openid", Claims: []string{"sub"}},
	{Name: "profile", Claims: []string{"name", "preferred_username"}},
	{Name: "email", Claims: []string{"email"}},
	{Name: "roles", Claims: []string{"role"}},
}

// Load reads and validates the registry file.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a Registry from YAML content.
func Parse(raw []byte) (*Registry, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(raw, &ff); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}

	r := &Registry{
		clients:   make(map[string]*domain.Client),
		scopes:    make(map[string]*domain.Scope),
		resources: make(map[string]*domain.APIResource),
	}

	for i := range builtinScopes {
		s := builtinScopes[i]
		r.scopes[s.Name] = &s
	}

	for _, ar := range ff.APIResources {
		res := &domain.APIResource{Name: ar.Name, Scopes: ar.Scopes}
		r.resources[res.Name] = res
	}

	for _, as := range ff.APIScopes {
		if _, exists := r.scopes[as.Name]; exists {
			return nil, fmt.Errorf("registry: duplicate scope %q", as.Name)
		}
		scope := &domain.Scope{Name: as.Name, Claims: as.Claims}
		// Walk resources in file order so the aud claim is stable across
		// process runs.
		for _, ar := range ff.APIResources {
			for _, rs := range ar.Scopes {
				if rs == scope.Name {
					scope.Audiences = append(scope.Audiences, ar.Name)
				}
			}
		}
		r.scopes[scope.Name] = scope
	}

	for _, c := range ff.Clients {
		if c.ID == "" {
			return nil, fmt.Errorf("registry: client with empty id")
		}
		if _, exists := r.clients[c.ID]; exists {
			return nil, fmt.Errorf("registry: duplicate client %q", c.ID)
		}
		client := &domain.Client{
			ID:            c.ID,
			Secrets:       c.Secrets,
			AllowedScopes: c.AllowedScopes,
			RedirectURIs:  c.RedirectURIs,
		}
		for _, g := range c.GrantTypes {
			gt := domain.GrantType(g)
			switch gt {
			case domain.GrantClientCredentials, domain.GrantPassword, domain.GrantAuthorizationCode:
				client.GrantTypes = append(client.GrantTypes, gt)
			default:
				return nil, fmt.Errorf("registry: client %q: unknown grant type %q", c.ID, g)
			}
		}
		for _, s := range client.AllowedScopes {
			if _, ok := r.scopes[s]; !ok {
				return nil, fmt.Errorf("registry: client %q: unknown scope %q", c.ID, s)
			}
		}
		r.clients[client.ID] = client
	}

	return r, nil
}

// Client looks up a client by id. Absence is a protocol error.
func (r *Registry) Client(id string) (*domain.Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, domain.ErrUnknownClient
	}
	return c, nil
}

// Scope looks up a scope by name.
func (r *Registry) Scope(name string) (*domain.Scope, error) {
	s, ok := r.scopes[name]
	if !ok {
		return nil, domain.ErrInvalidScope
	}
	return s, nil
}

// ScopeNames returns every registered scope name, for the discovery document.
func (r *Registry) ScopeNames() []string {
	names := make([]string, 0, len(r.scopes))
	for name := range r.scopes {
		names = append(names, name)
	}
	return names
}
