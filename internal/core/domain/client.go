package domain

// GrantType enumerates the OAuth grant types this service issues tokens for.
type GrantType string

const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantAuthorizationCode GrantType = "authorization_code"
)

// Client is a statically configured relying party. Clients are read-only at
// runtime; an unknown client id is a protocol error, never a store lookup.
type Client struct {
	ID            string
	Secrets       []string
	GrantTypes    []GrantType
	AllowedScopes []string
	RedirectURIs  []string
}

// AllowsGrant reports whether the client may use the given grant type.
func (c *Client) AllowsGrant(gt GrantType) bool {
	for _, g := range c.GrantTypes {
		if g == gt {
			return true
		}
	}
	return false
}

// AllowsScope reports whether the client may request the named scope.
func (c *Client) AllowsScope(scope string) bool {
	for _, s := range c.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AllowsRedirect reports whether the redirect URI is registered for the
// client. Exact string match, no wildcarding.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// Confidential reports whether the client has at least one secret and must
// therefore authenticate at the token endpoint.
func (c *Client) Confidential() bool { return len(c.Secrets) > 0 }

// Scope names a bundle of claims a client may request on a user's behalf.
// The claim keys a scope grants are enumerated explicitly; claims assembly
// never reaches outside this mapping.
type Scope struct {
	Name      string
	Claims    []string
	Audiences []string
}

// APIResource is a protected API an access token can be issued for. Its name
// appears in the token audience when one of its scopes is granted.
type APIResource struct {
	Name   string
	Scopes []string
}
