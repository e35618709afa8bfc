package clients

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

const maxNameLength = 100

// ErrValidation indicates a client record violates a field invariant
var ErrValidation = errors.New("invalid client")

// Client is one tenant of the gateway. The upstream password is only ever
// held as vault ciphertext; the plaintext exists transiently at creation and
// inside the broker's login path.
type Client struct {
	ID                        string    `json:"id"`
	Name                      string    `json:"name"`
	APIKey                    string    `json:"api_key"`
	Active                    bool      `json:"active"`
	UpstreamUsername          string    `json:"upstream_username"`
	UpstreamPasswordEncrypted string    `json:"-"` // never serialise
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// Validate checks the invariants that hold for every persisted client.
func (c *Client) Validate() error {
	if c.Name == "" || len(c.Name) > maxNameLength {
		return errors.Wrap(ErrValidation, "name must be between 1 and 100 characters")
	}
	if c.UpstreamUsername == "" {
		return errors.Wrap(ErrValidation, "upstream username is required")
	}
	if c.UpstreamPasswordEncrypted == "" {
		return errors.Wrap(ErrValidation, "upstream password is required")
	}
	return nil
}

// MaskedUpstreamUsername returns the upstream username with its middle
// obscured, suitable for request contexts and logs.
func (c *Client) MaskedUpstreamUsername() string {
	name := c.UpstreamUsername
	if len(name) <= 4 {
		return strings.Repeat("*", len(name))
	}
	return name[:2] + strings.Repeat("*", len(name)-4) + name[len(name)-2:]
}
