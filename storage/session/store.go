// Package session persists the opaque bearer token across application
// restarts. The token is stored as-is; no shape validation happens here.
package session

type (
	// Store owns the persisted credential. An absent credential is reported
	// as an empty string, not an error.
	Store interface {
		// Load reads the persisted credential without side effects.
		Load() (string, error)
		// Save persists the credential, overwriting any prior value.
		Save(credential string) error
		// Clear removes the persisted credential. Clearing an empty store
		// is not an error.
		Clear() error
	}
)
