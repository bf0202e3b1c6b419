package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nhle/dealroom/internal/credential"
	"github.com/nhle/dealroom/internal/model"
)

const sessionKey = "session"

// ErrNoSession is returned by Load when nothing is stored.
var ErrNoSession = errors.New("no stored session")

// Vault persists the auth session in the system keyring.
type Vault struct {
	creds *credential.Store
}

// NewVault returns a Vault over the given credential store.
func NewVault(creds *credential.Store) *Vault {
	return &Vault{creds: creds}
}

// Load returns the stored session or ErrNoSession.
func (v *Vault) Load() (model.AuthSession, error) {
	data, err := v.creds.Get(sessionKey)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return model.AuthSession{}, ErrNoSession
		}
		return model.AuthSession{}, err
	}

	var s model.AuthSession
	if err := json.Unmarshal(data, &s); err != nil {
		return model.AuthSession{}, fmt.Errorf("decoding stored session: %w", err)
	}
	return s, nil
}

// Save stores s, replacing any previous session.
func (v *Vault) Save(s model.AuthSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return v.creds.Set(sessionKey, data)
}

// Clear removes the stored session.
func (v *Vault) Clear() error {
	return v.creds.Delete(sessionKey)
}

// Persist writes st's session to the vault, or clears the vault when the
// state holds none.
func (v *Vault) Persist(st State) error {
	if st.Session == nil {
		return v.Clear()
	}
	return v.Save(*st.Session)
}
