// Package nameservice reads the zblock/accounts folder and creates a name
// service lookup for the wallets whose keys are stored there.
package nameservice

import (
	"fmt"
	"io/fs"
	"maps"
	"path"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
)

// NameService maintains a map of wallets for name lookup.
type NameService struct {
	wallets map[signature.ID]string
}

// New constructs a name service with wallets from the zblock/accounts folder.
func New(root string) (*NameService, error) {
	ns := NameService{
		wallets: make(map[signature.ID]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".pem" {
			return nil
		}

		privateKey, err := signature.LoadPrivateKey(fileName)
		if err != nil {
			return err
		}

		id := signature.WalletID(&privateKey.PublicKey)
		ns.wallets[id] = strings.TrimSuffix(path.Base(fileName), ".pem")

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified wallet.
func (ns *NameService) Lookup(id signature.ID) string {
	name, exists := ns.wallets[id]
	if !exists {
		return id.String()
	}
	return name
}

// Copy returns a copy of the map of names and wallets.
func (ns *NameService) Copy() map[signature.ID]string {
	return maps.Clone(ns.wallets)
}
