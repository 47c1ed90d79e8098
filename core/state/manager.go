package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"pactnet/core/types"
	"pactnet/storage"
)

// Manager provides typed access to the ledger state persisted in the backing
// key-value store. Records are RLP encoded and addressed by the keccak256
// hash of a human-readable prefix key, mirroring how account state is laid
// out so every module shares one storage discipline.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	accountPrefix  = []byte("account:")
	sequencePrefix = []byte("seq:")
)

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return kvKey(buf)
}

func sequenceKey(name string) []byte {
	buf := make([]byte, len(sequencePrefix)+len(name))
	copy(buf, sequencePrefix)
	copy(buf[len(sequencePrefix):], name)
	return kvKey(buf)
}

// KVGet decodes the record stored under key into out. The boolean reports
// whether the key was present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errors.New("state: manager not initialised")
	}
	data, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value with RLP and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(kvKey(key), encoded)
}

// GetAccount loads the account record for addr, returning a zeroed account
// when the address has never been touched.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	if m == nil || m.db == nil {
		return nil, errors.New("state: manager not initialised")
	}
	data, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return (&types.Account{}).Ensure(), nil
	}
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	if err := rlp.DecodeBytes(data, account); err != nil {
		return nil, fmt.Errorf("state: decode account %x: %w", addr, err)
	}
	return account.Ensure(), nil
}

// PutAccount persists the account record for addr.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not initialised")
	}
	if account == nil {
		return errors.New("state: nil account")
	}
	encoded, err := rlp.EncodeToBytes(account.Clone())
	if err != nil {
		return fmt.Errorf("state: encode account %x: %w", addr, err)
	}
	return m.db.Put(accountKey(addr), encoded)
}

// NextSequence increments and returns the named monotonic counter. The first
// call for a name yields 1 so zero stays available as the "unset" id.
func (m *Manager) NextSequence(name string) (uint64, error) {
	if m == nil || m.db == nil {
		return 0, errors.New("state: manager not initialised")
	}
	key := sequenceKey(name)
	var current uint64
	data, err := m.db.Get(key)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		if err := rlp.DecodeBytes(data, &current); err != nil {
			return 0, fmt.Errorf("state: decode sequence %s: %w", name, err)
		}
	}
	current++
	encoded, err := rlp.EncodeToBytes(current)
	if err != nil {
		return 0, err
	}
	if err := m.db.Put(key, encoded); err != nil {
		return 0, err
	}
	return current, nil
}

// appendIndex adds id to the uint64 list stored under key, skipping
// duplicates so re-indexing an entity stays idempotent.
func (m *Manager) appendIndex(key []byte, id uint64) error {
	var ids []uint64
	if _, err := m.KVGet(key, &ids); err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return m.KVPut(key, ids)
}

func (m *Manager) readIndex(key []byte) ([]uint64, error) {
	var ids []uint64
	if _, err := m.KVGet(key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
