package deployment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrNetworkNotFound = errors.New("network not found")
	ErrAddressNotFound = errors.New("address not found")
	ErrContractMissing = errors.New("no deployed contract of this type")
)

// ContractType is a simple string type for identifying contract types.
type ContractType string

func (ct ContractType) String() string {
	return string(ct)
}

// TypeAndVersion names a deployed contract. It is encoded as "<type> <version>".
type TypeAndVersion struct {
	Type    ContractType
	Version semver.Version
}

func (tv TypeAndVersion) String() string {
	return fmt.Sprintf("%s %s", tv.Type, tv.Version.String())
}

func (tv TypeAndVersion) Equal(other TypeAndVersion) bool {
	return tv.Type == other.Type && tv.Version.Equal(&other.Version)
}

// MarshalText implements encoding.TextMarshaler.
func (tv TypeAndVersion) MarshalText() ([]byte, error) {
	return []byte(tv.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (tv *TypeAndVersion) UnmarshalText(b []byte) error {
	parsed, err := TypeAndVersionFromString(string(b))
	if err != nil {
		return err
	}
	*tv = parsed

	return nil
}

func MustTypeAndVersionFromString(s string) TypeAndVersion {
	tv, err := TypeAndVersionFromString(s)
	if err != nil {
		panic(err)
	}

	return tv
}

// TypeAndVersionFromString parses "<type> <version>".
func TypeAndVersionFromString(s string) (TypeAndVersion, error) {
	parts := strings.Fields(s) // Ignores consecutive spaces
	if len(parts) != 2 {
		return TypeAndVersion{}, fmt.Errorf("invalid type and version string: %s", s)
	}
	v, err := semver.NewVersion(parts[1])
	if err != nil {
		return TypeAndVersion{}, err
	}

	return TypeAndVersion{
		Type:    ContractType(parts[0]),
		Version: *v,
	}, nil
}

func NewTypeAndVersion(t ContractType, v semver.Version) TypeAndVersion {
	return TypeAndVersion{Type: t, Version: v}
}

// AddressBook stores the contracts deployed on each network, in deployment order.
// Addresses are always stored in EIP55 format.
type AddressBook interface {
	Save(network string, address string, tv TypeAndVersion) error
	Remove(network string, address string) error
	Addresses() (map[string]map[string]TypeAndVersion, error)
	AddressesForNetwork(network string) (map[string]TypeAndVersion, error)
	Latest(network string, typ ContractType) (string, error)
}

// Entry is one deployed contract.
type Entry struct {
	Address        string         `json:"address"`
	TypeAndVersion TypeAndVersion `json:"type_and_version"`
}

var _ AddressBook = (*AddressBookMap)(nil)

// AddressBookMap is the in-memory AddressBook.
type AddressBookMap struct {
	byNetwork map[string][]Entry
	mtx       sync.RWMutex
}

// NewMemoryAddressBook returns an empty AddressBookMap.
func NewMemoryAddressBook() *AddressBookMap {
	return &AddressBookMap{byNetwork: make(map[string][]Entry)}
}

func normalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("address %s is not a valid Ethereum address: %w", address, ErrInvalidAddress)
	}
	addr := common.HexToAddress(address)
	if addr == (common.Address{}) {
		return "", fmt.Errorf("address cannot be empty: %w", ErrInvalidAddress)
	}

	return addr.Hex(), nil
}

func (m *AddressBookMap) save(network string, address string, tv TypeAndVersion) error {
	if network == "" {
		return errors.New("network cannot be empty")
	}
	if tv.Type == "" {
		return errors.New("type cannot be empty")
	}

	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	if slices.ContainsFunc(m.byNetwork[network], func(e Entry) bool { return e.Address == address }) {
		return fmt.Errorf("address %s already exists for network %s", address, network)
	}
	m.byNetwork[network] = append(m.byNetwork[network], Entry{Address: address, TypeAndVersion: tv})

	return nil
}

// Save records a deployed contract. It errors if the address is already recorded for network.
func (m *AddressBookMap) Save(network string, address string, tv TypeAndVersion) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.save(network, address, tv)
}

// Remove forgets a deployed contract.
func (m *AddressBookMap) Remove(network string, address string) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	entries, ok := m.byNetwork[network]
	if !ok {
		return fmt.Errorf("network %s: %w", network, ErrNetworkNotFound)
	}

	idx := slices.IndexFunc(entries, func(e Entry) bool { return e.Address == address })
	if idx < 0 {
		return fmt.Errorf("%s on network %s: %w", address, network, ErrAddressNotFound)
	}

	entries = slices.Delete(entries, idx, idx+1)
	if len(entries) == 0 {
		delete(m.byNetwork, network)
	} else {
		m.byNetwork[network] = entries
	}

	return nil
}

func (m *AddressBookMap) Addresses() (map[string]map[string]TypeAndVersion, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	result := make(map[string]map[string]TypeAndVersion, len(m.byNetwork))
	for network, entries := range m.byNetwork {
		result[network] = toMap(entries)
	}

	return result, nil
}

func (m *AddressBookMap) AddressesForNetwork(network string) (map[string]TypeAndVersion, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	entries, ok := m.byNetwork[network]
	if !ok {
		return nil, fmt.Errorf("network %s: %w", network, ErrNetworkNotFound)
	}

	return toMap(entries), nil
}

// Entries returns the deployments of network in deployment order.
func (m *AddressBookMap) Entries(network string) []Entry {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return slices.Clone(m.byNetwork[network])
}

// Latest returns the most recently saved address of typ on network.
func (m *AddressBookMap) Latest(network string, typ ContractType) (string, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	entries := m.byNetwork[network]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].TypeAndVersion.Type == typ {
			return entries[i].Address, nil
		}
	}

	return "", fmt.Errorf("%s on network %s: %w", typ, network, ErrContractMissing)
}

// Merge saves every entry of other into m. It errors on any existing address.
func (m *AddressBookMap) Merge(other *AddressBookMap) error {
	other.mtx.RLock()
	snapshot := make(map[string][]Entry, len(other.byNetwork))
	for n, e := range other.byNetwork {
		snapshot[n] = slices.Clone(e)
	}
	other.mtx.RUnlock()

	m.mtx.Lock()
	defer m.mtx.Unlock()

	for network, entries := range snapshot {
		for _, e := range entries {
			if err := m.save(network, e.Address, e.TypeAndVersion); err != nil {
				return err
			}
		}
	}

	return nil
}

func toMap(entries []Entry) map[string]TypeAndVersion {
	out := make(map[string]TypeAndVersion, len(entries))
	for _, e := range entries {
		out[e.Address] = e.TypeAndVersion
	}

	return out
}

// LoadAddressBook reads a persisted address book. A missing file yields an empty book.
func LoadAddressBook(path string) (*AddressBookMap, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewMemoryAddressBook(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read address book: %w", err)
	}

	var byNetwork map[string][]Entry
	if err := json.Unmarshal(data, &byNetwork); err != nil {
		return nil, fmt.Errorf("failed to parse address book %s: %w", path, err)
	}

	ab := NewMemoryAddressBook()
	for network, entries := range byNetwork {
		for _, e := range entries {
			if err := ab.save(network, e.Address, e.TypeAndVersion); err != nil {
				return nil, fmt.Errorf("invalid address book entry: %w", err)
			}
		}
	}

	return ab, nil
}

// WriteFile persists the networks accepted by keep. A nil keep writes every network.
func (m *AddressBookMap) WriteFile(path string, keep func(network string) bool) error {
	m.mtx.RLock()
	out := make(map[string][]Entry, len(m.byNetwork))
	for network, entries := range m.byNetwork {
		if keep == nil || keep(network) {
			out[network] = slices.Clone(entries)
		}
	}
	m.mtx.RUnlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode address book: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create address book dir: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}
