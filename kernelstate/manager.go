// Package kernelstate is the trie-backed durability layer the kernel
// commits domain state into after every successfully dispatched command.
// It mirrors core/state/manager.go's RLP shadow-struct-plus-Keccak256-key
// convention: the live domain objects (vaultregistry.Registry,
// rewardpool.Staking, the four request Machines, currency.Ledger) keep
// their own in-memory maps for the hot path, and this package is the
// side-mirror a node restart or read-only query replays from.
package kernelstate

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"vaultbridge/assets"
	"vaultbridge/crypto"
	"vaultbridge/currency"
	"vaultbridge/requests/issue"
	"vaultbridge/requests/redeem"
	"vaultbridge/requests/refund"
	"vaultbridge/requests/replace"
	"vaultbridge/storage/trie"
	"vaultbridge/vaultregistry"
)

var (
	vaultPrefix        = []byte("vault:")
	vaultIndexKey      = ethcrypto.Keccak256([]byte("vault-index"))
	balancePrefix      = []byte("balance:")
	issueReqPrefix     = []byte("issuereq:")
	issueReqIndexKey   = ethcrypto.Keccak256([]byte("issuereq-index"))
	redeemReqPrefix    = []byte("redeemreq:")
	redeemReqIndexKey  = ethcrypto.Keccak256([]byte("redeemreq-index"))
	replaceReqPrefix   = []byte("replacereq:")
	replaceReqIndexKey = ethcrypto.Keccak256([]byte("replacereq-index"))
	refundReqPrefix    = []byte("refundreq:")
	refundReqIndexKey  = ethcrypto.Keccak256([]byte("refundreq-index"))
)

// Manager persists the kernel's domain state into a trie.Trie for crash
// recovery and read-only query replay. It is not the hot-path mutation
// target: commands mutate the live in-memory Registry/Staking/Machines
// directly, and the kernel calls Manager.Save* once a command commits.
type Manager struct {
	trie *trie.Trie
}

// NewManager constructs a Manager over the given trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// Trie exposes the backing trie so the kernel can Copy/Commit it directly.
func (m *Manager) Trie() *trie.Trie { return m.trie }

func addrKey(prefix []byte, account crypto.Address) []byte {
	return ethcrypto.Keccak256(append(append([]byte(nil), prefix...), account.Bytes()...))
}

func strKey(prefix []byte, id string) []byte {
	return ethcrypto.Keccak256(append(append([]byte(nil), prefix...), []byte(id)...))
}

func (m *Manager) appendIndex(indexKey []byte, entry string) error {
	var list []string
	data, err := m.trie.Get(indexKey)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if existing == entry {
			return nil
		}
	}
	list = append(list, entry)
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.trie.Update(indexKey, encoded)
}

func (m *Manager) readIndex(indexKey []byte) ([]string, error) {
	data, err := m.trie.Get(indexKey)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	var list []string
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// storedAddress is the RLP wire shape for crypto.Address, whose prefix and
// bytes fields are unexported and so not directly RLP-encodable.
type storedAddress struct {
	Prefix string
	Bytes  []byte
}

func toStoredAddress(a crypto.Address) storedAddress {
	return storedAddress{Prefix: string(a.Prefix()), Bytes: a.Bytes()}
}

func (s storedAddress) toAddress() (crypto.Address, error) {
	return crypto.NewAddress(crypto.AddressPrefix(s.Prefix), s.Bytes)
}

// --- vaults ---

type storedVault struct {
	Account          storedAddress
	CollateralAsset  uint8
	BTCPublicKey     []byte
	DepositAddresses []string

	Issued         *big.Int
	ToBeIssued     *big.Int
	ToBeRedeemed   *big.Int
	ToBeReplaced   *big.Int

	ReplaceCollateral    *big.Int
	LiquidatedCollateral *big.Int

	BannedUntil      uint64
	Status           int
	AcceptsNewIssues bool
}

// SaveVault persists one vault record and indexes its account for later
// enumeration.
func (m *Manager) SaveVault(v *vaultregistry.Vault) error {
	record := storedVault{
		Account:              toStoredAddress(v.Account),
		CollateralAsset:      uint8(v.CollateralAsset),
		BTCPublicKey:         v.BTCPublicKey,
		DepositAddresses:     v.DepositAddresses,
		Issued:               v.Issued,
		ToBeIssued:           v.ToBeIssued,
		ToBeRedeemed:         v.ToBeRedeemed,
		ToBeReplaced:         v.ToBeReplaced,
		ReplaceCollateral:    v.ReplaceCollateral,
		LiquidatedCollateral: v.LiquidatedCollateral,
		BannedUntil:          v.BannedUntil,
		Status:               int(v.Status),
		AcceptsNewIssues:     v.AcceptsNewIssues,
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	if err := m.trie.Update(addrKey(vaultPrefix, v.Account), encoded); err != nil {
		return err
	}
	return m.appendIndex(vaultIndexKey, v.Account.String())
}

// LoadVault retrieves a vault record by account. The returned boolean
// reports whether one was found.
func (m *Manager) LoadVault(account crypto.Address) (*vaultregistry.Vault, bool, error) {
	data, err := m.trie.Get(addrKey(vaultPrefix, account))
	if err != nil || len(data) == 0 {
		return nil, false, err
	}
	var stored storedVault
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	addr, err := stored.Account.toAddress()
	if err != nil {
		return nil, false, err
	}
	v := &vaultregistry.Vault{
		Account:              addr,
		CollateralAsset:      assets.ID(stored.CollateralAsset),
		BTCPublicKey:         stored.BTCPublicKey,
		DepositAddresses:     stored.DepositAddresses,
		Issued:               stored.Issued,
		ToBeIssued:           stored.ToBeIssued,
		ToBeRedeemed:         stored.ToBeRedeemed,
		ToBeReplaced:         stored.ToBeReplaced,
		ReplaceCollateral:    stored.ReplaceCollateral,
		LiquidatedCollateral: stored.LiquidatedCollateral,
		BannedUntil:          stored.BannedUntil,
		Status:               vaultregistry.Status(stored.Status),
		AcceptsNewIssues:     stored.AcceptsNewIssues,
	}
	return v, true, nil
}

// VaultAccounts returns every account ever saved via SaveVault.
func (m *Manager) VaultAccounts() ([]crypto.Address, error) {
	list, err := m.readIndex(vaultIndexKey)
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(list))
	for _, s := range list {
		addr, err := crypto.DecodeAddress(s)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// --- ledger balances ---

type storedBalance struct {
	Free   *big.Int
	Locked *big.Int
}

func balanceKey(account crypto.Address, asset assets.ID) []byte {
	return ethcrypto.Keccak256(append(append(append([]byte(nil), balancePrefix...), account.Bytes()...), byte(asset)))
}

// SaveBalance persists one (account, asset) balance pair.
func (m *Manager) SaveBalance(account crypto.Address, asset assets.ID, bal currency.Balance) error {
	encoded, err := rlp.EncodeToBytes(storedBalance{Free: bal.Free, Locked: bal.Locked})
	if err != nil {
		return err
	}
	return m.trie.Update(balanceKey(account, asset), encoded)
}

// LoadBalance retrieves a previously saved (account, asset) balance pair.
// The returned boolean reports whether one was found.
func (m *Manager) LoadBalance(account crypto.Address, asset assets.ID) (currency.Balance, bool, error) {
	data, err := m.trie.Get(balanceKey(account, asset))
	if err != nil || len(data) == 0 {
		return currency.Balance{}, false, err
	}
	var stored storedBalance
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return currency.Balance{}, false, err
	}
	return currency.Balance{Free: stored.Free, Locked: stored.Locked}, true, nil
}

// --- issue requests ---

type storedIssueRequest struct {
	ID                 string
	User               storedAddress
	Vault              storedAddress
	AmountWrapped      *big.Int
	Fee                *big.Int
	GriefingCollateral *big.Int
	DepositAddress     string
	OpenTime           uint64
	Period             uint64
	BTCExpiryHeight    uint64
	Status             int
	RefundID           string
}

// SaveIssueRequest persists one issue request and indexes its id.
func (m *Manager) SaveIssueRequest(r *issue.Request) error {
	record := storedIssueRequest{
		ID: r.ID, User: toStoredAddress(r.User), Vault: toStoredAddress(r.Vault),
		AmountWrapped: r.AmountWrapped, Fee: r.Fee, GriefingCollateral: r.GriefingCollateral,
		DepositAddress: r.DepositAddress, OpenTime: r.OpenTime, Period: r.Period,
		BTCExpiryHeight: r.BTCExpiryHeight, Status: int(r.Status), RefundID: r.RefundID,
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	if err := m.trie.Update(strKey(issueReqPrefix, r.ID), encoded); err != nil {
		return err
	}
	return m.appendIndex(issueReqIndexKey, r.ID)
}

// LoadIssueRequest retrieves an issue request by id.
func (m *Manager) LoadIssueRequest(id string) (*issue.Request, bool, error) {
	data, err := m.trie.Get(strKey(issueReqPrefix, id))
	if err != nil || len(data) == 0 {
		return nil, false, err
	}
	var stored storedIssueRequest
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	user, err := stored.User.toAddress()
	if err != nil {
		return nil, false, err
	}
	vault, err := stored.Vault.toAddress()
	if err != nil {
		return nil, false, err
	}
	return &issue.Request{
		ID: stored.ID, User: user, Vault: vault,
		AmountWrapped: stored.AmountWrapped, Fee: stored.Fee, GriefingCollateral: stored.GriefingCollateral,
		DepositAddress: stored.DepositAddress, OpenTime: stored.OpenTime, Period: stored.Period,
		BTCExpiryHeight: stored.BTCExpiryHeight, Status: issue.Status(stored.Status), RefundID: stored.RefundID,
	}, true, nil
}

// IssueRequestIDs returns every id ever saved via SaveIssueRequest.
func (m *Manager) IssueRequestIDs() ([]string, error) { return m.readIndex(issueReqIndexKey) }
