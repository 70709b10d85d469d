package kernelstate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"vaultbridge/requests/redeem"
	"vaultbridge/requests/refund"
	"vaultbridge/requests/replace"
)

// --- redeem requests ---

type storedRedeemRequest struct {
	ID              string
	User            storedAddress
	Vault           storedAddress
	AmountWrapped   *big.Int
	Fee             *big.Int
	TransferFeeBTC  *big.Int
	AmountBTC       *big.Int
	BTCAddress      string
	Premium         *big.Int
	OpenTime        uint64
	Period          uint64
	BTCExpiryHeight uint64
	Status          int
	ReimbursedFully bool
}

// SaveRedeemRequest persists one redeem request and indexes its id.
func (m *Manager) SaveRedeemRequest(r *redeem.Request) error {
	premium := r.Premium
	if premium == nil {
		premium = big.NewInt(0)
	}
	record := storedRedeemRequest{
		ID: r.ID, User: toStoredAddress(r.User), Vault: toStoredAddress(r.Vault),
		AmountWrapped: r.AmountWrapped, Fee: r.Fee, TransferFeeBTC: r.TransferFeeBTC,
		AmountBTC: r.AmountBTC, BTCAddress: r.BTCAddress, Premium: premium,
		OpenTime: r.OpenTime, Period: r.Period, BTCExpiryHeight: r.BTCExpiryHeight,
		Status: int(r.Status), ReimbursedFully: r.ReimbursedFully,
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	if err := m.trie.Update(strKey(redeemReqPrefix, r.ID), encoded); err != nil {
		return err
	}
	return m.appendIndex(redeemReqIndexKey, r.ID)
}

// LoadRedeemRequest retrieves a redeem request by id.
func (m *Manager) LoadRedeemRequest(id string) (*redeem.Request, bool, error) {
	data, err := m.trie.Get(strKey(redeemReqPrefix, id))
	if err != nil || len(data) == 0 {
		return nil, false, err
	}
	var stored storedRedeemRequest
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
	return &redeem.Request{
		ID: stored.ID, User: user, Vault: vault,
		AmountWrapped: stored.AmountWrapped, Fee: stored.Fee, TransferFeeBTC: stored.TransferFeeBTC,
		AmountBTC: stored.AmountBTC, BTCAddress: stored.BTCAddress, Premium: stored.Premium,
		OpenTime: stored.OpenTime, Period: stored.Period, BTCExpiryHeight: stored.BTCExpiryHeight,
		Status: redeem.Status(stored.Status), ReimbursedFully: stored.ReimbursedFully,
	}, true, nil
}

// RedeemRequestIDs returns every id ever saved via SaveRedeemRequest.
func (m *Manager) RedeemRequestIDs() ([]string, error) { return m.readIndex(redeemReqIndexKey) }

// --- replace requests ---

type storedReplaceRequest struct {
	ID              string
	OldVault        storedAddress
	NewVault        storedAddress
	RequestedAmount *big.Int
	AcceptedAmount  *big.Int
	Collateral      *big.Int
	BTCAddress      string
	OpenTime        uint64
	Period          uint64
	BTCExpiryHeight uint64
	Status          int
}

// SaveReplaceRequest persists one replace request and indexes its id.
func (m *Manager) SaveReplaceRequest(r *replace.Request) error {
	record := storedReplaceRequest{
		ID: r.ID, OldVault: toStoredAddress(r.OldVault), NewVault: toStoredAddress(r.NewVault),
		RequestedAmount: r.RequestedAmount, AcceptedAmount: r.AcceptedAmount, Collateral: r.Collateral,
		BTCAddress: r.BTCAddress, OpenTime: r.OpenTime, Period: r.Period,
		BTCExpiryHeight: r.BTCExpiryHeight, Status: int(r.Status),
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	if err := m.trie.Update(strKey(replaceReqPrefix, r.ID), encoded); err != nil {
		return err
	}
	return m.appendIndex(replaceReqIndexKey, r.ID)
}

// LoadReplaceRequest retrieves a replace request by id.
func (m *Manager) LoadReplaceRequest(id string) (*replace.Request, bool, error) {
	data, err := m.trie.Get(strKey(replaceReqPrefix, id))
	if err != nil || len(data) == 0 {
		return nil, false, err
	}
	var stored storedReplaceRequest
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	oldVault, err := stored.OldVault.toAddress()
	if err != nil {
		return nil, false, err
	}
	newVault, err := stored.NewVault.toAddress()
	if err != nil {
		return nil, false, err
	}
	return &replace.Request{
		ID: stored.ID, OldVault: oldVault, NewVault: newVault,
		RequestedAmount: stored.RequestedAmount, AcceptedAmount: stored.AcceptedAmount, Collateral: stored.Collateral,
		BTCAddress: stored.BTCAddress, OpenTime: stored.OpenTime, Period: stored.Period,
		BTCExpiryHeight: stored.BTCExpiryHeight, Status: replace.Status(stored.Status),
	}, true, nil
}

// ReplaceRequestIDs returns every id ever saved via SaveReplaceRequest.
func (m *Manager) ReplaceRequestIDs() ([]string, error) { return m.readIndex(replaceReqIndexKey) }

// --- refund requests ---

type storedRefundRequest struct {
	ID            string
	Vault         storedAddress
	Issuer        storedAddress
	AmountWrapped *big.Int
	Fee           *big.Int
	BTCAddress    string
	IssueID       string
	Completed     bool
}

// SaveRefundRequest persists one refund request and indexes its id.
func (m *Manager) SaveRefundRequest(r *refund.Request) error {
	record := storedRefundRequest{
		ID: r.ID, Vault: toStoredAddress(r.Vault), Issuer: toStoredAddress(r.Issuer),
		AmountWrapped: r.AmountWrapped, Fee: r.Fee, BTCAddress: r.BTCAddress,
		IssueID: r.IssueID, Completed: r.Completed,
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	if err := m.trie.Update(strKey(refundReqPrefix, r.ID), encoded); err != nil {
		return err
	}
	return m.appendIndex(refundReqIndexKey, r.ID)
}

// LoadRefundRequest retrieves a refund request by id.
func (m *Manager) LoadRefundRequest(id string) (*refund.Request, bool, error) {
	data, err := m.trie.Get(strKey(refundReqPrefix, id))
	if err != nil || len(data) == 0 {
		return nil, false, err
	}
	var stored storedRefundRequest
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	vault, err := stored.Vault.toAddress()
	if err != nil {
		return nil, false, err
	}
	issuer, err := stored.Issuer.toAddress()
	if err != nil {
		return nil, false, err
	}
	return &refund.Request{
		ID: stored.ID, Vault: vault, Issuer: issuer,
		AmountWrapped: stored.AmountWrapped, Fee: stored.Fee, BTCAddress: stored.BTCAddress,
		IssueID: stored.IssueID, Completed: stored.Completed,
	}, true, nil
}

// RefundRequestIDs returns every id ever saved via SaveRefundRequest.
func (m *Manager) RefundRequestIDs() ([]string, error) { return m.readIndex(refundReqIndexKey) }
