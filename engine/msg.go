package engine

import (
	"math/big"
	"sort"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/common"
)

// LinkOwnerMsg binds an owner to the factory it deployed its account from.
type LinkOwnerMsg struct {
	Owner   string `json:"owner"`
	Factory string `json:"factory"`
	Account string `json:"account"`
}

type linkOwner struct {
	owner, factory, account string
}

func (m *LinkOwnerMsg) Validate() error {
	_, err := m.parse()
	return err
}

func (m *LinkOwnerMsg) parse() (*linkOwner, error) {
	if m.Owner == "" || m.Factory == "" || m.Account == "" {
		return nil, xerrors.Errorf("owner, factory, and account are required: %w", common.ErrInvalidInput)
	}
	owner, err := common.CanonicalAddress(m.Owner)
	if err != nil {
		return nil, xerrors.Errorf("owner: %w", err)
	}
	factory, err := common.CanonicalAddress(m.Factory)
	if err != nil {
		return nil, xerrors.Errorf("factory: %w", err)
	}
	account, err := common.CanonicalAddress(m.Account)
	if err != nil {
		return nil, xerrors.Errorf("account: %w", err)
	}
	return &linkOwner{owner: owner, factory: factory, account: account}, nil
}

// GrantOwnershipMsg adds owners to an account.
type GrantOwnershipMsg struct {
	Account string   `json:"account"`
	Owners  []string `json:"owners"`
}

type grantOwnership struct {
	account string
	owners  []string
}

func (m *GrantOwnershipMsg) Validate() error {
	_, err := m.parse()
	return err
}

func (m *GrantOwnershipMsg) parse() (*grantOwnership, error) {
	if m.Account == "" || len(m.Owners) == 0 {
		return nil, xerrors.Errorf("require account and owners[]: %w", common.ErrInvalidInput)
	}
	account, err := common.CanonicalAddress(m.Account)
	if err != nil {
		return nil, xerrors.Errorf("account: %w", err)
	}
	owners, err := common.CanonicalAddresses(m.Owners)
	if err != nil {
		return nil, xerrors.Errorf("owners: %w", err)
	}
	return &grantOwnership{account: account, owners: owners}, nil
}

// ProposeMsg proposes the transaction an account should execute. Value is a
// decimal or 0x-prefixed hex integer of native token units, Data is 0x hex.
// Empty Value and Data mean zero and no calldata.
type ProposeMsg struct {
	Account string `json:"accountAddress"`
	Target  string `json:"target"`
	Value   string `json:"value"`
	Data    string `json:"data"`
	Reason  string `json:"reason"`
	Note    string `json:"note"`
}

type proposal struct {
	account ethcommon.Address
	fields  common.RequestFields
}

func (m *ProposeMsg) Validate() error {
	_, err := m.parse()
	return err
}

func (m *ProposeMsg) parse() (*proposal, error) {
	if m.Account == "" || m.Target == "" {
		return nil, xerrors.Errorf("account and target addresses are required: %w", common.ErrInvalidInput)
	}
	account, err := common.ParseAddress(m.Account)
	if err != nil {
		return nil, xerrors.Errorf("account: %w", err)
	}
	target, err := common.ParseAddress(m.Target)
	if err != nil {
		return nil, xerrors.Errorf("target: %w", err)
	}
	value, err := parseValue(m.Value)
	if err != nil {
		return nil, err
	}
	data, err := parseHex(m.Data, true)
	if err != nil {
		return nil, xerrors.Errorf("data: %w", err)
	}

	return &proposal{
		account: account,
		fields: common.RequestFields{
			Target: target.Hex(),
			Value:  value,
			Data:   data,
			Reason: m.Reason,
			Note:   m.Note,
		},
	}, nil
}

// Message computes the signing message the proposal will have once stored.
func (m *ProposeMsg) Message() ([]byte, error) {
	p, err := m.parse()
	if err != nil {
		return nil, err
	}
	return common.ProposalMessage(p.account, ethcommon.HexToAddress(p.fields.Target), p.fields.Value.BigInt(), p.fields.Data)
}

func parseValue(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	var v decimal.Decimal
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return decimal.Zero, xerrors.Errorf("value %q: %w", s, common.ErrInvalidInput)
		}
		v = decimal.NewFromBigInt(n, 0)
	} else {
		var err error
		v, err = decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, xerrors.Errorf("value %q: %w", s, common.ErrInvalidInput)
		}
	}

	if v.IsNegative() || !v.Equal(v.Truncate(0)) {
		return decimal.Zero, xerrors.Errorf("value %q must be a non-negative integer: %w", s, common.ErrInvalidInput)
	}
	if len(v.BigInt().String()) > common.MaxValueDigits {
		return decimal.Zero, xerrors.Errorf("value %q too large: %w", s, common.ErrInvalidInput)
	}
	return decimal.NewFromBigInt(v.BigInt(), 0), nil
}

func parseHex(s string, allowEmpty bool) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if allowEmpty {
			return []byte{}, nil
		}
		return nil, xerrors.Errorf("empty hex: %w", common.ErrInvalidInput)
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, xerrors.Errorf("%q: %v: %w", s, err, common.ErrInvalidInput)
	}
	if len(b) == 0 && !allowEmpty {
		return nil, xerrors.Errorf("empty hex: %w", common.ErrInvalidInput)
	}
	return b, nil
}

// SubmitSignatureMsg carries one owner's signature for the active request of
// an account. Message is optional; when set it must equal the canonical
// message of the active request.
type SubmitSignatureMsg struct {
	Account   string `json:"account"`
	Signer    string `json:"owner"`
	Message   string `json:"message,omitempty"`
	Signature string `json:"signature"`
}

type submission struct {
	account, signer string
	message         []byte
	signature       []byte
}

func (m *SubmitSignatureMsg) Validate() error {
	_, err := m.parse()
	return err
}

func (m *SubmitSignatureMsg) parse() (*submission, error) {
	if m.Account == "" || m.Signer == "" || m.Signature == "" {
		return nil, xerrors.Errorf("account, owner, and signature are required: %w", common.ErrInvalidInput)
	}
	account, err := common.CanonicalAddress(m.Account)
	if err != nil {
		return nil, xerrors.Errorf("account: %w", err)
	}
	signer, err := common.CanonicalAddress(m.Signer)
	if err != nil {
		return nil, xerrors.Errorf("owner: %w", err)
	}
	sig, err := parseHex(m.Signature, false)
	if err != nil {
		return nil, xerrors.Errorf("signature: %w", err)
	}
	msg, err := parseHex(m.Message, true)
	if err != nil {
		return nil, xerrors.Errorf("message: %w", err)
	}
	return &submission{account: account, signer: signer, message: msg, signature: sig}, nil
}

// SetStatusMsg requests a status change of the active request.
type SetStatusMsg struct {
	Account string `json:"accountAddress"`
	Status  string `json:"newStatus"`
}

func (m *SetStatusMsg) Validate() error {
	_, _, err := m.parse()
	return err
}

func (m *SetStatusMsg) parse() (string, common.Status, error) {
	if m.Account == "" || m.Status == "" {
		return "", "", xerrors.Errorf("missing accountAddress or newStatus: %w", common.ErrInvalidInput)
	}
	account, err := common.CanonicalAddress(m.Account)
	if err != nil {
		return "", "", err
	}
	status, err := common.ParseStatus(m.Status)
	if err != nil {
		return "", "", err
	}
	return account, status, nil
}

func sortedCopy(list []string) []string {
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}
