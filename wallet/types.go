package wallet

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TransferType classifies a wallet transfer.
type TransferType string

const (
	// TransferSend moves funds between two wallets.
	TransferSend TransferType = "SEND"
	// TransferSpent pays from the origin wallet's funding card.
	TransferSpent TransferType = "SPENT"
)

// RequiresFundingCard reports whether the origin must have an associated card.
func (t TransferType) RequiresFundingCard() bool { return t == TransferSpent }

// Ledger constants used when building settlement requests.
const (
	LedgerTypeDeposit      = "DEPOSIT"
	LedgerModeInterAccount = "INTER_ACCOUNT"
)

const (
	cacheKeyUserPrefix     = "user:"
	cacheKeyTransferPrefix = "transaction:"

	defaultCacheTTL          = 24 * time.Hour
	defaultSettlementTimeout = 30 * time.Second
	defaultCardTimeout       = 10 * time.Second
)

// MoneyScale is the number of decimal places every settled amount carries.
const MoneyScale = 2

// Money is an amount held at MoneyScale places in memory, on the wire and at rest,
// so a value read back from any copy equals the one that was written.
type Money struct {
	decimal.Decimal
}

// NewMoney rounds d to MoneyScale places.
func NewMoney(d decimal.Decimal) Money { return Money{d.Round(MoneyScale)} }

// MustMoney parses s and panics on malformed input.
func MustMoney(s string) Money { return NewMoney(decimal.RequireFromString(s)) }

func (m Money) String() string { return m.StringFixed(MoneyScale) }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}

	*m = NewMoney(d)

	return nil
}

// TransferRequest is a caller-submitted transfer. It is never mutated by the saga.
type TransferRequest struct {
	OriginPhone      string          `json:"originPhone"`
	DestinationPhone string          `json:"destinationPhone"`
	Amount           decimal.Decimal `json:"amount"`
	Type             TransferType    `json:"type"`
}

// Transfer is a settled, persisted transfer.
type Transfer struct {
	ID                string       `json:"id"`
	OriginPhone       string       `json:"originPhone"`
	DestinationPhone  string       `json:"destinationPhone"`
	OriginCardID      string       `json:"originCardId,omitempty"`
	DestinationCardID string       `json:"destinationCardId"`
	Amount            Money        `json:"amount"`
	Type              TransferType `json:"type"`
	Mode              string       `json:"mode"`
	LedgerReference   string       `json:"ledgerReference,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
}

// User is a wallet holder.
type User struct {
	ID             string    `json:"id"`
	DocumentType   string    `json:"documentType"`
	DocumentNumber string    `json:"documentNumber"`
	Phone          string    `json:"phone"`
	IMEI           string    `json:"imei"`
	Email          string    `json:"email"`
	CardID         string    `json:"cardId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Party returns the view of u the transfer saga works with.
func (u User) Party() WalletParty {
	return WalletParty{ID: u.ID, Phone: u.Phone, CardID: u.CardID}
}

// WalletParty is one side of a transfer as resolved from the store.
type WalletParty struct {
	ID     string
	Phone  string
	CardID string
}

// HasCard reports whether the party has an associated debit card.
func (p WalletParty) HasCard() bool { return p.CardID != "" }

// SettlementRequest is the ledger's request payload.
type SettlementRequest struct {
	DebitCardIDOrigin  string            `json:"debitCardIdOrigin"`
	DebitCardIDDestiny string            `json:"debitCardIdDestiny"`
	Transaction        LedgerTransaction `json:"transaction"`
}

// LedgerTransaction is sent inside a SettlementRequest and returned by the ledger as confirmation.
type LedgerTransaction struct {
	ID              string `json:"id,omitempty"`
	Type            string `json:"type"`
	Amount          Money  `json:"amount"`
	TransactionMode string `json:"transactionMode"`
	IsByCreditCard  bool   `json:"isByCreditCard"`
}

// CardValidationRequest asks the card service whether a debit card may be associated.
type CardValidationRequest struct {
	DebitCardID string `json:"debitCardId"`
}

// CardValidationResponse is the card service's verdict.
type CardValidationResponse struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}
