package wallet

import "time"

// UserRecord is the persisted form of a User. The store assigns ID on create.
type UserRecord struct {
	ID             string    `json:"id"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	Phone          string    `json:"phone"`
	IMEI           string    `json:"imei"`
	Email          string    `json:"email"`
	CardID         *string   `json:"card_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TransferRecord is the persisted form of a Transfer. The store assigns ID on save.
type TransferRecord struct {
	ID                string    `json:"id"`
	OriginPhone       string    `json:"origin_phone"`
	DestinationPhone  string    `json:"destination_phone"`
	OriginCardID      *string   `json:"origin_card_id,omitempty"`
	DestinationCardID string    `json:"destination_card_id"`
	Amount            Money     `json:"amount"`
	Type              string    `json:"type"`
	Mode              string    `json:"mode"`
	LedgerReference   *string   `json:"ledger_reference,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func ToUserRecord(u User) UserRecord {
	return UserRecord{
		ID:             u.ID,
		DocumentType:   u.DocumentType,
		DocumentNumber: u.DocumentNumber,
		Phone:          u.Phone,
		IMEI:           u.IMEI,
		Email:          u.Email,
		CardID:         optional(u.CardID),
		CreatedAt:      u.CreatedAt,
	}
}

func (r UserRecord) ToDomain() User {
	return User{
		ID:             r.ID,
		DocumentType:   r.DocumentType,
		DocumentNumber: r.DocumentNumber,
		Phone:          r.Phone,
		IMEI:           r.IMEI,
		Email:          r.Email,
		CardID:         deref(r.CardID),
		CreatedAt:      r.CreatedAt,
	}
}

func ToTransferRecord(t Transfer) TransferRecord {
	return TransferRecord{
		ID:                t.ID,
		OriginPhone:       t.OriginPhone,
		DestinationPhone:  t.DestinationPhone,
		OriginCardID:      optional(t.OriginCardID),
		DestinationCardID: t.DestinationCardID,
		Amount:            t.Amount,
		Type:              string(t.Type),
		Mode:              t.Mode,
		LedgerReference:   optional(t.LedgerReference),
		CreatedAt:         t.CreatedAt,
	}
}

func (r TransferRecord) ToDomain() Transfer {
	return Transfer{
		ID:                r.ID,
		OriginPhone:       r.OriginPhone,
		DestinationPhone:  r.DestinationPhone,
		OriginCardID:      deref(r.OriginCardID),
		DestinationCardID: r.DestinationCardID,
		Amount:            r.Amount,
		Type:              TransferType(r.Type),
		Mode:              r.Mode,
		LedgerReference:   deref(r.LedgerReference),
		CreatedAt:         r.CreatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
