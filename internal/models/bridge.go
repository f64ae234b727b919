package models

import (
	"time"
)

// WrapTokenRequest is a wrap token request mirrored from the bridge
// ledger (Zenon -> external chain). Every field except
// ConfirmationsToFinality is immutable once written; the confirmation
// countdown moves toward zero and is the only column overwritten on
// upsert conflict.
type WrapTokenRequest struct {
	ID                      uint64    `json:"-" gorm:"primaryKey;autoIncrement"`
	RequestID               string    `json:"request_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	NetworkClass            int       `json:"network_class" gorm:"not null"`
	ChainID                 int       `json:"chain_id" gorm:"not null;index;index:ix_wrap_chain_token,priority:1"`
	ToAddress               string    `json:"to_address" gorm:"type:varchar(42);not null;index"`
	TokenStandard           string    `json:"token_standard" gorm:"type:varchar(50);not null;index;index:ix_wrap_chain_token,priority:2"`
	TokenAddress            string    `json:"token_address" gorm:"type:varchar(42);not null"`
	TokenSymbol             string    `json:"token_symbol" gorm:"type:varchar(20);not null;index"`
	TokenDecimals           int       `json:"token_decimals" gorm:"not null"`
	Amount                  string    `json:"amount" gorm:"type:numeric(78,0);not null"`
	Fee                     string    `json:"fee" gorm:"type:numeric(78,0);not null"`
	Signature               string    `json:"signature" gorm:"type:varchar(100);not null"`
	CreationMomentumHeight  uint64    `json:"creation_momentum_height" gorm:"not null;index:ix_wrap_momentum_desc,sort:desc"`
	ConfirmationsToFinality int64     `json:"confirmations_to_finality" gorm:"not null"`
	CreatedAt               time.Time `json:"created_at"`
}

// TableName overrides the table name
func (WrapTokenRequest) TableName() string {
	return "wrap_token_requests"
}

// Pending reports whether the request has not yet reached finality.
func (w *WrapTokenRequest) Pending() bool {
	return w.ConfirmationsToFinality > 0
}

// UnwrapTokenRequest is an unwrap token request mirrored from the bridge
// ledger (external chain -> Zenon). The natural key is the pair
// (transaction_hash, log_index): one transaction may emit several log
// entries. Redeemed, Revoked and RedeemableIn are the mutable columns.
type UnwrapTokenRequest struct {
	ID                         uint64    `json:"-" gorm:"primaryKey;autoIncrement"`
	TransactionHash            string    `json:"transaction_hash" gorm:"type:varchar(64);not null;index;uniqueIndex:uq_unwrap_tx_log,priority:1"`
	LogIndex                   uint32    `json:"log_index" gorm:"not null;uniqueIndex:uq_unwrap_tx_log,priority:2"`
	RegistrationMomentumHeight uint64    `json:"registration_momentum_height" gorm:"not null;index:ix_unwrap_momentum_desc,sort:desc"`
	NetworkClass               int       `json:"network_class" gorm:"not null"`
	ChainID                    int       `json:"chain_id" gorm:"not null;index;index:ix_unwrap_chain_token,priority:1"`
	ToAddress                  string    `json:"to_address" gorm:"type:varchar(42);not null;index"`
	TokenAddress               string    `json:"token_address" gorm:"type:varchar(42);not null"`
	TokenStandard              string    `json:"token_standard" gorm:"type:varchar(50);not null;index;index:ix_unwrap_chain_token,priority:2"`
	TokenSymbol                string    `json:"token_symbol" gorm:"type:varchar(20);not null;index"`
	TokenDecimals              int       `json:"token_decimals" gorm:"not null"`
	Amount                     string    `json:"amount" gorm:"type:numeric(78,0);not null"`
	Signature                  string    `json:"signature" gorm:"type:varchar(100);not null"`
	Redeemed                   bool      `json:"redeemed" gorm:"not null;index"`
	Revoked                    bool      `json:"revoked" gorm:"not null;index"`
	RedeemableIn               int64     `json:"redeemable_in" gorm:"not null"`
	CreatedAt                  time.Time `json:"created_at"`
}

// TableName overrides the table name
func (UnwrapTokenRequest) TableName() string {
	return "unwrap_token_requests"
}

// Pending reports whether the request has not reached a terminal state.
func (u *UnwrapTokenRequest) Pending() bool {
	return !u.Redeemed && !u.Revoked
}

// UnwrapKey is the natural key of an unwrap request.
type UnwrapKey struct {
	TransactionHash string `json:"transaction_hash"`
	LogIndex        uint32 `json:"log_index"`
}

// Key returns the natural key of the unwrap request.
func (u *UnwrapTokenRequest) Key() UnwrapKey {
	return UnwrapKey{TransactionHash: u.TransactionHash, LogIndex: u.LogIndex}
}
