package shared

// Status defines transaction lifecycle states
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
)

// Terminal reports whether a status permits no further forward transition.
// A successful transaction can still become refunded through the paired
// refund flow, so it is not terminal here.
func (s Status) Terminal() bool {
	switch s {
	case StatusFailed, StatusRefunded, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Type defines the direction of a money movement
type Type string

const (
	TypeCredit Type = "credit"
	TypeDebit  Type = "debit"
)

// Feature defines the business reason for a transaction
type Feature string

const (
	FeatureBankTransfer   Feature = "bank_transfer"
	FeaturePaymentLink    Feature = "payment_link"
	FeatureWalletTransfer Feature = "wallet_transfer"
	FeatureVAS            Feature = "vas"
	FeatureSettlement     Feature = "settlement"
	FeatureRefund         Feature = "refund"
	FeatureChargeback     Feature = "chargeback"
	FeatureInternalCredit Feature = "internal_credit"
	FeatureInternalDebit  Feature = "internal_debit"
)

// Channel defines the rail a transaction moves over
type Channel string

const (
	ChannelBankTransfer Channel = "bank_transfer"
	ChannelCard         Channel = "card"
	ChannelBills        Channel = "bills"
)

// SettleStatus defines settlement progression for a transaction
type SettleStatus string

const (
	SettlePending    SettleStatus = "pending"
	SettleProcessing SettleStatus = "processing"
	SettleCompleted  SettleStatus = "completed"
	SettleFailed     SettleStatus = "failed"
)

// OutboxStatus defines outbox row dispatch states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
