package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sync states of a draft towards the archive sheet.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// Draft is a composed message kept for later use. It holds the request that
// produced it, never the donation table.
type Draft struct {
	ID           int64
	DonorName    string
	DonorEmail   string
	MessageType  MessageType
	TotalDonated decimal.Decimal
	Context      string
	Text         string
	CreatedAt    time.Time
	Version      int64
	SyncStatus   string
}

// NewDraft builds the draft for a successful composition.
func NewDraft(req ComposeRequest, email, text string) Draft {
	return Draft{
		DonorName:    req.DonorName,
		DonorEmail:   email,
		MessageType:  req.MessageType,
		TotalDonated: req.TotalDonated,
		Context:      req.Context,
		Text:         text,
		SyncStatus:   SyncPending,
	}
}
