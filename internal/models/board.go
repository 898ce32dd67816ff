package models

import "time"

// Board is the durable record of a paired display board.
type Board struct {
	BoardID     string    `json:"boardId"`
	OwnerID     string    `json:"ownerId"`
	IsConnected bool      `json:"isConnected"` // last reported liveness bit
	LastSeen    time.Time `json:"lastSeen"`    // time of the last valid inbound message
}

// BoardStatus is the answer to a board status query.
type BoardStatus struct {
	IsAssociated bool       `json:"isAssociated"`
	BoardID      string     `json:"boardId,omitempty"`
	IsConnected  *bool      `json:"isConnected,omitempty"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
	Message      string     `json:"message,omitempty"`
}
