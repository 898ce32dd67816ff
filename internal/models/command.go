package models

import "github.com/ledfit/ledfit-backend/internal/constants"

// CommandMessage is published on ledfit/boards/{boardId}/commands.
type CommandMessage struct {
	Command         constants.Command `json:"command"`
	ClientTimestamp *int64            `json:"clientTimestamp,omitempty"`
}

// TimeSyncMessage is published on ledfit/boards/{boardId}/time.
type TimeSyncMessage struct {
	Duration        int64           `json:"duration"`
	ClientTimestamp int64           `json:"clientTimestamp"`
	Etapa           constants.Stage `json:"etapa"`
}
