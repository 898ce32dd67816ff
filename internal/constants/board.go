package constants

// StatusKind classifies an inbound board status message.
type StatusKind string

const (
	StatusConnected    StatusKind = "connected"
	StatusHeartbeat    StatusKind = "heartbeat"
	StatusReceived     StatusKind = "received"
	StatusDisconnected StatusKind = "disconnected"
	// StatusOther covers every status string the backend does not recognise.
	StatusOther StatusKind = "other"
)

// Command is a workout control command understood by the board.
type Command string

const (
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
)

// Stage is the workout phase (etapa) mirrored on the board.
type Stage string

const (
	// StageStart is the pre-start countdown.
	StageStart Stage = "INICIO"
	// StageActive is an active exercise interval.
	StageActive Stage = "ACTIVO"
	// StageRest is a rest interval.
	StageRest Stage = "DESCANSO"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	return c == CommandPause || c == CommandResume
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageStart, StageActive, StageRest:
		return true
	}
	return false
}
