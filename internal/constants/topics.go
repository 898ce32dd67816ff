package constants

import "time"

// Topic layout shared with the board firmware.
const (
	// TopicPrefix is the common root of every board topic.
	TopicPrefix = "ledfit/boards"
	// StatusTopicPattern matches status/heartbeat messages from every board.
	StatusTopicPattern = TopicPrefix + "/+/status"
	// StatusTopicSuffix is the last segment of a board status topic.
	StatusTopicSuffix = "status"
	// CommandsTopicSuffix is the last segment of a board command topic.
	CommandsTopicSuffix = "commands"
	// TimeTopicSuffix is the last segment of a board time-sync topic.
	TimeTopicSuffix = "time"
)

// DefaultQOS is at-least-once delivery, used for every board topic.
const DefaultQOS byte = 1

// ConnectivityWindow is how recent lastSeen must be for a board flagged
// as connected to be reported as connected.
const ConnectivityWindow = 2 * time.Minute
