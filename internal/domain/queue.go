package domain

// QueueType identifies one of the ranked queues tracked on a leaderboard.
type QueueType string

const (
	QueueSoloDuo     QueueType = "RANKED_SOLO_5x5"
	QueueFlex        QueueType = "RANKED_FLEX_SR"
	QueueTFTDoubleUp QueueType = "RANKED_TFT_DOUBLE_UP"
)

// Queues is the fixed set of tracked queues, in display order.
var Queues = []QueueType{QueueSoloDuo, QueueFlex, QueueTFTDoubleUp}

var queueNames = map[QueueType]string{
	QueueSoloDuo:     "Ranked Solo/Duo",
	QueueFlex:        "Ranked Flex",
	QueueTFTDoubleUp: "TFT Double Up",
}

// DisplayName returns a human-readable queue name.
func (q QueueType) DisplayName() string {
	if name, ok := queueNames[q]; ok {
		return name
	}
	return string(q)
}

// Valid reports whether q is one of the tracked queues.
func (q QueueType) Valid() bool {
	_, ok := queueNames[q]
	return ok
}
