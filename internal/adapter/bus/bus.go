// Package bus carries outbox events from the dispatcher to the projection.
package bus

const deadLetterSuffix = ".dead"

// DeadLetterTopic names where poison messages from topic are parked.
func DeadLetterTopic(topic string) string {
	return topic + deadLetterSuffix
}
