package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message wraps a describe job with its RabbitMQ delivery information so the
// worker can ack, requeue or dead-letter it after processing.
type Message struct {
	Job         *Job
	DeliveryTag uint64
	Channel     *amqp.Channel
}

// GetJob returns the wrapped job
func (m *Message) GetJob() *Job {
	return m.Job
}

// Ack acknowledges the message
func (m *Message) Ack() error {
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack negatively acknowledges the message. With requeue false the broker
// dead-letters it.
func (m *Message) Nack(requeue bool) error {
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

var _ MessageInterface = (*Message)(nil)
