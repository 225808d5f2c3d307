// Package delivery sends password reset tokens out of band. Every type here
// implements goSession.ResetDelivery.
//
//   - [Log] writes the notice to a slog logger, for local development.
//   - [AMQP] publishes a persistent JSON message to a RabbitMQ queue.
//   - [Kafka] writes a JSON message keyed by user id to a Kafka topic.
//
// Downstream mailers consume the JSON [Message].
package delivery
