/*
Package rabbitmq provides a RabbitMQ transport for the request/reply bridge.
It maps topics to routing keys on a topic exchange, includes an auto-reconnecting
session that re-establishes consumers, and supports optional header propagation
via a bus.HeaderPropagator.
*/
package rabbitmq
