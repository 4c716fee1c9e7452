/*
Package bridge simulates a blocking request/reply call over a publish/subscribe transport.

A Registry maps correlation identifiers to single-assignment response slots. The Client
publishes a request envelope and waits for its slot to be resolved or for the timeout to
fire; the Intake resolves slots from messages arriving on response topics. A Responder
serves the other side of the exchange. One Registry instance is shared by the Client and
the Intake of a process.
*/
package bridge
