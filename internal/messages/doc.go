// Package messages defines the wire contracts exchanged between the dispatch
// service, the plant, and the front end: flow requests, flow responses, and
// the customer-facing status update pushed over the notification channel.
package messages
