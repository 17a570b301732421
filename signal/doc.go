// Package signal implements the event-based signalling interface between the
// node manager and the embedding application. Events are JSON envelopes
// delivered to the handler set with SetMobileSignalHandler.
package signal
