// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines event types and handler interfaces that allow for loose
// coupling between components in the system. The session lifecycle manager can
// emit events without knowing which handlers will process them, so completing a
// session never blocks on archival or analytics work.
//
// The primary components are:
// - SessionEvent: Represents a session lifecycle occurrence with a JSON payload
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
