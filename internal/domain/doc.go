// Package domain defines the core business entities of the study engine:
// cards with their spaced-repetition scheduling state, study sessions with
// their lifecycle status and performance aggregates, and the subscription
// tiers that bound scheduling intervals.
//
// Entities carry their own validation. Scheduling math lives in the fsrs
// subpackage; stateful orchestration lives in the service packages.
package domain
