// Package syncer orchestrates draining the pending-sale queue to the
// backend when connectivity allows.
//
// The engine is a two-state machine: idle and draining. A drain starts on
// a transition to online, on the periodic timer tick, or on an explicit
// force-sync request. Only one drain runs at a time; a re-entrant request
// is a no-op, never queued.
//
// A drain walks the queue oldest-first and submits each record with its
// stable offline ID as the idempotency key. Acceptance removes the record;
// a connectivity-class failure returns it to pending and stops the drain
// immediately, leaving later records untouched for the next attempt. This
// preserves chronological replay and avoids hammering a degraded backend
// with the full backlog on every tick. A definitive rejection marks the
// record failed and drains on: failed records stay resident, are excluded
// from automatic retries, and wait for manual resolution.
//
// Delivery is at-least-once: an ambiguous outcome (timeout with no
// response) counts as a failure, and the retransmission it causes is made
// safe by the backend honoring the offline-ID/receipt-number key, not by
// client-side detection.
package syncer
