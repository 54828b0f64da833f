// Package ack provides the business boundary for WardWatch's alert
// acknowledgment and deferral consistency model. It defines the Service
// (validation, authorization, lifecycle), Reconcile (pure effective
// status computation against live fingerprints), Aggregate (case-level
// rollup), Store interface (persistence), and domain models.
package ack
