// Package prometheus exposes fleetAuth engine counters as a prometheus.Collector.
//
// [NewCollector] reads [fleetAuth.Engine.MetricsSnapshot] on every scrape and reports one
// const counter per engine counter (fleetauth_*_total), the authenticate latency histogram,
// and the audit and notification drop counters. Callers register the collector in their own
// registry; [Handler] serves a private registry holding only this collector.
package prometheus
