// Package prometheus renders engine counters and the Authenticate latency histogram
// in Prometheus text exposition format.
//
// Counters are named conduit_*_total. Nothing is registered globally; callers mount
// Exporter.Handler where they want it.
package prometheus
