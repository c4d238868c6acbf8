// Package metrics provides build observability for elmtasks.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics never require nil checks. When metrics.enabled is
// set the commands swap in a PrometheusRecorder and the development server
// exposes it on /metrics.
package metrics
