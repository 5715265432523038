// Package observability provides logging, metrics and tracing for the
// session orchestrator.
//
// Every component takes its logger and recorder by injection. There is no
// global collector: each Collector owns a private Prometheus registry, so
// independent sessions and tests never collide on registration.
package observability
