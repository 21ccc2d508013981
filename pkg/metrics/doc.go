// Package metrics provides Prometheus-compatible metrics for the wsmock harness.
//
// It implements the Prometheus text exposition format using only the standard
// library. Nothing is served over the network; the CLI writes the registry to
// stdout after a scenario run (wsmock simulate --metrics).
//
// Supported metric types:
//   - Counter: monotonically increasing value (e.g., messages sent)
//   - Gauge: value that can go up or down (e.g., active sockets)
//   - Histogram: distribution of values with configurable buckets (e.g., connect latency)
//
// # Default Metrics
//
//   - wsmock_messages_total (mode, direction)
//   - wsmock_send_errors_total (mode)
//   - wsmock_reconnects_total (mode)
//   - wsmock_heartbeats_total
//   - wsmock_buffer_overflows_total
//   - wsmock_active_sockets (mode)
//   - wsmock_connect_duration_seconds (mode)
//   - wsmock_roundtrip_duration_seconds (mode)
//
// # Usage
//
//	registry := metrics.Init()
//	metrics.IncCounter(metrics.MessagesTotal, "fake", "sent")
//	_ = registry.WriteText(os.Stdout)
package metrics
