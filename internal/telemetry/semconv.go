// Package telemetry provides semantic conventions for scribe observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys for scribe telemetry.
// Following OpenTelemetry naming conventions: namespace.attribute_name
const (
	// Environment attribute
	AttrEnvironment = attribute.Key("environment")

	// Upstream attributes
	AttrMode    = attribute.Key("gamemode")
	AttrOutcome = attribute.Key("outcome")
	AttrHTTP    = attribute.Key("http.status_code")

	// Resolution attributes
	AttrRequestedMode = attribute.Key("gamemode.requested")
	AttrResolvedMode  = attribute.Key("gamemode.resolved")

	// Index attributes
	AttrIndexSource = attribute.Key("index.source")

	// Batch attributes
	AttrStatus     = attribute.Key("status")
	AttrErrorClass = attribute.Key("error.class")

	// Generic operation attributes
	AttrOperation = attribute.Key("operation")
	AttrResult    = attribute.Key("result")
)

// Outcome values
const (
	OutcomeFound     = "found"
	OutcomeNotFound  = "not_found"
	OutcomeTransient = "transient"
)

// FetchAttributes returns attributes for upstream fetch metrics.
func FetchAttributes(environment, mode, outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrMode.String(mode),
		AttrOutcome.String(outcome),
	}
}

// ResolutionAttributes returns attributes for mode resolution metrics.
func ResolutionAttributes(environment, requested, resolved, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrRequestedMode.String(requested),
		AttrResolvedMode.String(resolved),
		AttrResult.String(result),
	}
}

// IndexAttributes returns attributes for activity index resolution metrics.
func IndexAttributes(environment, source string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrIndexSource.String(source),
	}
}

// BatchAttributes returns attributes for batch item metrics.
func BatchAttributes(environment, status, errorClass string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrStatus.String(status),
		AttrErrorClass.String(errorClass),
	}
}

// OperationResultAttributes returns attributes for operation metrics with result classification.
func OperationResultAttributes(environment, operation, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrOperation.String(operation),
		AttrResult.String(result),
	}
}
