// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for courtrec.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// External video system attributes
	SurveillanceAPIKey    = "surveillance.api"
	SurveillanceMethodKey = "surveillance.method"
	SurveillanceCodeKey   = "surveillance.error_code"

	// Acquisition attributes
	BookingIDKey = "booking.id"
	CameraIDKey  = "camera.id"
	RunIDKey     = "run.id"
	RunStateKey  = "run.state"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SurveillanceAttributes describes one web API call. code is omitted when zero.
func SurveillanceAttributes(api, method string, code int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SurveillanceAPIKey, api),
		attribute.String(SurveillanceMethodKey, method),
	}
	if code != 0 {
		attrs = append(attrs, attribute.Int(SurveillanceCodeKey, code))
	}
	return attrs
}

// BookingAttributes creates booking-related span attributes.
func BookingAttributes(bookingID int64, cameraID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int64(BookingIDKey, bookingID)}
	if cameraID != "" {
		attrs = append(attrs, attribute.String(CameraIDKey, cameraID))
	}
	return attrs
}
