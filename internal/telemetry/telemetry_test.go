// SPDX-License-Identifier: MIT
package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestSurveillanceAttributes_OmitsZeroCode(t *testing.T) {
	m := attrMap(SurveillanceAttributes("SYNO.API.Auth", "login", 0))
	assert.Len(t, m, 2)
	assert.Equal(t, "login", m[SurveillanceMethodKey].AsString())

	m = attrMap(SurveillanceAttributes("SYNO.API.Auth", "login", 400))
	assert.Equal(t, int64(400), m[SurveillanceCodeKey].AsInt64())
}

func TestBookingAttributes(t *testing.T) {
	m := attrMap(BookingAttributes(12, ""))
	assert.Len(t, m, 1)
	assert.Equal(t, int64(12), m[BookingIDKey].AsInt64())

	m = attrMap(BookingAttributes(12, "7"))
	assert.Equal(t, "7", m[CameraIDKey].AsString())
}

func TestNewProvider_DisabledIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_RejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "zipkin"})
	assert.Error(t, err)
}

func TestNewProvider_RejectsEmptyEndpoint(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "grpc"})
	assert.ErrorContains(t, err, "endpoint")
}

func TestResourceAttributes_DescribeDeployment(t *testing.T) {
	m := attrMap(resourceAttributes(Config{
		ServiceVersion:   "v0.1.0",
		SurveillanceHost: "nas.local",
		Timezone:         "Europe/Madrid",
	}))
	assert.Equal(t, "courtrec", m["service.name"].AsString())
	assert.Equal(t, "v0.1.0", m["service.version"].AsString())
	assert.Equal(t, "nas.local", m[SurveillanceHostKey].AsString())
	assert.Equal(t, "Europe/Madrid", m[TimezoneKey].AsString())

	assert.Len(t, resourceAttributes(Config{ServiceName: "x"}), 1)
}

func TestNewSampler_RespectsParentAndRate(t *testing.T) {
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
	assert.Contains(t, newSampler(0.25).Description(), "ParentBased")
}
