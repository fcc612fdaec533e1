package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"
	"sensorica-ingest/internal/processor"
	"sensorica-ingest/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockDeviceResolver struct {
	mock.Mock
}

func (m *MockDeviceResolver) GetByTopic(ctx context.Context, topic string) (*models.DeviceConfig, error) {
	args := m.Called(ctx, topic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeviceConfig), args.Error(1)
}

type call struct {
	device  *models.DeviceConfig
	reading float64
	body    map[string]any
}

type recordingProcessor struct {
	calls []call
	err   error
}

func (p *recordingProcessor) Process(_ context.Context, d *models.DeviceConfig, reading float64, body map[string]any) error {
	p.calls = append(p.calls, call{device: d, reading: reading, body: body})
	return p.err
}

func newTestDispatcher(device *models.DeviceConfig) (*Dispatcher, *recordingProcessor, *MockDeviceResolver) {
	resolver := new(MockDeviceResolver)
	if device != nil {
		resolver.On("GetByTopic", mock.Anything, device.Topic).Return(device, nil)
	}
	d := New(resolver, zap.NewNop(), metrics.New())
	proc := &recordingProcessor{}
	d.Register(models.ModelWeight, proc)
	return d, proc, resolver
}

func TestDispatch_TopLevelValue(t *testing.T) {
	device := &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight}
	d, proc, _ := newTestDispatcher(device)

	require.NoError(t, d.Dispatch(context.Background(), "line/1", []byte(`{"value": 12.5}`)))
	require.Len(t, proc.calls, 1)
	assert.Equal(t, 12.5, proc.calls[0].reading)
	assert.Same(t, device, proc.calls[0].device)
}

func TestDispatch_NumericString(t *testing.T) {
	device := &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight}
	d, proc, _ := newTestDispatcher(device)

	require.NoError(t, d.Dispatch(context.Background(), "line/1", []byte(`{"value": "7.25"}`)))
	assert.Equal(t, 7.25, proc.calls[0].reading)
}

func TestDispatch_PathFirstMatchWins(t *testing.T) {
	device := &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight, JSONPath: []string{"a", "b"}}
	d, proc, _ := newTestDispatcher(device)

	require.NoError(t, d.Dispatch(context.Background(), "line/1", []byte(`{"b": {"value": 7}, "value": 1}`)))
	assert.Equal(t, 7.0, proc.calls[0].reading)
}

func TestDispatch_PathFallsBackToValue(t *testing.T) {
	device := &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight, JSONPath: []string{"scale"}}
	d, proc, _ := newTestDispatcher(device)

	require.NoError(t, d.Dispatch(context.Background(), "line/1", []byte(`{"other": {"value": 3}, "value": 9}`)))
	assert.Equal(t, 9.0, proc.calls[0].reading)
}

func TestDispatch_CheckFieldReachesProcessor(t *testing.T) {
	device := &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight}
	d, proc, _ := newTestDispatcher(device)

	require.NoError(t, d.Dispatch(context.Background(), "line/1", []byte(`{"value": 1, "check": 250}`)))
	check, ok := models.NumericValue(proc.calls[0].body["check"])
	require.True(t, ok)
	assert.Equal(t, 250.0, check)
}

func TestDispatch_Drops(t *testing.T) {
	tests := []struct {
		name    string
		device  *models.DeviceConfig
		payload string
		wantErr error
	}{
		{
			name:    "invalid json",
			device:  &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight},
			payload: `{"value": `,
		},
		{
			name:    "trailing data",
			device:  &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight},
			payload: `{"value": 1} xyz`,
		},
		{
			name:    "nan reading",
			device:  &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight},
			payload: `{"value": "NaN"}`,
			wantErr: ErrNoReading,
		},
		{
			name:    "infinite reading in path",
			device:  &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight, JSONPath: []string{"scale"}},
			payload: `{"scale": {"value": "Inf"}}`,
			wantErr: ErrNoReading,
		},
		{
			name:    "json array",
			device:  &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight},
			payload: `[1, 2]`,
		},
		{
			name:    "missing value",
			device:  &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight},
			payload: `{"weight": 3}`,
			wantErr: ErrNoReading,
		},
		{
			name:    "path and value missing",
			device:  &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight, JSONPath: []string{"a"}},
			payload: `{"b": {"value": 3}}`,
			wantErr: ErrNoReading,
		},
		{
			name:    "unknown model",
			device:  &models.DeviceConfig{ID: 1, Topic: "line/1", ModelName: "rfid"},
			payload: `{"value": 3}`,
			wantErr: ErrUnknownModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, proc, _ := newTestDispatcher(tt.device)

			err := d.Dispatch(context.Background(), "line/1", []byte(tt.payload))
			assert.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, proc.calls)
		})
	}
}

func TestDispatch_DeviceNotFound(t *testing.T) {
	d, proc, resolver := newTestDispatcher(nil)
	resolver.On("GetByTopic", mock.Anything, "gone").Return(nil, fmt.Errorf("device for topic gone: %w", repository.ErrNotFound))

	err := d.Dispatch(context.Background(), "gone", []byte(`{"value": 1}`))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, proc.calls)
	resolver.AssertExpectations(t)
}

func TestDispatch_TrailingWhitespaceAccepted(t *testing.T) {
	device := &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight}
	d, proc, _ := newTestDispatcher(device)

	require.NoError(t, d.Dispatch(context.Background(), "line/1", []byte("{\"value\": 2}\n ")))
	assert.Len(t, proc.calls, 1)
}

func TestDispatch_ProcessorErrorReturned(t *testing.T) {
	device := &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight}
	d, proc, _ := newTestDispatcher(device)
	proc.err = errors.New("save failed")

	assert.Error(t, d.Dispatch(context.Background(), "line/1", []byte(`{"value": 1}`)))
}

func TestDispatch_ProcessorErrorMetrics(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantDropped int
		wantPartial int
	}{
		{"write failure is partial", errors.New("save failed"), 0, 1},
		{"zero conversion factor is dropped", fmt.Errorf("device 1: %w", processor.ErrZeroConversionFactor), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &models.DeviceConfig{ID: 1, Topic: "line/1", Kind: models.ModelWeight}
			d, proc, _ := newTestDispatcher(device)
			proc.err = tt.err

			assert.Error(t, d.Dispatch(context.Background(), "line/1", []byte(`{"value": 1}`)))

			reg := d.metrics.Registry()
			dropped, err := testutil.GatherAndCount(reg, "sensorica_messages_dropped_total")
			require.NoError(t, err)
			partial, err := testutil.GatherAndCount(reg, "sensorica_messages_partial_total")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDropped, dropped)
			assert.Equal(t, tt.wantPartial, partial)
		})
	}
}

func TestExtractPath(t *testing.T) {
	body := map[string]any{
		"a": "scalar",
		"b": map[string]any{"value": 4.0},
		"c": map[string]any{"other": 1.0},
	}

	v, ok := ExtractPath(body, []string{"missing", "b"})
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = ExtractPath(body, []string{"c", "b"})
	assert.False(t, ok, "first present key decides")

	_, ok = ExtractPath(body, []string{"a"})
	assert.False(t, ok)
}
