package processor

import (
	"context"
	"errors"
	"testing"

	"sensorica-ingest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTraffic_Deduplicates(t *testing.T) {
	store := &fakeTrafficStore{}
	p := NewTrafficProcessor(store, zap.NewNop(), nil)
	d := &models.DeviceConfig{ID: 3, Kind: models.ModelTrafficMonitor}
	ctx := context.Background()

	for _, v := range []float64{1, 1, 0, 0, 1} {
		require.NoError(t, p.Process(ctx, d, v, nil))
	}

	require.Len(t, store.events, 3)
	assert.Equal(t, 1.0, store.events[0].Value)
	assert.Equal(t, 0.0, store.events[1].Value)
	assert.Equal(t, 1.0, store.events[2].Value)
}

func TestTraffic_PerDevice(t *testing.T) {
	store := &fakeTrafficStore{}
	p := NewTrafficProcessor(store, zap.NewNop(), nil)
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, &models.DeviceConfig{ID: 3}, 1, nil))
	require.NoError(t, p.Process(ctx, &models.DeviceConfig{ID: 4}, 1, nil))

	assert.Len(t, store.events, 2)
}

func TestTraffic_LookupError(t *testing.T) {
	store := &fakeTrafficStore{err: errors.New("db down")}
	p := NewTrafficProcessor(store, zap.NewNop(), nil)

	err := p.Process(context.Background(), &models.DeviceConfig{ID: 3}, 1, nil)
	assert.Error(t, err)
	assert.Empty(t, store.events)
}
