package processor

import (
	"context"
	"sort"

	"sensorica-ingest/internal/models"
	"sensorica-ingest/internal/repository"
)

type fakeDeviceStore struct {
	lastValues    []float64
	saved         []models.DeviceConfig
	dimensionMaxs []float64
	propagated    []float64
	err           error
}

func (s *fakeDeviceStore) UpdateLastValue(_ context.Context, _ int64, value float64) error {
	s.lastValues = append(s.lastValues, value)
	return s.err
}

func (s *fakeDeviceStore) SaveWeightState(_ context.Context, d *models.DeviceConfig) error {
	s.saved = append(s.saved, *d)
	return s.err
}

func (s *fakeDeviceStore) UpdateDimensionMax(_ context.Context, _ int64, value float64) error {
	s.dimensionMaxs = append(s.dimensionMaxs, value)
	return s.err
}

func (s *fakeDeviceStore) PropagateDimension(_ context.Context, _ int64, value float64) (int64, error) {
	s.propagated = append(s.propagated, value)
	return 1, s.err
}

type fakeControlStore struct {
	weights   []models.ControlWeightRecord
	heights   []models.ControlHeightRecord
	weightErr error
}

func (s *fakeControlStore) InsertControlWeight(_ context.Context, rec *models.ControlWeightRecord) error {
	if s.weightErr != nil {
		return s.weightErr
	}
	s.weights = append(s.weights, *rec)
	return nil
}

func (s *fakeControlStore) InsertControlHeight(_ context.Context, rec *models.ControlHeightRecord) error {
	s.heights = append(s.heights, *rec)
	return nil
}

type fakeTrafficStore struct {
	events []models.TrafficEvent
	err    error
}

func (s *fakeTrafficStore) LatestTrafficEvent(_ context.Context, deviceID int64) (*models.TrafficEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].DeviceID == deviceID {
			ev := s.events[i]
			return &ev, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeTrafficStore) InsertTrafficEvent(_ context.Context, deviceID int64, value float64) error {
	s.events = append(s.events, models.TrafficEvent{ID: int64(len(s.events) + 1), DeviceID: deviceID, Value: value})
	return nil
}

type fakeCallbackQueue struct {
	requests []*models.APICallbackRequest
}

func (q *fakeCallbackQueue) OldestUnused(_ context.Context, deviceID int64) (*models.APICallbackRequest, error) {
	var pending []*models.APICallbackRequest
	for _, r := range q.requests {
		if r.DeviceID == deviceID && !r.Used {
			pending = append(pending, r)
		}
	}
	if len(pending) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending[0], nil
}

func (q *fakeCallbackQueue) MarkUsed(_ context.Context, id int64) error {
	for _, r := range q.requests {
		if r.ID == id {
			r.Used = true
		}
	}
	return nil
}

type published struct {
	topic   string
	message any
}

type fakePublisher struct {
	messages []published
}

func (p *fakePublisher) Publish(_ context.Context, topic string, message any) {
	p.messages = append(p.messages, published{topic: topic, message: message})
}

func (p *fakePublisher) onTopic(topic string) []any {
	var out []any
	for _, m := range p.messages {
		if m.topic == topic {
			out = append(out, m.message)
		}
	}
	return out
}

// fakeNotifier marks the request used like the real notifier does
type fakeNotifier struct {
	queue *fakeCallbackQueue
	calls []models.CompletedBox
	ids   []int64
}

func (n *fakeNotifier) Notify(ctx context.Context, req *models.APICallbackRequest, box *models.CompletedBox) error {
	n.calls = append(n.calls, *box)
	n.ids = append(n.ids, req.ID)
	return n.queue.MarkUsed(ctx, req.ID)
}

type fakePrinter struct {
	labels []string
}

func (p *fakePrinter) Print(_ context.Context, _ *models.DeviceConfig, labelID string) error {
	p.labels = append(p.labels, labelID)
	return nil
}
