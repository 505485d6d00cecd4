package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carparkfinder/backend/internal/application/services"
	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAvailabilityProvider struct {
	mock.Mock
	name string
}

func (m *MockAvailabilityProvider) Name() string { return m.name }

func (m *MockAvailabilityProvider) FetchCarparks(ctx context.Context) ([]*entities.Carpark, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Carpark), args.Error(1)
}

func TestAvailabilityService_MergesSources(t *testing.T) {
	lta := &MockAvailabilityProvider{name: "lta"}
	hdb := &MockAvailabilityProvider{name: "hdb"}
	broken := &MockAvailabilityProvider{name: "broken"}

	lta.On("FetchCarparks", mock.Anything).Return([]*entities.Carpark{
		{ID: "1", Name: "Suntec City"},
		{ID: "ACB", Name: "LTA copy"},
	}, nil).Once()
	hdb.On("FetchCarparks", mock.Anything).Return([]*entities.Carpark{
		{ID: "ACB", Name: "HDB copy"},
		{ID: "AM14", Name: "BLOCK 253"},
	}, nil).Once()
	broken.On("FetchCarparks", mock.Anything).Return(nil, errors.New("503")).Once()

	svc := services.NewAvailabilityService(newMemoryCache(t), time.Minute, "test", lta, hdb, broken)

	carparks, err := svc.Carparks(context.Background())
	require.NoError(t, err)
	require.Len(t, carparks, 3)
	assert.Equal(t, "1", carparks[0].ID)
	assert.Equal(t, "LTA copy", carparks[1].Name, "earlier source wins")
	assert.Equal(t, "AM14", carparks[2].ID)

	again, err := svc.Carparks(context.Background())
	require.NoError(t, err)
	assert.Len(t, again, 3)

	lta.AssertExpectations(t)
	hdb.AssertExpectations(t)
	broken.AssertExpectations(t)
}

func TestAvailabilityService_SharedSnapshot(t *testing.T) {
	cache := newMemoryCache(t)
	src := &MockAvailabilityProvider{name: "lta"}
	src.On("FetchCarparks", mock.Anything).Return([]*entities.Carpark{
		{ID: "1", Name: "Suntec City", LotCounts: entities.LotCounts{Car: 10}},
	}, nil).Once()

	writer := services.NewAvailabilityService(cache, time.Minute, "test", src)
	_, err := writer.Refresh(context.Background())
	require.NoError(t, err)

	idle := &MockAvailabilityProvider{name: "idle"}
	reader := services.NewAvailabilityService(cache, time.Minute, "test", idle)
	carparks, err := reader.Carparks(context.Background())
	require.NoError(t, err)
	require.Len(t, carparks, 1)
	assert.Equal(t, 10, carparks[0].Car)
	idle.AssertNotCalled(t, "FetchCarparks", mock.Anything)
}

func TestAvailabilityService_AllSourcesFail(t *testing.T) {
	src := &MockAvailabilityProvider{name: "lta"}
	src.On("FetchCarparks", mock.Anything).Return(nil, errors.New("timeout"))

	svc := services.NewAvailabilityService(nil, time.Minute, "test", src)
	_, err := svc.Carparks(context.Background())
	assert.Error(t, err)

	_, err = services.NewAvailabilityService(nil, time.Minute, "test").Refresh(context.Background())
	assert.Error(t, err)
}

func TestAvailabilityService_ServesStaleSnapshotOnFailure(t *testing.T) {
	src := &MockAvailabilityProvider{name: "lta"}
	src.On("FetchCarparks", mock.Anything).Return([]*entities.Carpark{{ID: "1"}}, nil).Once()
	src.On("FetchCarparks", mock.Anything).Return(nil, errors.New("timeout"))

	svc := services.NewAvailabilityService(nil, time.Nanosecond, "test", src)
	first, err := svc.Carparks(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(time.Millisecond)
	second, err := svc.Carparks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

type countingProvider struct {
	calls atomic.Int32
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) FetchCarparks(ctx context.Context) ([]*entities.Carpark, error) {
	p.calls.Add(1)
	return []*entities.Carpark{{ID: "1"}}, nil
}

func TestAvailabilityService_StartPeriodicRefresh(t *testing.T) {
	src := &countingProvider{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := services.NewAvailabilityService(nil, time.Minute, "test", src)
	svc.StartPeriodicRefresh(ctx, 10*time.Millisecond)
	assert.GreaterOrEqual(t, src.calls.Load(), int32(1), "initial refresh is synchronous")

	assert.Eventually(t, func() bool {
		return src.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

// blockingSource holds its first fetch until released and reports the
// context state it observed.
type blockingSource struct {
	entered  chan struct{}
	release  chan struct{}
	observed chan error
	calls    atomic.Int32
}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) FetchCarparks(ctx context.Context) ([]*entities.Carpark, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
		<-b.release
		b.observed <- ctx.Err()
	}
	return []*entities.Carpark{{ID: "1", Name: "Suntec City"}}, ctx.Err()
}

func TestAvailabilityService_RefreshOutlivesCancelledCaller(t *testing.T) {
	src := &blockingSource{
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		observed: make(chan error, 1),
	}
	svc := services.NewAvailabilityService(newMemoryCache(t), time.Minute, "test", src)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Carparks(ctx)
		errCh <- err
	}()

	<-src.entered
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled, "the cancelled caller returns without waiting")

	close(src.release)
	assert.NoError(t, <-src.observed, "the shared refresh keeps running")

	require.Eventually(t, func() bool {
		carparks, err := svc.Carparks(context.Background())
		return err == nil && len(carparks) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), src.calls.Load())
}
