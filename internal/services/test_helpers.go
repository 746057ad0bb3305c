package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/miquelpairo/predictionsreport/internal/dataprocessing"
)

// MockDatasetStore is a mock for the DatasetStore interface
type MockDatasetStore struct {
	mock.Mock
}

func (m *MockDatasetStore) Put(ctx context.Context, result *dataprocessing.ParseResult) (StoredDataset, error) {
	args := m.Called(ctx, result)
	return args.Get(0).(StoredDataset), args.Error(1)
}

func (m *MockDatasetStore) Get(ctx context.Context, id string) (StoredDataset, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(StoredDataset), args.Error(1)
}

func (m *MockDatasetStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDatasetStore) List(ctx context.Context) []StoredDataset {
	args := m.Called(ctx)
	return args.Get(0).([]StoredDataset)
}

func (m *MockDatasetStore) Len() int {
	args := m.Called()
	return args.Int(0)
}
