// Package mock provides testify mocks of the shrinker's storage interfaces.
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/class-shrinker/internal/graph"
	"github.com/class-shrinker/pkg/model"
)

// MockOutputProvider is a mock implementation of storage.OutputProvider.
type MockOutputProvider struct {
	mock.Mock
}

// ContentLocation mocks the ContentLocation method.
func (m *MockOutputProvider) ContentLocation(name string, types []model.ContentType, scopes []model.Scope, format model.Format) (string, error) {
	args := m.Called(name, types, scopes, format)
	return args.String(0), args.Error(1)
}

// DeleteAll mocks the DeleteAll method.
func (m *MockOutputProvider) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// WriteClass mocks the WriteClass method.
func (m *MockOutputProvider) WriteClass(ctx context.Context, location, class string, data []byte) error {
	args := m.Called(ctx, location, class, data)
	return args.Error(0)
}

// DeleteClass mocks the DeleteClass method.
func (m *MockOutputProvider) DeleteClass(ctx context.Context, location, class string) error {
	args := m.Called(ctx, location, class)
	return args.Error(0)
}

// MockStore is a mock implementation of state.Store.
type MockStore struct {
	mock.Mock
}

// Save mocks the Save method.
func (m *MockStore) Save(ctx context.Context, st *graph.State) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

// Load mocks the Load method.
func (m *MockStore) Load(ctx context.Context) (*graph.State, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*graph.State), args.Error(1)
}

// Close mocks the Close method.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
