// Package mocks provides test doubles for the hunter client.
package mocks

import (
	"context"

	hunter "github.com/sells-group/lead-bridge/pkg/hunter"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// DomainSearch provides a mock function with given fields: ctx, domain, opts
func (_m *MockClient) DomainSearch(ctx context.Context, domain string, opts ...hunter.SearchOption) (*hunter.DomainSearchResponse, error) {
	ret := _m.Called(ctx, domain)

	if len(ret) == 0 {
		panic("no return value specified for DomainSearch")
	}

	var r0 *hunter.DomainSearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*hunter.DomainSearchResponse, error)); ok {
		return rf(ctx, domain)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*hunter.DomainSearchResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient and registers cleanup
// assertions on t.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
