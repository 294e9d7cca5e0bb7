package csrf

import (
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// MockContext mocks the router.Context calls the middleware makes
type MockContext struct {
	router.Context
	mock.Mock
	LocalsMock map[any]any
}

func NewMockContext() *MockContext {
	return &MockContext{LocalsMock: map[any]any{}}
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.LocalsMock[key] = value[0]
		return value[0]
	}
	return m.LocalsMock[key]
}
