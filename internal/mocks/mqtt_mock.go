package mocks

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"
)

// MockMQTTClient stands in for the broker client built per publish.
type MockMQTTClient struct {
	mock.Mock
}

func (m *MockMQTTClient) Connect() mqtt.Token {
	return m.Called().Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return m.Called(topic, qos, retained, payload).Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

// MockToken is a paho token whose outcome is scripted by the test.
type MockToken struct {
	mock.Mock
}

func (m *MockToken) Wait() bool {
	return m.Called().Bool(0)
}

func (m *MockToken) WaitTimeout(timeout time.Duration) bool {
	return m.Called(timeout).Bool(0)
}

func (m *MockToken) Done() <-chan struct{} {
	return m.Called().Get(0).(<-chan struct{})
}

func (m *MockToken) Error() error {
	return m.Called().Error(0)
}
