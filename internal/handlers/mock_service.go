package handlers

import (
	"context"
	"net/http"
	"time"

	"rfsentry/internal/models"
	"rfsentry/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockSentry struct {
	armErr    error
	disarmErr error
	testErr   error
	updateErr error
	policy    models.PolicyConfig

	armCalled    int
	disarmCalled int
	testCalls    []string
	lastPolicy   models.PolicyConfig
}

func (m *mockSentry) Arm(ctx context.Context) error {
	m.armCalled++
	return m.armErr
}
func (m *mockSentry) Disarm(ctx context.Context) error {
	m.disarmCalled++
	return m.disarmErr
}
func (m *mockSentry) TriggerTest(ctx context.Context, deviceID string) error {
	m.testCalls = append(m.testCalls, deviceID)
	return m.testErr
}
func (m *mockSentry) Policy(ctx context.Context) models.PolicyConfig {
	return m.policy
}
func (m *mockSentry) UpdatePolicy(ctx context.Context, p models.PolicyConfig) error {
	m.lastPolicy = p
	return m.updateErr
}

type mockMonitoring struct {
	status     models.SentryStatus
	alerted    []models.DeviceStatus
	alertedErr error
}

func (m *mockMonitoring) Status(ctx context.Context) models.SentryStatus {
	return m.status
}
func (m *mockMonitoring) AlertedDevices(ctx context.Context) ([]models.DeviceStatus, error) {
	return m.alerted, m.alertedErr
}

type mockEventLog struct {
	resp       []models.SentryEvent
	err        error
	lastFrom   time.Time
	lastTo     time.Time
	lastType   string
	lastDevice string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.SentryEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastDevice = f.DeviceID
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
