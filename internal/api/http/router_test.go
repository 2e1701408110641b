package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/workflow-service/internal/api/http"
	"github.com/spec-kit/workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/chat"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/feed"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/persistence"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/storage"
	"github.com/spec-kit/workflow-service/internal/workspace"
)

type testServer struct {
	app      *fiber.App
	provider *auth.Provider
	employee *domain.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	backend := repository.NewMemory()
	changeFeed := feed.NewMemory()
	revocations := auth.NewMemoryRevocations()
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("secret", 15)
	provider := auth.NewProvider(auth.ProviderDependencies{
		Users:       backend.Users(),
		Tokens:      tokens,
		Revocations: revocations,
		BcryptCost:  bcrypt.MinCost,
		Logger:      logger,
	})

	created, err := provider.BootstrapSuperAdmin(ctx, "Root", "root@example.com", "rootpass")
	require.NoError(t, err)
	require.True(t, created)
	_, err = provider.SignUp(ctx, auth.SignUpInput{
		Name: "Bea Boss", Email: "bea@example.com", Password: "secret1", Role: domain.RoleAdmin, Department: "Sales",
	})
	require.NoError(t, err)
	employee, err := provider.SignUp(ctx, auth.SignUpInput{
		Name: "Ann Field", Email: "ann@example.com", Password: "secret2", Role: domain.RoleEmployee, Department: "Sales",
	})
	require.NoError(t, err)

	dispatcher := events.NewInMemoryDispatcher(logger)
	chatService := chat.NewService(chat.Dependencies{
		Messages:   backend.ChatMessages(),
		Users:      backend.Users(),
		Feed:       changeFeed,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	registry := workspace.NewRegistry(workspace.Dependencies{
		Auth:       provider,
		Users:      backend.Users(),
		Tasks:      backend.Tasks(),
		Requests:   backend.Requests(),
		Feed:       changeFeed,
		Dispatcher: dispatcher,
		Uploader:   storage.NewLocal(t.TempDir(), "/files", 1<<20),
		Chat:       chatService,
		Metrics:    metrics,
		Logger:     logger,
		Options:    workspace.Options{AtomicAppend: true, ReadyTimeout: 2 * time.Second},
	})
	t.Cleanup(registry.CloseAll)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{NoticeTTLSeconds: 3})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("workflow-service", "test", &persistence.Postgres{}, nil, metrics, registry),
		Auth:           handlers.NewAuthHandler(provider, registry, logger),
		Users:          handlers.NewUsersHandler(provider, registry),
		Dashboard:      handlers.NewDashboardHandler(registry, time.Now),
		Tasks:          handlers.NewTasksHandler(registry),
		Requests:       handlers.NewRequestsHandler(registry),
		Chats:          handlers.NewChatsHandler(registry, chatService),
		WS:             handlers.NewWSHandler(registry, logger, 3),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, backend.Users(), revocations),
	})

	return &testServer{app: app, provider: provider, employee: employee}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]any)
	return data["auth"].(map[string]any)["token"].(string)
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "memory", body["dependencies"].(map[string]any)["postgres"])

	status, _ = s.do(t, http.MethodGet, "/health/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestLoginErrors(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "bea@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(body))
	assert.EqualValues(t, 3, body["error"].(map[string]any)["ttl_seconds"])

	status, body = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestTaskFlowThroughDashboard(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, "bea@example.com", "secret1")
	employeeToken := s.login(t, "ann@example.com", "secret2")

	past := time.Now().AddDate(0, 0, -2).Format(domain.DateLayout)
	status, body := s.do(t, http.MethodPost, "/tasks", adminToken, map[string]any{
		"title": "Stock check", "assigned_to_id": s.employee.ID, "deadline": past, "priority": "NORMAL",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	future := time.Now().AddDate(0, 0, 5).Format(domain.DateLayout)
	status, body = s.do(t, http.MethodPost, "/tasks", adminToken, map[string]any{
		"title": "Stock check", "assigned_to_id": s.employee.ID, "deadline": future, "priority": "HIGH",
	})
	require.Equal(t, http.StatusCreated, status, body)
	taskID := body["data"].(map[string]any)["id"].(string)
	require.NotEmpty(t, taskID)

	status, body = s.do(t, http.MethodPost, "/tasks", employeeToken, map[string]any{
		"title": "Self assigned", "assigned_to_id": s.employee.ID, "deadline": future, "priority": "LOW",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	var employeeView map[string]any
	for i := 0; i < 100; i++ {
		status, body = s.do(t, http.MethodGet, "/dashboard", employeeToken, nil)
		require.Equal(t, http.StatusOK, status, body)
		employeeView = body["data"].(map[string]any)["employee"].(map[string]any)
		if len(employeeView["tasks"].([]any)) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Len(t, employeeView["tasks"], 1)
	task := employeeView["tasks"].([]any)[0].(map[string]any)
	assert.Equal(t, "Stock check", task["title"])
	assert.Equal(t, "TODO", task["status"])
	assert.Equal(t, "Ann Field", task["assignee_name"])

	status, _ = s.do(t, http.MethodPost, "/tasks/"+taskID+"/move", employeeToken, map[string]string{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusNoContent, status)

	status, body = s.do(t, http.MethodPost, "/tasks/"+taskID+"/comments", employeeToken, map[string]string{"text": "on it @Bea"})
	assert.Equal(t, http.StatusNoContent, status, body)

	status, body = s.do(t, http.MethodGet, "/dashboard?status=DONE", adminToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	adminView := body["data"].(map[string]any)["admin"].(map[string]any)
	assert.Empty(t, adminView["tasks"])
}

func TestUsersRequireSuperAdmin(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, "bea@example.com", "secret1")
	rootToken := s.login(t, "root@example.com", "rootpass")

	payload := map[string]any{"name": "Carl New", "email": "carl@example.com", "password": "secret3", "role": "EMPLOYEE", "department": "Sales"}
	status, body := s.do(t, http.MethodPost, "/users", adminToken, payload)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/users", rootToken, payload)
	require.Equal(t, http.StatusCreated, status, body)
	user := body["data"].(map[string]any)
	assert.Equal(t, "carl@example.com", user["email"])
	assert.NotContains(t, user, "password_hash")

	status, body = s.do(t, http.MethodPost, "/users", rootToken, payload)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, _ = s.do(t, http.MethodPatch, "/users/"+s.employee.ID+"/active", rootToken, map[string]bool{"active": false})
	assert.Equal(t, http.StatusNoContent, status)

	status, body = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@example.com", "password": "secret2"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCOUNT_DISABLED", errorCode(body))
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ann@example.com", "secret2")

	status, _ := s.do(t, http.MethodGet, "/dashboard", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body := s.do(t, http.MethodGet, "/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}
