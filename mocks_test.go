package claims_test

import (
	"context"
	"io"
	"mime/multipart"
	"sync"

	claims "github.com/goliatone/go-claims"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// MockAuthAPI implements claims.AuthAPI
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, creds claims.Credentials) (*claims.AuthResult, error) {
	args := m.Called(ctx, creds)
	result, _ := args.Get(0).(*claims.AuthResult)
	return result, args.Error(1)
}

func (m *MockAuthAPI) SendOTP(ctx context.Context, mobile string) error {
	args := m.Called(ctx, mobile)
	return args.Error(0)
}

func (m *MockAuthAPI) VerifyOTP(ctx context.Context, mobile, code string) (*claims.AuthResult, error) {
	args := m.Called(ctx, mobile, code)
	result, _ := args.Get(0).(*claims.AuthResult)
	return result, args.Error(1)
}

func (m *MockAuthAPI) Me(ctx context.Context, token string) (*claims.Principal, error) {
	args := m.Called(ctx, token)
	principal, _ := args.Get(0).(*claims.Principal)
	return principal, args.Error(1)
}

// MockClaimsAPI implements claims.ClaimsAPI
type MockClaimsAPI struct {
	mock.Mock
}

func (m *MockClaimsAPI) GetClaim(ctx context.Context, id string) (*claims.Claim, error) {
	args := m.Called(ctx, id)
	claim, _ := args.Get(0).(*claims.Claim)
	return claim, args.Error(1)
}

func (m *MockClaimsAPI) CreateClaim(ctx context.Context, draft claims.ClaimDraft) (*claims.Claim, error) {
	args := m.Called(ctx, draft)
	claim, _ := args.Get(0).(*claims.Claim)
	return claim, args.Error(1)
}

func (m *MockClaimsAPI) UpdateClaim(ctx context.Context, id string, update claims.ClaimUpdate) (*claims.Claim, error) {
	args := m.Called(ctx, id, update)
	claim, _ := args.Get(0).(*claims.Claim)
	return claim, args.Error(1)
}

func (m *MockClaimsAPI) ForwardToSP(ctx context.Context, id, adminNotes string) (*claims.Claim, error) {
	args := m.Called(ctx, id, adminNotes)
	claim, _ := args.Get(0).(*claims.Claim)
	return claim, args.Error(1)
}

func (m *MockClaimsAPI) RejectAIReport(ctx context.Context, id, reason, adminNotes string) (*claims.Claim, error) {
	args := m.Called(ctx, id, reason, adminNotes)
	claim, _ := args.Get(0).(*claims.Claim)
	return claim, args.Error(1)
}

func (m *MockClaimsAPI) AdminOverride(ctx context.Context, id, reason string, status claims.ClaimStatus) (*claims.Claim, error) {
	args := m.Called(ctx, id, reason, status)
	claim, _ := args.Get(0).(*claims.Claim)
	return claim, args.Error(1)
}

// MockAdminAPI implements claims.AdminAPI
type MockAdminAPI struct {
	mock.Mock
}

func (m *MockAdminAPI) ApproveUser(ctx context.Context, id string, approved bool, rejectionReason string) (*claims.Principal, error) {
	args := m.Called(ctx, id, approved, rejectionReason)
	principal, _ := args.Get(0).(*claims.Principal)
	return principal, args.Error(1)
}

// MockTokenStore implements claims.TokenStore
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Get(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockTokenStore) Put(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenStore) Delete(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// recordingSink captures emitted activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []claims.ActivityEvent
	err    error
}

func (s *recordingSink) Record(ctx context.Context, event claims.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Events() []claims.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]claims.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) ByType(eventType claims.ActivityEventType) []claims.ActivityEvent {
	var out []claims.ActivityEvent
	for _, event := range s.Events() {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryValues(key string) []string {
	args := m.Called(key)
	values, _ := args.Get(0).([]string)
	return values
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) LocalsMerge(key any, value map[string]any) map[string]any {
	args := m.Called(key, value)
	merged, _ := args.Get(0).(map[string]any)
	return merged
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	header, _ := args.Get(0).(*multipart.FileHeader)
	return header, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) IP() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) SendStream(r io.Reader) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockContext) RouteName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) RouteParams() map[string]string {
	args := m.Called()
	params, _ := args.Get(0).(map[string]string)
	return params
}
