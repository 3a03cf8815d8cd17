package fleetAuth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	tenants  map[string]*TenantAccount
	machines map[string]*MachineAccount

	findCalls   int
	updateCalls int
	createErr   error
	updateErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:  map[string]*TenantAccount{},
		machines: map[string]*MachineAccount{},
	}
}

func (s *fakeStore) FindTenantByEmail(_ context.Context, email string) (*TenantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findCalls++
	a, ok := s.tenants[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *fakeStore) CreateTenant(_ context.Context, account *TenantAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.tenants[account.Email]; ok {
		return ErrDuplicateEmail
	}
	s.nextID++
	account.ID = fmt.Sprintf("t-%d", s.nextID)
	s.tenants[account.Email] = account.Clone()
	return nil
}

func (s *fakeStore) UpdateTenant(_ context.Context, email string, mutate func(*TenantAccount) error) (*TenantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateCalls++
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	current, ok := s.tenants[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.tenants[email] = next
	return next.Clone(), nil
}

func (s *fakeStore) FindMachineByUsername(_ context.Context, username string) (*MachineAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.machines[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return m.Clone(), nil
}

func (s *fakeStore) CreateMachine(_ context.Context, account *MachineAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.machines[account.Username]; ok {
		return ErrDuplicateUsername
	}
	s.nextID++
	account.ID = fmt.Sprintf("m-%d", s.nextID)
	s.machines[account.Username] = account.Clone()
	return nil
}

func (s *fakeStore) tenant(t testing.TB, email string) *TenantAccount {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.tenants[email]
	if !ok {
		t.Fatalf("no tenant record for %q", email)
	}
	return a.Clone()
}

func (s *fakeStore) setTenant(a *TenantAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[a.Email] = a.Clone()
}

func (s *fakeStore) tenantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tenants)
}

type fakeProvisioner struct {
	mu           sync.Mutex
	nextID       int
	companies    map[string]string
	released     []string
	provisionErr error
	releaseErr   error
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{companies: map[string]string{}}
}

func (p *fakeProvisioner) ProvisionCompany(_ context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.provisionErr != nil {
		return "", p.provisionErr
	}
	p.nextID++
	id := fmt.Sprintf("c-%d", p.nextID)
	p.companies[id] = name
	return id, nil
}

func (p *fakeProvisioner) ReleaseCompany(_ context.Context, companyID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released = append(p.released, companyID)
	if p.releaseErr != nil {
		return p.releaseErr
	}
	delete(p.companies, companyID)
	return nil
}

func (p *fakeProvisioner) CompanyExists(_ context.Context, companyID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.companies[companyID]
	return ok, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	codes    map[string][]string
	recovery map[string][]string
	err      error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		codes:    map[string][]string{},
		recovery: map[string][]string{},
	}
}

func (n *fakeNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.codes[email] = append(n.codes[email], code)
	return n.err
}

func (n *fakeNotifier) SendPasswordRecovery(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.recovery[email] = append(n.recovery[email], token)
	return n.err
}

func (n *fakeNotifier) codeCount(email string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.codes[email])
}

func (n *fakeNotifier) lastCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.codes[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (n *fakeNotifier) lastRecoveryToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	tokens := n.recovery[email]
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Notify.Async = false
	return cfg
}

type testEnv struct {
	engine    *Engine
	store     *fakeStore
	companies *fakeProvisioner
	notifier  *fakeNotifier
	clock     *testClock
}

func newTestEnv(t testing.TB, cfg Config, opts ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     newFakeStore(),
		companies: newFakeProvisioner(),
		notifier:  newFakeNotifier(),
		clock:     newTestClock(),
	}

	builder := New().
		WithConfig(cfg).
		WithAccountStore(env.store).
		WithCompanyProvisioner(env.companies).
		WithNotifier(env.notifier).
		WithCodeGenerator(CodeGeneratorFunc(func() (string, error) { return "1234", nil })).
		WithClock(env.clock.Now)
	for _, opt := range opts {
		opt(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	env.engine = engine
	t.Cleanup(engine.Close)

	return env
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

// registerVerified registers email with password and confirms the mocked code.
func (env *testEnv) registerVerified(t testing.TB, email, password string) {
	t.Helper()

	ctx := context.Background()
	if err := env.engine.Register(ctx, RegisterRequest{Email: email, Username: "user", Password: password}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := env.engine.CheckVerifyCode(ctx, email, "1234"); err != nil {
		t.Fatalf("CheckVerifyCode failed: %v", err)
	}
}

func expectAttemptError(t *testing.T, err, target error) *AttemptError {
	t.Helper()

	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
	var ae *AttemptError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AttemptError, got %T", err)
	}
	return ae
}
