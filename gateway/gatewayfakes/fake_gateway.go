package gatewayfakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/evzone-io/go-session-core/gateway"
	"github.com/evzone-io/go-session-core/identity"
)

var _ gateway.Gateway = (*FakeGateway)(nil)

type fakeAccount struct {
	passwordHash []byte
	identity     identity.Identity
}

// FakeGateway is an in-memory Gateway for tests. Accounts carry real bcrypt
// hashes so the credential path is exercised end to end, and logout can be
// scripted to fail for the "local logout always succeeds" tests.
type FakeGateway struct {
	lock     sync.Mutex
	accounts map[string]fakeAccount

	// LogoutErr, when set, is returned by Logout.
	LogoutErr error

	logoutCalls int
	loginCalls  int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{accounts: make(map[string]fakeAccount)}
}

// AddAccount registers an account the fake will authenticate.
func (g *FakeGateway) AddAccount(email, password string, id identity.Identity) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	g.lock.Lock()
	defer g.lock.Unlock()
	g.accounts[email] = fakeAccount{passwordHash: hash, identity: id}
	return nil
}

func (g *FakeGateway) Login(ctx context.Context, creds gateway.Credentials) (*gateway.LoginResult, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.loginCalls++

	account, ok := g.accounts[creds.Email]
	if !ok {
		return nil, gateway.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(account.passwordHash, []byte(creds.Password)) != nil {
		return nil, gateway.ErrInvalidCredentials
	}
	return &gateway.LoginResult{
		Identity: account.identity,
		Token: &oauth2.Token{
			AccessToken:  uuid.New().String(),
			RefreshToken: uuid.New().String(),
			Expiry:       time.Now().Add(time.Hour),
		},
	}, nil
}

func (g *FakeGateway) Logout(ctx context.Context) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.logoutCalls++
	return g.LogoutErr
}

// LogoutCalls returns how many times Logout was invoked.
func (g *FakeGateway) LogoutCalls() int {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.logoutCalls
}

// LoginCalls returns how many times Login was invoked.
func (g *FakeGateway) LoginCalls() int {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.loginCalls
}
