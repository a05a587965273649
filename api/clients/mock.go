package clients

import (
	"context"

	"github.com/educhainverify/credential-service/api"
	"github.com/educhainverify/credential-service/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockCredentialProvider implements api.CredentialProvider for testing.
type MockCredentialProvider struct {
	mock.Mock
}

func (m *MockCredentialProvider) RegisterAccount(ctx context.Context, req *interfaces.RegisterAccountRequest) (*interfaces.Account, error) {
	args := m.Called(ctx, req)
	account, _ := args.Get(0).(*interfaces.Account)
	return account, args.Error(1)
}

func (m *MockCredentialProvider) Me(ctx context.Context) (*interfaces.Account, error) {
	args := m.Called(ctx)
	account, _ := args.Get(0).(*interfaces.Account)
	return account, args.Error(1)
}

func (m *MockCredentialProvider) Issue(ctx context.Context, req *interfaces.IssueRequest) (*interfaces.Credential, error) {
	args := m.Called(ctx, req)
	cred, _ := args.Get(0).(*interfaces.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentialProvider) Revoke(ctx context.Context, id interfaces.CredentialID, reason string) (*interfaces.Credential, error) {
	args := m.Called(ctx, id, reason)
	cred, _ := args.Get(0).(*interfaces.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentialProvider) Search(ctx context.Context, query string) ([]*interfaces.Credential, error) {
	args := m.Called(ctx, query)
	list, _ := args.Get(0).([]*interfaces.Credential)
	return list, args.Error(1)
}

func (m *MockCredentialProvider) Mine(ctx context.Context) ([]*interfaces.Credential, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*interfaces.Credential)
	return list, args.Error(1)
}

func (m *MockCredentialProvider) Stats(ctx context.Context) (interfaces.CredentialStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(interfaces.CredentialStats), args.Error(1)
}

func (m *MockCredentialProvider) Show(ctx context.Context, id interfaces.CredentialID) (*interfaces.Credential, error) {
	args := m.Called(ctx, id)
	cred, _ := args.Get(0).(*interfaces.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentialProvider) Verify(ctx context.Context, id interfaces.CredentialID) (*api.VerificationResponse, error) {
	args := m.Called(ctx, id)
	result, _ := args.Get(0).(*api.VerificationResponse)
	return result, args.Error(1)
}

func (m *MockCredentialProvider) Anchors(ctx context.Context) (*api.AnchorsResponse, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*api.AnchorsResponse)
	return resp, args.Error(1)
}

var (
	_ api.CredentialProvider = (*CredentialClient)(nil)
	_ api.CredentialProvider = (*MockCredentialProvider)(nil)
)
