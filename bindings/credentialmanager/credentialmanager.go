// Package credentialmanager is a Go binding for the CredentialManager contract.
package credentialmanager

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CredentialManagerABI describes the CredentialManager contract interface.
const CredentialManagerABI = `[
	{"type":"function","name":"issueCredential","stateMutability":"nonpayable","inputs":[
		{"name":"credentialId","type":"uint256"},
		{"name":"student","type":"address"},
		{"name":"course","type":"string"}],"outputs":[]},
	{"type":"function","name":"revokeCredential","stateMutability":"nonpayable","inputs":[
		{"name":"credentialId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"CredentialIssued","anonymous":false,"inputs":[
		{"name":"credentialId","type":"uint256","indexed":true},
		{"name":"student","type":"address","indexed":true},
		{"name":"course","type":"string","indexed":false}]},
	{"type":"event","name":"CredentialRevoked","anonymous":false,"inputs":[
		{"name":"credentialId","type":"uint256","indexed":true}]}
]`

const (
	MethodIssueCredential  = "issueCredential"
	MethodRevokeCredential = "revokeCredential"
)

// ErrUnexpectedMethod is returned when calldata selects a different method than expected.
var ErrUnexpectedMethod = errors.New("calldata does not call the expected method")

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(CredentialManagerABI))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ABI returns the parsed contract ABI.
func ABI() abi.ABI {
	return parsedABI
}

// CredentialManager sends transactions to a deployed CredentialManager contract.
type CredentialManager struct {
	CredentialManagerTransactor
}

// CredentialManagerTransactor holds the write methods of the contract.
type CredentialManagerTransactor struct {
	contract *bind.BoundContract
}

// NewCredentialManager binds the contract deployed at address.
func NewCredentialManager(address common.Address, backend bind.ContractBackend) (*CredentialManager, error) {
	contract := bind.NewBoundContract(address, parsedABI, backend, backend, backend)
	return &CredentialManager{
		CredentialManagerTransactor: CredentialManagerTransactor{contract: contract},
	}, nil
}

// IssueCredential signs a call to issueCredential with opts.
//
// Solidity: function issueCredential(uint256 credentialId, address student, string course) returns()
func (_CredentialManager *CredentialManagerTransactor) IssueCredential(opts *bind.TransactOpts, credentialId *big.Int, student common.Address, course string) (*types.Transaction, error) {
	return _CredentialManager.contract.Transact(opts, MethodIssueCredential, credentialId, student, course)
}

// RevokeCredential signs a call to revokeCredential with opts.
//
// Solidity: function revokeCredential(uint256 credentialId) returns()
func (_CredentialManager *CredentialManagerTransactor) RevokeCredential(opts *bind.TransactOpts, credentialId *big.Int) (*types.Transaction, error) {
	return _CredentialManager.contract.Transact(opts, MethodRevokeCredential, credentialId)
}

// IssueCall holds the decoded arguments of an issueCredential call.
type IssueCall struct {
	CredentialId *big.Int
	Student      common.Address
	Course       string
}

// DecodeIssueCredential decodes issueCredential transaction calldata.
func DecodeIssueCredential(data []byte) (*IssueCall, error) {
	args, err := decodeCall(data, MethodIssueCredential)
	if err != nil {
		return nil, err
	}
	if len(args) != 3 {
		return nil, ErrUnexpectedMethod
	}

	id, ok1 := args[0].(*big.Int)
	student, ok2 := args[1].(common.Address)
	course, ok3 := args[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return nil, ErrUnexpectedMethod
	}
	return &IssueCall{CredentialId: id, Student: student, Course: course}, nil
}

// DecodeRevokeCredential decodes revokeCredential transaction calldata.
func DecodeRevokeCredential(data []byte) (*big.Int, error) {
	args, err := decodeCall(data, MethodRevokeCredential)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, ErrUnexpectedMethod
	}
	id, ok := args[0].(*big.Int)
	if !ok {
		return nil, ErrUnexpectedMethod
	}
	return id, nil
}

func decodeCall(data []byte, name string) ([]interface{}, error) {
	if len(data) < 4 {
		return nil, ErrUnexpectedMethod
	}
	method, err := parsedABI.MethodById(data[:4])
	if err != nil || method.Name != name {
		return nil, ErrUnexpectedMethod
	}
	return method.Inputs.Unpack(data[4:])
}
