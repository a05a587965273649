// Package clients provides a Go client for the credential service API.
//
// CredentialClient signs wallet-authenticated calls with an ECDSA key; a client
// created without a key can still use the public endpoints. Non-2xx answers
// are returned as *api.StatusError, carrying validation details in Fields.
//
//	key, _ := cryptoutils.LoadPrivateKey(os.Getenv("WALLET_KEY"))
//	c := clients.NewCredentialClient("http://127.0.0.1:8080", key)
//	cred, err := c.Issue(ctx, &interfaces.IssueRequest{...})
package clients
