/*
Package api holds the wire types and provider interfaces of the credential service.

Subpackages:

 1. handlers - chi routes, wallet signature authentication and error mapping
 2. clients - signed Go client and a testify mock of the provider interfaces

# Authentication

Calls under /api other than /api/public are signed by the caller's wallet. The
client sends three headers:

	X-Wallet-Address:   0x-prefixed address
	X-Wallet-Timestamp: unix seconds
	X-Wallet-Signature: 65-byte EIP-191 personal_sign signature, hex

The signed message is

	METHOD "\n" REQUEST-URI "\n" TIMESTAMP "\n" keccak256(body)

so a signature only authorizes the exact request it was made for, within the
server's clock skew window.
*/
package api
