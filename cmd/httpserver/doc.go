// Command httpserver runs the credential issuance and verification API.
//
// Configuration comes from flags, the environment, or a .env file in the working
// directory. At least one anchor must be enabled: --storage for hash anchoring,
// --rpc-addr with --contract and an issuer key for Ethereum anchoring.
package main
