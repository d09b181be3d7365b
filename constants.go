package agentbroker

// SSHAuthSock is the environment variable naming the default upstream
// agent endpoint when no explicit path is configured.
const SSHAuthSock = "SSH_AUTH_SOCK"

// DefaultConcurrencyLimit bounds the number of connections an endpoint
// services at once. A connection accepted beyond this limit is closed
// immediately, without being handed to a mediator.
const DefaultConcurrencyLimit = 100
