/*
Package authsdk provides a client SDK for the LiaiZen API authentication endpoints.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: Provides unauthenticated operations and creates authenticated sessions
  - Session: Provides authenticated operations with automatic token refresh

	client := authsdk.NewSDKClient("https://api.liazen.app")

	// Check service health
	health, err := client.GetLiveness(ctx)

	// Authenticate to create a session
	session, err := client.AuthenticateWithPassword(ctx, "alice", "password")

	// Resolve the caller
	me, err := session.Me(ctx)

Tokens issued by the external identity provider can be used directly:

	session := client.NewSessionFromTokens(providerToken, "", 3600)

# Automatic Token Refresh

Every Session method obtains its access token through getValidToken, which:

 1. Returns the current token while it is valid (with a 30-second buffer)
 2. Otherwise exchanges the refresh token for a new pair
 3. Stores the new pair in the session

Sessions are safe for concurrent use.

# Error Handling

Failed calls return *APIError carrying the HTTP status, the error code and,
for rate limited calls, RetryAfter. Compare with the predefined errors:

	_, err := client.Login(ctx, req)
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong username or password
	}

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		time.Sleep(apiErr.RetryAfter)
	}

The server writes the same errors with (*APIError).WriteError, so the
predefined values double as the server's error vocabulary.
*/
package authsdk
