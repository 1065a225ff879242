// Package server provides the local HTTP plumbing used by the CLI's OAuth flow.
//
// # Routing
//
// The callback server mounts a [Handler] on an [http.ServeMux] at the paths it reports, accepts GET
// only, and wraps it in [Middleware] with the first one outermost. [Logging] and [Recover] are
// the stock middleware.
//
// # OAuth Callback
//
// [OAuthHandler] implements the authorization code callback. It validates the state parameter,
// exchanges the code for a token, and publishes the outcome on a channel. Only the first callback
// is processed.
//
// [CallbackServer] runs the handler on the configured host and port (127.0.0.1:3000 by default)
// for the duration of `ytmix auth spotify` and shuts down once a token arrives or the wait times out.
package server
