// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ctxkeys defines the context keys used across packages.
package ctxkeys

// SessionEmail is the echo context key under which the session middleware
// stores the authenticated identifier.
const SessionEmail = "session_email"
