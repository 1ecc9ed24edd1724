// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package apperr defines the user-facing error model of the review client.
//
// Every failure that reaches the processing orchestrator is converted into an
// *AppError carrying a machine code, the raw diagnostic message, an HTTP-like
// status and an optional payload. Transport failures are described by
// *TransportFailure and turned into AppErrors by Classify. UserMessage maps a
// code to localized, human-readable guidance; the raw message is kept for
// diagnostics only.
package apperr
