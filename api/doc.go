// Package api defines the request and response types of the SpeechFlow HTTP API.
//
// # API Overview
//
// SpeechFlow provides a RESTful API for:
//   - Text-to-speech synthesis with automatic sync/streaming/async selection
//   - Streaming synthesis over Server-Sent Events
//   - Voice cloning, listing, deletion and preview
//   - Per-chat voice reply decisions
//   - Health monitoring and metrics
//
// # Authentication
//
// API endpoints under /api/v1 require authentication via the X-API-Key header
// or a bearer JWT when a secret is configured:
//
//	X-API-Key: your-api-key
//	Authorization: Bearer <token>
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Generating Documentation
//
// Handlers carry swag annotations:
//
//	swag init -g cmd/speechflow/main.go -o api --parseDependency --parseInternal
package api
