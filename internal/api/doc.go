// ABOUTME: Package documentation for the REST API layer
// ABOUTME: Documents the route groups and their admission rules

// Package api serves the JSON REST surface of campus-chat.
//
// # Route groups
//
// Accounts: POST /api/register and POST /api/login are the only public
// routes. Login exchanges credentials for a signed bearer token; every
// other route requires that token.
//
// Rooms: CRUD plus membership and message history under /api/rooms. Every
// room route past creation requires current membership in the room, checked
// per request. POST /api/rooms/{id}/messages is an HTTP fallback for the
// WebSocket send; it runs the same persist-then-broadcast flow, so live
// members see HTTP-sent messages as they arrive.
//
// AI conversations: lifecycle, history, and HTTP send under
// /api/ai/conversations. Conversations have exactly one owner and every
// route requires ownership. GET .../context previews the related-room block
// a send would splice into the system prompt.
//
// # Errors
//
// Error responses are {"error": "..."} with the usual status mapping:
// 400 for malformed input, 401 for missing identity, 403 for missing
// membership or ownership, 404 for absent entities, 409 for duplicate
// usernames.
package api
