// Package api provides the client for the marketplace's chat HTTP API.
//
// Endpoints used:
//   - POST /api/chat/message                           persist an outbound message
//   - GET  /api/chat/conversations?user_id={id}        list a user's conversations
//   - GET  /api/chat/conversations/{id}/messages       conversation history
//
// Outbound messages always go over HTTP; the chat socket only carries
// live updates from other participants.
package api
