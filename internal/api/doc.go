// Package api provides the HTTP client for guardian registration and pairing.
//
// Endpoints:
//   - POST /api/guardian/register
//   - POST /api/pair
//   - GET  /api/guardian/{id}/elders
//   - GET  /health
//
// Successful responses are wrapped as {"success": true, "data": {...}};
// failures carry {"error": "..."} which surfaces as the APIError message.
package api
