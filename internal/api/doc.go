// Package api is the HTTP request layer of the relay.
//
// Routes:
//   - POST /api/connect         {token, sessionId?}
//   - POST /api/set-activity    {activity, status?, sessionId}
//   - POST /api/clear-activity  {status?, sessionId}
//   - POST /api/set-status      {status, sessionId}
//   - GET  /api/status?sessionId=
//   - POST /api/disconnect      {sessionId}
//   - GET  /health
//
// Errors are returned as {"error": "..."}: 400 for missing or invalid
// input, 404 for an unknown session. Status of an unknown session is not
// an error and reports isConnected=false.
package api
