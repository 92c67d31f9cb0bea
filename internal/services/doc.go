// Package services implements the HTTP clients for the remote video processing service.
//
// # Client
//
// [Client] holds the base URL, the [http.Client] and an optional [rate.Limiter] shared by every call.
// When an API token is configured the client authenticates with a static bearer token through [oauth2].
//
// # Submission
//
// [ProcessService] streams a multipart form to POST /api/process-video:
//   - video : the file content, copied through an [io.Pipe] so it is never fully buffered
//   - suggested_labels : the expected labels as a JSON array of strings
//
// # Retrieval
//
// [ResultService] reads processed artifacts:
//   - GET /api/latest-video : the most recent artifact, or none (404 or success=false)
//   - GET /api/all-videos : every processed artifact
//   - GET {processed path}{id} : raw artifact bytes, used by Download
//
// # Error Handling
//
// Every failure is reported as a single error wrapping one of:
//   - [shared.ErrTransport] : the request could not be completed or the reply was unreadable
//   - [shared.ErrApplication] : the service answered but reported a failure
//
// No call is retried automatically.
package services
