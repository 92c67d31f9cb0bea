// Package models defines the entities shared by the signx workflow, its remote clients and its history store.
//
// The package contains two categories of types:
//
// 1. Transfer objects describing the remote processing service:
//   - [Artifact] : a processed video with its playback identifier and detected labels
//   - [Acknowledgment] : the service's reply to a submission
//   - [UploadCandidate] : the local file chosen for submission
//
// 2. Persistent entities:
//   - [Run] : one completed submission recorded in the history database
//
// Persistent entities implement [Model]: ID, sequence, timestamps, soft delete and validation.
// The Repository[T] interface defines standard access operations for database storage.
package models
