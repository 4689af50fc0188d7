// Package bundle contains the core domain types of the packaging pipeline.
//
// It defines BuildRequest, BuildArtifact, StagingPlan, Payload and Archive,
// and the error taxonomy (ToolMissing, BuildFailed, ArtifactNotFound,
// MissingPath) together with the exit status each one maps to.
package bundle
