package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
// Use this when you only need the user ID and can handle empty string gracefully.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetProjectIDFromContext extracts the project ID from JWT claims in the context.
// Returns uuid.Nil if not authenticated or claims are missing.
// Use this when you only need the project ID and can handle uuid.Nil gracefully.
func GetProjectIDFromContext(ctx context.Context) uuid.UUID {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil
	}

	if claims.ProjectID == "" {
		return uuid.Nil
	}

	projectID, err := uuid.Parse(claims.ProjectID)
	if err != nil {
		return uuid.Nil
	}

	return projectID
}

// RequireUserIDFromContext extracts the user ID from context and returns an error if not found.
// Use this when user ID is required for the operation (e.g., recording who
// triggered a scan or updated a finding status).
func RequireUserIDFromContext(ctx context.Context) (string, error) {
	userID := GetUserIDFromContext(ctx)
	if userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// RequireProjectIDFromContext extracts the project ID from context and returns an error if not found.
// Use this when project ID is required for the operation.
func RequireProjectIDFromContext(ctx context.Context) (uuid.UUID, error) {
	projectID := GetProjectIDFromContext(ctx)
	if projectID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("project ID not found in context")
	}
	return projectID, nil
}
