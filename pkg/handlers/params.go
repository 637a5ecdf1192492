package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/taskora-inc/taskora-engine/pkg/models"
)

// refFromPath parses the {id} path value into a resource reference of the
// given kind. A malformed ID behaves like an unknown resource.
func refFromPath(r *http.Request, kind string) (models.ResourceRef, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return models.ResourceRef{}, false
	}
	return models.ResourceRef{Kind: kind, ID: id}, true
}

// userIDFromPath parses the {userID} path value.
func userIDFromPath(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
