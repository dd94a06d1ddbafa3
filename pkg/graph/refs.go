package graph

import (
	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate/entities/models"
)

// crossRef builds the beacon reference Weaviate expects as the value of a
// cross-reference property (PUBLISHED, REFERENCES, RELATES_TO).
func crossRef(class, id string) models.MultipleRef {
	beacon := strfmt.URI("weaviate://localhost/" + class + "/" + id)
	return models.MultipleRef{&models.SingleRef{Beacon: beacon}}
}
