package service

import (
	"context"

	"fraatlas/internal/models"
	"fraatlas/internal/repository"
)

// FeatureCollection is a GeoJSON FeatureCollection of claim points. When
// Truncated is set the next page starts at Offset+Limit.
type FeatureCollection struct {
	Type      string    `json:"type"`
	Features  []Feature `json:"features"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
	Truncated bool      `json:"truncated"`
}

// Feature is one GeoJSON point feature.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   Point           `json:"geometry"`
	Properties FeatureProperty `json:"properties"`
}

// Point holds GeoJSON coordinates in [lng, lat] order.
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// FeatureProperty is what the atlas shows for a claim marker.
type FeatureProperty struct {
	ID        string             `json:"id"`
	ClaimType models.ClaimType   `json:"claim_type"`
	Status    models.ClaimStatus `json:"status"`
	Village   string             `json:"village"`
	District  string             `json:"district"`
	State     string             `json:"state"`
	LandArea  *float64           `json:"land_area,omitempty"`
}

// MapFeatures returns one page of the claims with coordinates that the
// caller may see.
func (s *ClaimService) MapFeatures(ctx context.Context, actor Actor, filter repository.ClaimFilter) (*FeatureCollection, error) {
	if err := validateClaimFilter(filter); err != nil {
		return nil, err
	}
	filter.OwnerID = actor.OwnerScope()

	if filter.Limit <= 0 || filter.Limit > repository.MaxMapFeatures {
		filter.Limit = repository.MaxMapFeatures
	}
	filter.Offset = max(filter.Offset, 0)

	claims, truncated, err := s.claims.ListWithCoordinates(ctx, filter)
	if err != nil {
		return nil, err
	}
	fc := toFeatureCollection(claims)
	fc.Limit, fc.Offset, fc.Truncated = filter.Limit, filter.Offset, truncated
	return fc, nil
}

func toFeatureCollection(claims []models.Claim) *FeatureCollection {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(claims))}
	for _, c := range claims {
		if c.Coordinates == nil {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Point{
				Type:        "Point",
				Coordinates: [2]float64{c.Coordinates.Lng, c.Coordinates.Lat},
			},
			Properties: FeatureProperty{
				ID:        c.ID.String(),
				ClaimType: c.ClaimType,
				Status:    c.Status,
				Village:   c.Village,
				District:  c.District,
				State:     c.State,
				LandArea:  c.LandArea,
			},
		})
	}
	return fc
}
