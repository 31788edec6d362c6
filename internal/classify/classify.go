// Package classify assigns the universal entity class from structure
// alone. No vocabulary, no lens input: the rules must stay expressible
// without any vertical-specific term.
package classify

import "github.com/lenscan/lenscan/internal/model"

// Classify derives the entity class from which structural fields are
// populated. "place" wins whenever any location structure is present;
// the remaining predicates fall through in a fixed order.
func Classify(entity model.ExtractedEntity) model.EntityClass {
	p := entity.Primitives

	if p.HasGeo() || p.StreetAddress != "" || p.City != "" || p.Postcode != "" {
		return model.ClassPlace
	}
	if p.GivenName != "" || p.FamilyName != "" {
		return model.ClassPerson
	}
	if p.StartTime != nil {
		return model.ClassEvent
	}
	if p.Website != "" || p.Phone != "" || p.Email != "" {
		return model.ClassOrganization
	}
	return model.ClassThing
}
