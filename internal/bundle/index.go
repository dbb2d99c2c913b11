package bundle

import "strconv"

// Searchable field names shared by the store indexers, the facet-filter query
// parameters and the synchronization hooks.
const (
	FieldID                   = "resource_internal_id"
	FieldName                 = "name"
	FieldStatus               = "status"
	FieldActive               = "active"
	FieldSuspended            = "suspended"
	FieldDraft                = "draft"
	FieldPublished            = "published"
	FieldCatalogueID          = "catalogue_id"
	FieldResourceOrganisation = "resource_organisation"
	FieldTemplateStatus       = "template_status"
)

// IndexFields extracts the searchable fields of a bundle for the document
// store.
func IndexFields[T Payload](b *Bundle[T]) map[string]string {
	return map[string]string{
		FieldID:                   b.ID(),
		FieldName:                 b.Payload.GetName(),
		FieldStatus:               b.Status,
		FieldActive:               strconv.FormatBool(b.Active),
		FieldSuspended:            strconv.FormatBool(b.Suspended),
		FieldDraft:                strconv.FormatBool(b.Draft),
		FieldPublished:            strconv.FormatBool(b.Metadata.Published),
		FieldCatalogueID:          b.CatalogueID(),
		FieldResourceOrganisation: b.Payload.GetProviderID(),
		FieldTemplateStatus:       b.TemplateStatus,
	}
}
