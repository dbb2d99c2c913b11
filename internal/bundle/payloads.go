package bundle

// Contact is a named point of contact for a catalogue entry.
type Contact struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Position  string `json:"position,omitempty"`
}

// User is a person authorized to manage a provider.
type User struct {
	ID      string `json:"id,omitempty"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`
}

// Service is a research infrastructure service offered through the catalogue.
type Service struct {
	ID                   string    `json:"id"`
	Abbreviation         string    `json:"abbreviation,omitempty"`
	Name                 string    `json:"name"`
	ResourceOrganisation string    `json:"resourceOrganisation"`
	ResourceProviders    []string  `json:"resourceProviders,omitempty"`
	Webpage              string    `json:"webpage,omitempty"`
	Description          string    `json:"description,omitempty"`
	Tagline              string    `json:"tagline,omitempty"`
	Logo                 string    `json:"logo,omitempty"`
	TargetUsers          []string  `json:"targetUsers,omitempty"`
	Categories           []string  `json:"categories,omitempty"`
	ScientificDomains    []string  `json:"scientificDomains,omitempty"`
	Tags                 []string  `json:"tags,omitempty"`
	MainContact          *Contact  `json:"mainContact,omitempty"`
	PublicContacts       []Contact `json:"publicContacts,omitempty"`
	HelpdeskEmail        string    `json:"helpdeskEmail,omitempty"`
	SecurityContactEmail string    `json:"securityContactEmail,omitempty"`
	TRL                  string    `json:"trl,omitempty"`
	LifeCycleStatus      string    `json:"lifeCycleStatus,omitempty"`
	OrderType            string    `json:"orderType,omitempty"`
	CatalogueID          string    `json:"catalogueId"`
}

func (s *Service) GetID() string              { return s.ID }
func (s *Service) SetID(id string)            { s.ID = id }
func (s *Service) GetCatalogueID() string     { return s.CatalogueID }
func (s *Service) SetCatalogueID(id string)   { s.CatalogueID = id }
func (s *Service) GetName() string            { return s.Name }
func (s *Service) GetProviderID() string      { return s.ResourceOrganisation }
func (s *Service) SetProviderID(id string)    { s.ResourceOrganisation = id }
func (s *Service) StripAccess() {
	s.MainContact = nil
	s.SecurityContactEmail = ""
}

// Datasource is a data source profile extending a service entry.
type Datasource struct {
	ID                        string   `json:"id"`
	ServiceID                 string   `json:"serviceId"`
	Name                      string   `json:"name"`
	ResourceOrganisation      string   `json:"resourceOrganisation"`
	Description               string   `json:"description,omitempty"`
	Submissions               string   `json:"submissionPolicyURL,omitempty"`
	Preservation              string   `json:"preservationPolicyURL,omitempty"`
	Versioning                bool     `json:"versionControl"`
	Jurisdiction              string   `json:"jurisdiction,omitempty"`
	Classification            string   `json:"datasourceClassification,omitempty"`
	ResearchEntityTypes       []string `json:"researchEntityTypes,omitempty"`
	ThematicActivity          bool     `json:"thematic"`
	MainContact               *Contact `json:"mainContact,omitempty"`
	CatalogueID               string   `json:"catalogueId"`
}

func (d *Datasource) GetID() string            { return d.ID }
func (d *Datasource) SetID(id string)          { d.ID = id }
func (d *Datasource) GetCatalogueID() string   { return d.CatalogueID }
func (d *Datasource) SetCatalogueID(id string) { d.CatalogueID = id }
func (d *Datasource) GetName() string          { return d.Name }
func (d *Datasource) GetProviderID() string    { return d.ResourceOrganisation }
func (d *Datasource) SetProviderID(id string)  { d.ResourceOrganisation = id }
func (d *Datasource) StripAccess()             { d.MainContact = nil }

// TrainingResource is a learning material or course in the catalogue.
type TrainingResource struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	ResourceOrganisation string   `json:"resourceOrganisation"`
	Authors              []string `json:"authors,omitempty"`
	URL                  string   `json:"url,omitempty"`
	Description          string   `json:"description,omitempty"`
	License              string   `json:"license,omitempty"`
	AccessRights         string   `json:"accessRights,omitempty"`
	Languages            []string `json:"languages,omitempty"`
	LearningOutcomes     []string `json:"learningOutcomes,omitempty"`
	ExpertiseLevel       string   `json:"expertiseLevel,omitempty"`
	ContentResourceTypes []string `json:"contentResourceTypes,omitempty"`
	Contact              *Contact `json:"contact,omitempty"`
	CatalogueID          string   `json:"catalogueId"`
}

func (t *TrainingResource) GetID() string            { return t.ID }
func (t *TrainingResource) SetID(id string)          { t.ID = id }
func (t *TrainingResource) GetCatalogueID() string   { return t.CatalogueID }
func (t *TrainingResource) SetCatalogueID(id string) { t.CatalogueID = id }
func (t *TrainingResource) GetName() string          { return t.Title }
func (t *TrainingResource) GetProviderID() string    { return t.ResourceOrganisation }
func (t *TrainingResource) SetProviderID(id string)  { t.ResourceOrganisation = id }
func (t *TrainingResource) StripAccess()             { t.Contact = nil }

// InteroperabilityRecord is an interoperability guideline registered by a
// provider.
type InteroperabilityRecord struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	ProviderID        string   `json:"providerId"`
	Identifier        string   `json:"identifier,omitempty"`
	Creators          []string `json:"creators,omitempty"`
	PublicationYear   int      `json:"publicationYear,omitempty"`
	Description       string   `json:"description,omitempty"`
	Status            string   `json:"status,omitempty"`
	Domain            string   `json:"domain,omitempty"`
	EOSCGuidelineType string   `json:"eoscGuidelineType,omitempty"`
	CatalogueID       string   `json:"catalogueId"`
}

func (r *InteroperabilityRecord) GetID() string            { return r.ID }
func (r *InteroperabilityRecord) SetID(id string)          { r.ID = id }
func (r *InteroperabilityRecord) GetCatalogueID() string   { return r.CatalogueID }
func (r *InteroperabilityRecord) SetCatalogueID(id string) { r.CatalogueID = id }
func (r *InteroperabilityRecord) GetName() string          { return r.Title }
func (r *InteroperabilityRecord) GetProviderID() string    { return r.ProviderID }
func (r *InteroperabilityRecord) SetProviderID(id string)  { r.ProviderID = id }
func (r *InteroperabilityRecord) StripAccess()             {}

// ResourceInteroperabilityRecord associates a resource with the
// interoperability guidelines it complies with.
type ResourceInteroperabilityRecord struct {
	ID                      string   `json:"id"`
	ResourceID              string   `json:"resourceId"`
	InteroperabilityRecords []string `json:"interoperabilityRecordIds"`
	ProviderID              string   `json:"providerId"`
	CatalogueID             string   `json:"catalogueId"`
}

func (r *ResourceInteroperabilityRecord) GetID() string            { return r.ID }
func (r *ResourceInteroperabilityRecord) SetID(id string)          { r.ID = id }
func (r *ResourceInteroperabilityRecord) GetCatalogueID() string   { return r.CatalogueID }
func (r *ResourceInteroperabilityRecord) SetCatalogueID(id string) { r.CatalogueID = id }
func (r *ResourceInteroperabilityRecord) GetName() string          { return r.ID }
func (r *ResourceInteroperabilityRecord) GetProviderID() string    { return r.ProviderID }
func (r *ResourceInteroperabilityRecord) SetProviderID(id string)  { r.ProviderID = id }
func (r *ResourceInteroperabilityRecord) StripAccess()             {}

// Provider is an organisation offering resources through the catalogue.
type Provider struct {
	ID                string    `json:"id"`
	Abbreviation      string    `json:"abbreviation,omitempty"`
	Name              string    `json:"name"`
	Website           string    `json:"website,omitempty"`
	LegalEntity       bool      `json:"legalEntity"`
	LegalStatus       string    `json:"legalStatus,omitempty"`
	Description       string    `json:"description,omitempty"`
	Logo              string    `json:"logo,omitempty"`
	ScientificDomains []string  `json:"scientificDomains,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	Location          string    `json:"location,omitempty"`
	MainContact       *Contact  `json:"mainContact,omitempty"`
	PublicContacts    []Contact `json:"publicContacts,omitempty"`
	Users             []User    `json:"users,omitempty"`
	CatalogueID       string    `json:"catalogueId"`
}

func (p *Provider) GetID() string            { return p.ID }
func (p *Provider) SetID(id string)          { p.ID = id }
func (p *Provider) GetCatalogueID() string   { return p.CatalogueID }
func (p *Provider) SetCatalogueID(id string) { p.CatalogueID = id }
func (p *Provider) GetName() string          { return p.Name }
func (p *Provider) GetProviderID() string    { return "" }
func (p *Provider) SetProviderID(string)     {}
func (p *Provider) StripAccess() {
	p.Users = nil
	p.MainContact = nil
}
