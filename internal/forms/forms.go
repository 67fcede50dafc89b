package forms

// FormType identifies one California Judicial Council form template.
type FormType string

const (
	FormDV100 FormType = "DV-100"    // Request for Domestic Violence Restraining Order
	FormCLETS FormType = "CLETS-001" // Confidential CLETS Information
	FormDV105 FormType = "DV-105"    // Request for Child Custody and Visitation Orders
	FormDV101 FormType = "DV-101"    // Description of Abuse (continuation)
	FormFL150 FormType = "FL-150"    // Income and Expense Declaration
	FormDV120 FormType = "DV-120"    // Response to Request for DVRO
	FormFL320 FormType = "FL-320"    // Responsive Declaration to Request for Order
)

// FormStatus tracks one form's progress within a workflow.
type FormStatus string

const (
	StatusNotStarted FormStatus = "not_started"
	StatusInProgress FormStatus = "in_progress"
	StatusComplete   FormStatus = "complete"
	StatusValidated  FormStatus = "validated"
	StatusSkipped    FormStatus = "skipped"
	StatusError      FormStatus = "error"
)

// Satisfied reports whether a status counts as done for dependency checks.
func (s FormStatus) Satisfied() bool {
	return s == StatusComplete || s == StatusValidated
}

// PacketType identifies which bundle of forms a filing requires.
type PacketType string

const (
	PacketInitialRequest         PacketType = "DV_INITIAL_REQUEST"
	PacketInitialRequestChildren PacketType = "DV_INITIAL_REQUEST_CHILDREN"
	PacketResponse               PacketType = "DV_RESPONSE"
)

// FormCategory groups forms for packet assembly output.
type FormCategory string

const (
	CategoryPetition     FormCategory = "petition"
	CategoryConfidential FormCategory = "confidential"
	CategorySupport      FormCategory = "support"
	CategoryResponse     FormCategory = "response"
)

// OrderEntry is one slot in a packet type's canonical filing order.
type OrderEntry struct {
	Form     FormType
	Required bool
	Position int
}

// PacketDefinition is the static description of one packet type.
type PacketDefinition struct {
	Type      PacketType
	ShortCode string
	EntryForm FormType
	Required  []FormType
	Optional  []FormType
	Order     []OrderEntry
}

var packetDefinitions = map[PacketType]PacketDefinition{
	PacketInitialRequest: {
		Type:      PacketInitialRequest,
		ShortCode: "DVRO",
		EntryForm: FormDV100,
		Required:  []FormType{FormDV100, FormCLETS},
		Optional:  []FormType{FormDV101, FormFL150},
		Order: []OrderEntry{
			{Form: FormDV100, Required: true, Position: 1},
			{Form: FormDV101, Required: false, Position: 2},
			{Form: FormFL150, Required: false, Position: 3},
			{Form: FormCLETS, Required: true, Position: 4},
		},
	},
	PacketInitialRequestChildren: {
		Type:      PacketInitialRequestChildren,
		ShortCode: "DVROK",
		EntryForm: FormDV100,
		Required:  []FormType{FormDV100, FormDV105, FormCLETS},
		Optional:  []FormType{FormDV101, FormFL150},
		Order: []OrderEntry{
			{Form: FormDV100, Required: true, Position: 1},
			{Form: FormDV101, Required: false, Position: 2},
			{Form: FormDV105, Required: true, Position: 3},
			{Form: FormFL150, Required: false, Position: 4},
			{Form: FormCLETS, Required: true, Position: 5},
		},
	},
	PacketResponse: {
		Type:      PacketResponse,
		ShortCode: "RESP",
		EntryForm: FormDV120,
		Required:  []FormType{FormDV120},
		Optional:  []FormType{FormFL320},
		Order: []OrderEntry{
			{Form: FormDV120, Required: true, Position: 1},
			{Form: FormFL320, Required: false, Position: 2},
		},
	},
}

// Definition returns the static definition for a packet type.
func Definition(pt PacketType) (PacketDefinition, bool) {
	def, ok := packetDefinitions[pt]
	return def, ok
}

// PacketTypes returns every known packet type.
func PacketTypes() []PacketType {
	return []PacketType{PacketInitialRequest, PacketInitialRequestChildren, PacketResponse}
}

// estimatedMinutes is the per-form completion time table used for the
// "time remaining" estimate shown during intake.
var estimatedMinutes = map[FormType]int{
	FormDV100: 45,
	FormCLETS: 10,
	FormDV105: 30,
	FormDV101: 15,
	FormFL150: 40,
	FormDV120: 35,
	FormFL320: 25,
}

// EstimatedMinutes returns the completion estimate for a form, 0 if unknown.
func EstimatedMinutes(form FormType) int {
	return estimatedMinutes[form]
}

// defaultPageCounts holds the published page count of each form template.
var defaultPageCounts = map[FormType]int{
	FormDV100: 13,
	FormCLETS: 2,
	FormDV105: 5,
	FormDV101: 3,
	FormFL150: 4,
	FormDV120: 8,
	FormFL320: 4,
}

// DefaultPageCount returns the template page count for a form, 0 if unknown.
func DefaultPageCount(form FormType) int {
	return defaultPageCounts[form]
}

var displayNames = map[FormType]string{
	FormDV100: "Request for Domestic Violence Restraining Order",
	FormCLETS: "Confidential CLETS Information",
	FormDV105: "Request for Child Custody and Visitation Orders",
	FormDV101: "Description of Abuse",
	FormFL150: "Income and Expense Declaration",
	FormDV120: "Response to Request for Domestic Violence Restraining Order",
	FormFL320: "Responsive Declaration to Request for Order",
}

// DisplayName returns the human-readable title of a form.
func DisplayName(form FormType) string {
	if name, ok := displayNames[form]; ok {
		return name
	}
	return string(form)
}

// Category returns the assembly category of a form.
func Category(form FormType) FormCategory {
	switch form {
	case FormCLETS:
		return CategoryConfidential
	case FormFL150, FormFL320:
		return CategorySupport
	case FormDV120:
		return CategoryResponse
	default:
		return CategoryPetition
	}
}
