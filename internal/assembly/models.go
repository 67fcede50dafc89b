package assembly

import (
	"time"

	"github.com/google/uuid"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

// AssemblyStatus is the terminal state of one assembly attempt.
type AssemblyStatus string

const (
	StatusSuccess AssemblyStatus = "SUCCESS"
	StatusFailed  AssemblyStatus = "FAILED"
)

// PacketForm is one per-form artifact handed to the assembler. StartPage and
// EndPage are assigned during ordering; callers leave them zero.
type PacketForm struct {
	FormType             forms.FormType     `json:"form_type"`
	Category             forms.FormCategory `json:"category"`
	Required             bool               `json:"required"`
	Complete             bool               `json:"complete"`
	CompletionPercentage int                `json:"completion_percentage"`
	Artifact             []byte             `json:"artifact,omitempty"`
	PageCount            int                `json:"page_count"`
	StartPage            int                `json:"start_page"`
	EndPage              int                `json:"end_page"`
}

// PacketMetadata describes the filing the forms belong to.
type PacketMetadata struct {
	PacketID       uuid.UUID        `json:"packet_id"`
	CaseNumber     string           `json:"case_number"`
	PetitionerName string           `json:"petitioner_name"`
	RespondentName string           `json:"respondent_name"`
	County         string           `json:"county"`
	PacketType     forms.PacketType `json:"packet_type"`
	CreatedAt      time.Time        `json:"created_at"`
	Version        int              `json:"version"`
}

// AssemblyResult is the outcome of AssemblePacket. A failed result carries a
// non-empty error list and zero page/byte counts; there is no partial state.
type AssemblyResult struct {
	Status      AssemblyStatus `json:"status"`
	Artifact    []byte         `json:"artifact,omitempty"`
	Filename    string         `json:"filename,omitempty"`
	Forms       []PacketForm   `json:"forms,omitempty"`
	TotalPages  int            `json:"total_pages"`
	ByteSize    int            `json:"byte_size"`
	Simulated   bool           `json:"simulated"`
	AssembledAt time.Time      `json:"assembled_at"`
	Duration    time.Duration  `json:"duration"`
	Errors      []string       `json:"errors,omitempty"`
}

// PlaceholderPacket previews packet shape before real assembly: the same
// ordering and page layout, plus an overall completion figure.
type PlaceholderPacket struct {
	PacketType           forms.PacketType `json:"packet_type"`
	Forms                []PacketForm     `json:"forms"`
	TotalPages           int              `json:"total_pages"`
	CompletionPercentage int              `json:"completion_percentage"`
	Filename             string           `json:"filename"`
	CreatedAt            time.Time        `json:"created_at"`
}

// CourtRequirements are the filing limits checked after rendering.
type CourtRequirements struct {
	MaxFileSizeBytes int    `json:"max_file_size_bytes"`
	MaxPages         int    `json:"max_pages"`
	PageSize         string `json:"page_size"`
}

// DefaultCourtRequirements matches the California e-filing portal limits.
func DefaultCourtRequirements() CourtRequirements {
	return CourtRequirements{
		MaxFileSizeBytes: 25 << 20,
		MaxPages:         0, // no page ceiling
		PageSize:         "Letter",
	}
}
