package assembly

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

// Renderer combines ordered form artifacts into one filing-ready binary.
// The assembler works without one: it then returns a simulated artifact so
// the ordering and validation pipeline stays usable in every environment.
type Renderer interface {
	Render(ctx context.Context, packet []PacketForm, meta PacketMetadata) ([]byte, error)
}

// Assembler orders, validates, and (when a renderer is present) combines
// per-form artifacts into a court filing packet.
type Assembler struct {
	renderer     Renderer
	requirements CourtRequirements
	logger       *zap.Logger
	now          func() time.Time
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithRenderer installs the binary renderer.
func WithRenderer(r Renderer) Option {
	return func(a *Assembler) { a.renderer = r }
}

// WithCourtRequirements overrides the filing limits.
func WithCourtRequirements(reqs CourtRequirements) Option {
	return func(a *Assembler) { a.requirements = reqs }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler builds an assembler. Without WithRenderer it runs in
// simulated mode.
func NewAssembler(logger *zap.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Assembler{
		requirements: DefaultCourtRequirements(),
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AssemblePacket produces a completed, ordered, validated packet or a
// structured failure. It never returns a partially ordered result.
func (a *Assembler) AssemblePacket(ctx context.Context, packet []PacketForm, meta *PacketMetadata) AssemblyResult {
	started := a.now()

	if errs := a.precheck(packet, meta); len(errs) > 0 {
		return a.fail(started, errs)
	}

	def, ok := forms.Definition(meta.PacketType)
	if !ok {
		return a.fail(started, []string{fmt.Sprintf("unknown packet type: %s", meta.PacketType)})
	}

	if missing := missingRequired(def, packet); len(missing) > 0 {
		errs := make([]string, 0, len(missing))
		for _, form := range missing {
			errs = append(errs, fmt.Sprintf("required form %s is missing from the packet", form))
		}
		return a.fail(started, errs)
	}

	ordered := orderForms(def, packet)
	totalPages := assignPageRanges(ordered)

	var (
		artifact  []byte
		simulated bool
	)
	if a.renderer != nil {
		rendered, err := a.renderer.Render(ctx, ordered, *meta)
		if err != nil {
			a.logger.Error("packet render failed",
				zap.String("packet_type", string(meta.PacketType)),
				zap.Error(err))
			return a.fail(started, []string{fmt.Sprintf("packet rendering failed: %v", err)})
		}
		artifact = rendered
	} else {
		artifact = simulatedArtifact(ordered, *meta)
		simulated = true
	}

	if errs := a.checkCourtRequirements(len(artifact), totalPages); len(errs) > 0 {
		return a.fail(started, errs)
	}

	finished := a.now()
	a.logger.Info("packet assembled",
		zap.String("packet_type", string(meta.PacketType)),
		zap.Int("forms", len(ordered)),
		zap.Int("total_pages", totalPages),
		zap.Int("byte_size", len(artifact)),
		zap.Bool("simulated", simulated))

	return AssemblyResult{
		Status:      StatusSuccess,
		Artifact:    artifact,
		Filename:    GeneratePacketFilename(*meta, finished),
		Forms:       ordered,
		TotalPages:  totalPages,
		ByteSize:    len(artifact),
		Simulated:   simulated,
		AssembledAt: finished,
		Duration:    finished.Sub(started),
	}
}

// CreatePlaceholderPacket runs the ordering and page layout pipeline without
// the binary step, for previewing packet shape during intake.
func (a *Assembler) CreatePlaceholderPacket(packet []PacketForm, meta *PacketMetadata) (*PlaceholderPacket, error) {
	if meta == nil {
		return nil, fmt.Errorf("packet metadata is required")
	}
	def, ok := forms.Definition(meta.PacketType)
	if !ok {
		return nil, fmt.Errorf("unknown packet type: %s", meta.PacketType)
	}

	ordered := orderForms(def, packet)
	totalPages := assignPageRanges(ordered)

	now := a.now()
	return &PlaceholderPacket{
		PacketType:           meta.PacketType,
		Forms:                ordered,
		TotalPages:           totalPages,
		CompletionPercentage: meanCompletion(ordered),
		Filename:             GeneratePacketFilename(*meta, now),
		CreatedAt:            now,
	}, nil
}

// EstimateAssemblyTime predicts how long AssemblePacket will take for the
// given forms, for progress UI.
func (a *Assembler) EstimateAssemblyTime(packet []PacketForm) time.Duration {
	estimate := 2 * time.Second
	for _, form := range packet {
		estimate += 500 * time.Millisecond
		estimate += time.Duration(form.PageCount) * 100 * time.Millisecond
	}
	return estimate
}

func (a *Assembler) precheck(packet []PacketForm, meta *PacketMetadata) []string {
	var errs []string
	if len(packet) == 0 {
		errs = append(errs, "no forms provided for assembly")
	}
	if meta == nil {
		errs = append(errs, "packet metadata is required")
		return errs
	}
	for _, form := range packet {
		if len(form.Artifact) == 0 {
			errs = append(errs, fmt.Sprintf("form %s has no artifact data", form.FormType))
		}
	}
	return errs
}

func (a *Assembler) checkCourtRequirements(byteSize, totalPages int) []string {
	var errs []string
	if a.requirements.MaxFileSizeBytes > 0 && byteSize > a.requirements.MaxFileSizeBytes {
		errs = append(errs, fmt.Sprintf("packet is %d bytes, court limit is %d bytes",
			byteSize, a.requirements.MaxFileSizeBytes))
	}
	if a.requirements.MaxPages > 0 && totalPages > a.requirements.MaxPages {
		errs = append(errs, fmt.Sprintf("packet is %d pages, court limit is %d pages",
			totalPages, a.requirements.MaxPages))
	}
	return errs
}

func (a *Assembler) fail(started time.Time, errs []string) AssemblyResult {
	finished := a.now()
	a.logger.Warn("packet assembly rejected", zap.Strings("errors", errs))
	return AssemblyResult{
		Status:      StatusFailed,
		AssembledAt: finished,
		Duration:    finished.Sub(started),
		Errors:      errs,
	}
}

func missingRequired(def forms.PacketDefinition, packet []PacketForm) []forms.FormType {
	present := make(map[forms.FormType]bool, len(packet))
	for _, form := range packet {
		present[form.FormType] = true
	}
	var missing []forms.FormType
	for _, entry := range def.Order {
		if entry.Required && !present[entry.Form] {
			missing = append(missing, entry.Form)
		}
	}
	return missing
}

// orderForms sorts forms into the packet's canonical filing order. Forms not
// in the canonical order sort to the end, stable relative to input order.
func orderForms(def forms.PacketDefinition, packet []PacketForm) []PacketForm {
	positions := make(map[forms.FormType]int, len(def.Order))
	for _, entry := range def.Order {
		positions[entry.Form] = entry.Position
	}

	ordered := make([]PacketForm, len(packet))
	copy(ordered, packet)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, iok := positions[ordered[i].FormType]
		pj, jok := positions[ordered[j].FormType]
		if iok != jok {
			return iok
		}
		if !iok {
			return false
		}
		return pi < pj
	})
	return ordered
}

// assignPageRanges walks the ordered forms assigning contiguous page ranges
// and returns the total page count. Zero-page forms contribute nothing but
// stay in the output.
func assignPageRanges(ordered []PacketForm) int {
	cursor := 1
	for i := range ordered {
		ordered[i].StartPage = cursor
		ordered[i].EndPage = cursor + ordered[i].PageCount - 1
		cursor += ordered[i].PageCount
	}
	return cursor - 1
}

func meanCompletion(ordered []PacketForm) int {
	if len(ordered) == 0 {
		return 0
	}
	total := 0
	for _, form := range ordered {
		total += form.CompletionPercentage
	}
	return int(float64(total)/float64(len(ordered)) + 0.5)
}

// simulatedArtifact stands in for the rendered binary when no renderer is
// wired, so downstream code can tell simulated output from a real filing.
func simulatedArtifact(ordered []PacketForm, meta PacketMetadata) []byte {
	var b strings.Builder
	b.WriteString("SIMULATED-PACKET ")
	b.WriteString(string(meta.PacketType))
	for _, form := range ordered {
		fmt.Fprintf(&b, " %s[%d-%d]", form.FormType, form.StartPage, form.EndPage)
	}
	return []byte(b.String())
}

// GeneratePacketFilename derives a deterministic filing name from packet
// metadata and a clock reading: the case number stripped to alphanumerics
// (or "NewCase" when empty), the packet short code, and the date.
func GeneratePacketFilename(meta PacketMetadata, now time.Time) string {
	caseToken := sanitizeCaseNumber(meta.CaseNumber)
	if caseToken == "" {
		caseToken = "NewCase"
	}
	shortCode := string(meta.PacketType)
	if def, ok := forms.Definition(meta.PacketType); ok {
		shortCode = def.ShortCode
	}
	return fmt.Sprintf("%s_%s_%s.pdf", caseToken, shortCode, now.Format("20060102"))
}

func sanitizeCaseNumber(caseNumber string) string {
	var b strings.Builder
	for _, r := range caseNumber {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
