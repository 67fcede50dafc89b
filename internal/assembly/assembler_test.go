package assembly

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

func fixedNow() time.Time {
	return time.Date(2025, 12, 3, 10, 30, 0, 0, time.UTC)
}

func testAssembler(opts ...Option) *Assembler {
	opts = append([]Option{WithClock(fixedNow)}, opts...)
	return NewAssembler(zap.NewNop(), opts...)
}

func childrenMeta() *PacketMetadata {
	return &PacketMetadata{
		PacketID:       uuid.New(),
		CaseNumber:     "FL-2025-12345",
		PetitionerName: "Jordan Alvarez",
		RespondentName: "Casey Morgan",
		County:         "Los Angeles",
		PacketType:     forms.PacketInitialRequestChildren,
		CreatedAt:      fixedNow(),
	}
}

func packetForm(ft forms.FormType, completion int) PacketForm {
	return PacketForm{
		FormType:             ft,
		Category:             forms.Category(ft),
		Complete:             completion == 100,
		CompletionPercentage: completion,
		Artifact:             []byte("artifact-" + string(ft)),
		PageCount:            forms.DefaultPageCount(ft),
	}
}

// stubRenderer returns a fixed artifact or error.
type stubRenderer struct {
	artifact []byte
	err      error
	calls    int
	got      []PacketForm
}

func (r *stubRenderer) Render(ctx context.Context, packet []PacketForm, meta PacketMetadata) ([]byte, error) {
	r.calls++
	r.got = packet
	return r.artifact, r.err
}

// =====================================================
// Ordering
// =====================================================

func TestPlaceholderOrdersFormsCanonically(t *testing.T) {
	assembler := testAssembler()
	input := []PacketForm{
		packetForm(forms.FormCLETS, 100),
		packetForm(forms.FormDV105, 100),
		packetForm(forms.FormFL150, 100),
		packetForm(forms.FormDV100, 100),
	}

	placeholder, err := assembler.CreatePlaceholderPacket(input, childrenMeta())
	require.NoError(t, err)

	got := make([]forms.FormType, 0, len(placeholder.Forms))
	for _, form := range placeholder.Forms {
		got = append(got, form.FormType)
	}
	assert.Equal(t, []forms.FormType{forms.FormDV100, forms.FormDV105, forms.FormFL150, forms.FormCLETS}, got)

	// Page ranges derive purely from the ordered page counts.
	dv100Pages := forms.DefaultPageCount(forms.FormDV100)
	assert.Equal(t, 1, placeholder.Forms[0].StartPage)
	assert.Equal(t, dv100Pages, placeholder.Forms[0].EndPage)
	assert.Equal(t, dv100Pages+1, placeholder.Forms[1].StartPage)
}

func TestOrderingKeepsUnknownFormsStableAtEnd(t *testing.T) {
	assembler := testAssembler()
	meta := childrenMeta()
	meta.PacketType = forms.PacketResponse
	input := []PacketForm{
		packetForm(forms.FormDV105, 100), // not in the response packet order
		packetForm(forms.FormFL150, 100), // not in the response packet order
		packetForm(forms.FormFL320, 100),
		packetForm(forms.FormDV120, 100),
	}

	placeholder, err := assembler.CreatePlaceholderPacket(input, meta)
	require.NoError(t, err)

	got := make([]forms.FormType, 0, len(placeholder.Forms))
	for _, form := range placeholder.Forms {
		got = append(got, form.FormType)
	}
	assert.Equal(t, []forms.FormType{forms.FormDV120, forms.FormFL320, forms.FormDV105, forms.FormFL150}, got)
}

func TestPageRangesSkipZeroPageForms(t *testing.T) {
	assembler := testAssembler()
	input := []PacketForm{
		{FormType: forms.FormDV100, Artifact: []byte("a"), PageCount: 3},
		{FormType: forms.FormDV105, Artifact: []byte("b"), PageCount: 0},
		{FormType: forms.FormCLETS, Artifact: []byte("c"), PageCount: 2},
	}

	placeholder, err := assembler.CreatePlaceholderPacket(input, childrenMeta())
	require.NoError(t, err)

	assert.Equal(t, 5, placeholder.TotalPages)
	assert.Equal(t, 1, placeholder.Forms[0].StartPage)
	assert.Equal(t, 3, placeholder.Forms[0].EndPage)
	// The zero-page form occupies no pages.
	assert.Equal(t, 4, placeholder.Forms[1].StartPage)
	assert.Equal(t, 3, placeholder.Forms[1].EndPage)
	assert.Equal(t, 4, placeholder.Forms[2].StartPage)
	assert.Equal(t, 5, placeholder.Forms[2].EndPage)
}

func TestPlaceholderCompletionIsMeanOfForms(t *testing.T) {
	assembler := testAssembler()
	input := []PacketForm{
		packetForm(forms.FormDV100, 100),
		packetForm(forms.FormDV105, 50),
		packetForm(forms.FormCLETS, 0),
	}

	placeholder, err := assembler.CreatePlaceholderPacket(input, childrenMeta())
	require.NoError(t, err)
	assert.Equal(t, 50, placeholder.CompletionPercentage)

	empty, err := assembler.CreatePlaceholderPacket(nil, childrenMeta())
	require.NoError(t, err)
	assert.Equal(t, 0, empty.CompletionPercentage)
}

func TestPlaceholderRejectsUnknownPacketType(t *testing.T) {
	assembler := testAssembler()
	meta := childrenMeta()
	meta.PacketType = "DV_APPEAL"

	_, err := assembler.CreatePlaceholderPacket(nil, meta)
	assert.ErrorContains(t, err, "DV_APPEAL")
}

// =====================================================
// Assembly
// =====================================================

func TestAssembleRejectsMissingRequiredForm(t *testing.T) {
	renderer := &stubRenderer{artifact: []byte("pdf")}
	assembler := testAssembler(WithRenderer(renderer))

	// DVROK requires DV-100, DV-105, and CLETS-001.
	input := []PacketForm{
		packetForm(forms.FormDV100, 100),
		packetForm(forms.FormCLETS, 100),
	}

	result := assembler.AssemblePacket(context.Background(), input, childrenMeta())

	assert.Equal(t, StatusFailed, result.Status)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "DV-105")
	assert.Zero(t, result.TotalPages)
	assert.Zero(t, result.ByteSize)
	assert.Equal(t, 0, renderer.calls)
}

func TestAssembleRejectsEmptyInputAndMissingMetadata(t *testing.T) {
	assembler := testAssembler()

	result := assembler.AssemblePacket(context.Background(), nil, childrenMeta())
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Errors[0], "no forms")

	result = assembler.AssemblePacket(context.Background(), []PacketForm{packetForm(forms.FormDV100, 100)}, nil)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Errors[0], "metadata")
}

func TestAssembleNamesFormsWithoutArtifacts(t *testing.T) {
	assembler := testAssembler()
	input := []PacketForm{
		packetForm(forms.FormDV100, 100),
		{FormType: forms.FormDV105, PageCount: 5},
		packetForm(forms.FormCLETS, 100),
	}

	result := assembler.AssemblePacket(context.Background(), input, childrenMeta())

	assert.Equal(t, StatusFailed, result.Status)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "DV-105")
}

func TestAssembleWithRendererProducesRealArtifact(t *testing.T) {
	renderer := &stubRenderer{artifact: []byte("combined-pdf-bytes")}
	assembler := testAssembler(WithRenderer(renderer))

	input := []PacketForm{
		packetForm(forms.FormCLETS, 100),
		packetForm(forms.FormDV105, 100),
		packetForm(forms.FormDV100, 100),
	}

	result := assembler.AssemblePacket(context.Background(), input, childrenMeta())

	require.Equal(t, StatusSuccess, result.Status)
	assert.False(t, result.Simulated)
	assert.Equal(t, []byte("combined-pdf-bytes"), result.Artifact)
	assert.Equal(t, len(result.Artifact), result.ByteSize)
	assert.Equal(t, 1, renderer.calls)

	// The renderer sees the forms already ordered and paginated.
	require.Len(t, renderer.got, 3)
	assert.Equal(t, forms.FormDV100, renderer.got[0].FormType)
	assert.Equal(t, 1, renderer.got[0].StartPage)

	wantPages := forms.DefaultPageCount(forms.FormDV100) +
		forms.DefaultPageCount(forms.FormDV105) +
		forms.DefaultPageCount(forms.FormCLETS)
	assert.Equal(t, wantPages, result.TotalPages)
	assert.Equal(t, fixedNow(), result.AssembledAt)
}

func TestAssembleWithoutRendererIsSimulated(t *testing.T) {
	assembler := testAssembler()
	input := []PacketForm{
		packetForm(forms.FormDV100, 100),
		packetForm(forms.FormDV105, 100),
		packetForm(forms.FormCLETS, 100),
	}

	result := assembler.AssemblePacket(context.Background(), input, childrenMeta())

	require.Equal(t, StatusSuccess, result.Status)
	assert.True(t, result.Simulated)
	assert.Contains(t, string(result.Artifact), "SIMULATED-PACKET")
}

func TestAssembleSurfacesRendererFailure(t *testing.T) {
	renderer := &stubRenderer{err: errors.New("font missing")}
	assembler := testAssembler(WithRenderer(renderer))

	input := []PacketForm{
		packetForm(forms.FormDV100, 100),
		packetForm(forms.FormDV105, 100),
		packetForm(forms.FormCLETS, 100),
	}

	result := assembler.AssemblePacket(context.Background(), input, childrenMeta())

	assert.Equal(t, StatusFailed, result.Status)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "font missing")
}

func TestAssembleEnforcesCourtFileSizeLimit(t *testing.T) {
	renderer := &stubRenderer{artifact: make([]byte, 2048)}
	assembler := testAssembler(
		WithRenderer(renderer),
		WithCourtRequirements(CourtRequirements{MaxFileSizeBytes: 1024}),
	)

	input := []PacketForm{
		packetForm(forms.FormDV100, 100),
		packetForm(forms.FormDV105, 100),
		packetForm(forms.FormCLETS, 100),
	}

	result := assembler.AssemblePacket(context.Background(), input, childrenMeta())

	assert.Equal(t, StatusFailed, result.Status)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "court limit")
}

// =====================================================
// Filename and estimate
// =====================================================

func TestGeneratePacketFilenameIsDeterministic(t *testing.T) {
	meta := PacketMetadata{
		CaseNumber: "FL-2025-12345",
		PacketType: forms.PacketInitialRequestChildren,
	}

	name := GeneratePacketFilename(meta, fixedNow())
	assert.Equal(t, "FL202512345_DVROK_20251203.pdf", name)
	assert.Equal(t, name, GeneratePacketFilename(meta, fixedNow()))
}

func TestGeneratePacketFilenameFallsBackForNewCases(t *testing.T) {
	meta := PacketMetadata{PacketType: forms.PacketResponse}

	assert.Equal(t, "NewCase_RESP_20251203.pdf", GeneratePacketFilename(meta, fixedNow()))

	meta.CaseNumber = "!!--??"
	assert.Equal(t, "NewCase_RESP_20251203.pdf", GeneratePacketFilename(meta, fixedNow()))
}

func TestEstimateAssemblyTimeGrowsWithPacketSize(t *testing.T) {
	assembler := testAssembler()

	small := assembler.EstimateAssemblyTime([]PacketForm{packetForm(forms.FormCLETS, 100)})
	large := assembler.EstimateAssemblyTime([]PacketForm{
		packetForm(forms.FormDV100, 100),
		packetForm(forms.FormDV105, 100),
		packetForm(forms.FormFL150, 100),
		packetForm(forms.FormCLETS, 100),
	})

	assert.Greater(t, large, small)
	assert.GreaterOrEqual(t, small, 2*time.Second)
}
