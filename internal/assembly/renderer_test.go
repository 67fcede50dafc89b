package assembly

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

func TestPDFRendererProducesDocument(t *testing.T) {
	renderer := NewPDFRenderer(DefaultRendererOptions())

	packet := []PacketForm{
		{FormType: forms.FormDV100, PageCount: 13, StartPage: 1, EndPage: 13},
		{FormType: forms.FormCLETS, PageCount: 2, StartPage: 14, EndPage: 15},
	}
	meta := PacketMetadata{
		CaseNumber:     "FL-2025-12345",
		PetitionerName: "Jordan Alvarez",
		RespondentName: "Casey Morgan",
		County:         "Los Angeles",
		PacketType:     forms.PacketInitialRequest,
		CreatedAt:      time.Date(2025, 12, 3, 10, 30, 0, 0, time.UTC),
	}

	artifact, err := renderer.Render(context.Background(), packet, meta)
	require.NoError(t, err)
	require.NotEmpty(t, artifact)
	assert.Equal(t, "%PDF", string(artifact[:4]))
}

func TestPDFRendererHonorsCanceledContext(t *testing.T) {
	renderer := NewPDFRenderer(DefaultRendererOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := renderer.Render(ctx, nil, PacketMetadata{})
	assert.ErrorIs(t, err, context.Canceled)
}
