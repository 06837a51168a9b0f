package vodconvert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, format := range []string{FormatKITTI, FormatVOC, FormatCOCO, FormatCrowdAI, FormatAUTTI} {
		_, err := r.Ingestor(format)
		require.NoError(t, err, format)
	}
	for _, format := range []string{FormatKITTI, FormatVOC, FormatCOCO, FormatTFRecord} {
		_, err := r.Egestor(format)
		require.NoError(t, err, format)
	}
}

func TestRegistryUnknownFormat(t *testing.T) {
	r := NewRegistry()
	_, err := r.Ingestor("yolo")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = r.Egestor("yolo")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRegistryDirectionality(t *testing.T) {
	r := NewRegistry()
	_, err := r.Egestor(FormatCrowdAI)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = r.Egestor(FormatAUTTI)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = r.Ingestor(FormatTFRecord)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRegistryFormatsListing(t *testing.T) {
	infos := NewRegistry().Formats()
	require.Len(t, infos, 6)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	require.Equal(t, []string{"autti", "coco", "crowdai", "kitti", "tfrecord", "voc"}, names)

	for _, info := range infos {
		switch info.Name {
		case FormatCrowdAI, FormatAUTTI:
			require.True(t, info.CanIngest, info.Name)
			require.False(t, info.CanEgest, info.Name)
		case FormatTFRecord:
			require.False(t, info.CanIngest, info.Name)
			require.True(t, info.CanEgest, info.Name)
		default:
			require.True(t, info.CanIngest, info.Name)
			require.True(t, info.CanEgest, info.Name)
		}
	}
}
