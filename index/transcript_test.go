package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasgo.dev/core/record"
	"oasgo.dev/core/reference"
	"oasgo.dev/core/types"
)

func TestGenerateTranscriptForPostSingleMedia(t *testing.T) {
	mediaGuid, err := record.NewGuid(types.MediaTypeName, "m1")
	require.NoError(t, err)
	media := record.NewTypedRecord(mediaGuid, types.Media{
		Transcript: &types.Transcript{
			Parts: []types.TranscriptPart{{Word: "hello", Start: 0, End: 0.5, Conf: 0.9}},
		},
	})

	postGuid, err := record.NewGuid(types.PostTypeName, "p1")
	require.NoError(t, err)
	post := record.NewTypedRecord(postGuid, types.Post{
		Media: []reference.Reference[types.Media]{reference.NewReferenceResolved(media)},
	})

	assert.Equal(t, "hello|0:0.5:0.9:0", generateTranscriptForPost(post))
}

func TestGenerateTranscriptForPostSkipsUnresolvedAndTranscriptless(t *testing.T) {
	unresolvedGuid, err := record.NewGuid(types.MediaTypeName, "m2")
	require.NoError(t, err)

	noTranscriptGuid, err := record.NewGuid(types.MediaTypeName, "m3")
	require.NoError(t, err)
	noTranscript := record.NewTypedRecord(noTranscriptGuid, types.Media{})

	transcribedGuid, err := record.NewGuid(types.MediaTypeName, "m4")
	require.NoError(t, err)
	transcribed := record.NewTypedRecord(transcribedGuid, types.Media{
		Transcript: &types.Transcript{
			Parts: []types.TranscriptPart{{Word: "hi", Start: 1, End: 2, Conf: 0.5}},
		},
	})

	postGuid, err := record.NewGuid(types.PostTypeName, "p2")
	require.NoError(t, err)
	post := record.NewTypedRecord(postGuid, types.Post{
		Media: []reference.Reference[types.Media]{
			reference.NewReferenceID[types.Media](unresolvedGuid),
			reference.NewReferenceResolved(noTranscript),
			reference.NewReferenceResolved(transcribed),
		},
	})

	assert.Equal(t, "hi|1:2:0.5:2", generateTranscriptForPost(post))
}

func TestIsFirstRevision(t *testing.T) {
	guid, err := record.NewGuid(types.MediaTypeName, "m1")
	require.NoError(t, err)

	assert.True(t, isFirstRevision(record.UntypedRecord{Meta: record.NewMeta(guid), Rev: "1-abc"}))
	assert.False(t, isFirstRevision(record.UntypedRecord{Meta: record.NewMeta(guid), Rev: "2-def"}))
	assert.False(t, isFirstRevision(record.UntypedRecord{Meta: record.NewMeta(guid)}))
}
