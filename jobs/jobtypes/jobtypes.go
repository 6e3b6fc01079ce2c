// Package jobtypes builds the two concrete job kinds this core enqueues —
// speech-to-text ("asr") and natural-language processing ("nlp") — and
// reacts to a finished asr job by fanning out an nlp job for every post
// that embeds the transcribed media.
package jobtypes

import (
	"context"
	"encoding/json"
	"fmt"

	"oasgo.dev/core/jobs"
	"oasgo.dev/core/record"
	"oasgo.dev/core/store"
	"oasgo.dev/core/types"
)

// Queue names, also used as job-type discriminators (the Type of a record's
// job-log entries and the keys of its job settings). Job tags are record
// guids, not these names.
const (
	ASR = "asr"
	NLP = "nlp"
)

// AsrJob builds the request to transcribe a Media record.
func AsrJob(rec record.TypedRecord[types.Media]) (jobs.CreateRequest, error) {
	args, err := json.Marshal(map[string]string{"media_id": rec.ID()})
	if err != nil {
		return jobs.CreateRequest{}, err
	}
	return jobs.CreateRequest{
		Queue: ASR,
		Input: args,
		Tags:  []string{string(rec.Guid())},
	}, nil
}

// NlpJob builds the request to run nlp over a Post record.
func NlpJob(rec record.TypedRecord[types.Post]) (jobs.CreateRequest, error) {
	args, err := json.Marshal(map[string]string{"post_id": rec.ID()})
	if err != nil {
		return jobs.CreateRequest{}, err
	}
	return jobs.CreateRequest{
		Queue: NLP,
		Input: args,
		Tags:  []string{string(rec.Guid())},
	}, nil
}

// OnAsrComplete is called once an asr job finishes: it looks up the media
// the job ran against, and enqueues an nlp job for every post that embeds
// it, so a freshly transcribed media immediately moves its posts forward.
func OnAsrComplete(ctx context.Context, main *store.Store, manager *jobs.Manager, job jobs.Info) error {
	var input struct {
		MediaID string `json:"media_id"`
	}
	if err := json.Unmarshal(job.Input, &input); err != nil || input.MediaID == "" {
		return fmt.Errorf("jobtypes: job %d has no media_id input: %w", job.ID, err)
	}

	mediaGuid, err := record.NewGuid(types.MediaTypeName, input.MediaID)
	if err != nil {
		return fmt.Errorf("jobtypes: building media guid for %q: %w", input.MediaID, err)
	}
	untyped, err := main.GetOne(ctx, mediaGuid)
	if err != nil {
		return fmt.Errorf("jobtypes: loading media %s: %w", mediaGuid, err)
	}
	media, err := record.DecodeTyped[types.Media](untyped)
	if err != nil {
		return fmt.Errorf("jobtypes: decoding media %s: %w", mediaGuid, err)
	}

	for _, postRef := range media.Value.Posts {
		postUntyped, err := main.GetOne(ctx, postRef.Guid())
		if err != nil {
			continue
		}
		post, err := record.DecodeTyped[types.Post](postUntyped)
		if err != nil {
			continue
		}
		req, err := NlpJob(post)
		if err != nil {
			continue
		}
		if _, err := manager.CreateJob(ctx, req); err != nil {
			continue
		}
	}
	return nil
}
