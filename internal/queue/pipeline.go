package queue

import (
	"context"

	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/repository"
)

// nextStage declares the fixed processing chain. Chaining happens in exactly
// one place (Advance), inside the completion transaction of the finished job,
// so the embed job only exists once the parse job's chunks are committed.
var nextStage = map[string]string{
	model.QueueParseDocument:      model.QueueGenerateEmbeddings,
	model.QueueGenerateEmbeddings: model.QueueAnalyzeDocument,
}

// Advance enqueues the successor job for a completed job, if the chain
// declares one. The new job inherits the document id and default options.
func (q *Queue) Advance(ctx context.Context, tx repository.Tx, job *model.Job) error {
	next, ok := nextStage[job.QueueName]
	if !ok {
		return nil
	}
	docID, err := DocumentIDOf(job)
	if err != nil {
		return err
	}

	var payload interface{}
	switch next {
	case model.QueueGenerateEmbeddings:
		payload = EmbedPayload{DocumentID: docID}
	case model.QueueAnalyzeDocument:
		payload = AnalyzePayload{DocumentID: docID}
	}
	_, err = q.Enqueue(ctx, tx, next, payload, Options{})
	return err
}
