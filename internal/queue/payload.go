package queue

import (
	"encoding/json"
	"fmt"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
)

// Job payloads form a tagged union keyed by queue name: one strongly-typed
// struct per queue, validated at enqueue and again at claim time.

type ParsePayload struct {
	DocumentID string `json:"documentId"`
}

type EmbedPayload struct {
	DocumentID string `json:"documentId"`
}

type AnalyzePayload struct {
	DocumentID string `json:"documentId"`
}

// EncodePayload validates that the payload type matches the queue name and
// serializes it.
func EncodePayload(queueName string, payload interface{}) ([]byte, error) {
	switch queueName {
	case model.QueueParseDocument:
		p, ok := payload.(ParsePayload)
		if !ok || p.DocumentID == "" {
			return nil, fmt.Errorf("%w: queue %s wants ParsePayload with documentId", domain.ErrValidation, queueName)
		}
	case model.QueueGenerateEmbeddings:
		p, ok := payload.(EmbedPayload)
		if !ok || p.DocumentID == "" {
			return nil, fmt.Errorf("%w: queue %s wants EmbedPayload with documentId", domain.ErrValidation, queueName)
		}
	case model.QueueAnalyzeDocument:
		p, ok := payload.(AnalyzePayload)
		if !ok || p.DocumentID == "" {
			return nil, fmt.Errorf("%w: queue %s wants AnalyzePayload with documentId", domain.ErrValidation, queueName)
		}
	default:
		return nil, fmt.Errorf("%w: unknown queue %q", domain.ErrValidation, queueName)
	}
	return json.Marshal(payload)
}

// DecodePayload parses and validates a stored payload against its queue name.
func DecodePayload(queueName string, raw []byte) (interface{}, error) {
	var err error
	switch queueName {
	case model.QueueParseDocument:
		var p ParsePayload
		if err = json.Unmarshal(raw, &p); err == nil && p.DocumentID != "" {
			return p, nil
		}
	case model.QueueGenerateEmbeddings:
		var p EmbedPayload
		if err = json.Unmarshal(raw, &p); err == nil && p.DocumentID != "" {
			return p, nil
		}
	case model.QueueAnalyzeDocument:
		var p AnalyzePayload
		if err = json.Unmarshal(raw, &p); err == nil && p.DocumentID != "" {
			return p, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown queue %q", domain.ErrValidation, queueName)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: malformed payload for queue %s: %v", domain.ErrValidation, queueName, err)
	}
	return nil, fmt.Errorf("%w: payload for queue %s missing documentId", domain.ErrValidation, queueName)
}

// DocumentIDOf extracts the document id every pipeline payload carries.
func DocumentIDOf(job *model.Job) (string, error) {
	p, err := DecodePayload(job.QueueName, job.Payload)
	if err != nil {
		return "", err
	}
	switch v := p.(type) {
	case ParsePayload:
		return v.DocumentID, nil
	case EmbedPayload:
		return v.DocumentID, nil
	case AnalyzePayload:
		return v.DocumentID, nil
	}
	return "", domain.ErrValidation
}
